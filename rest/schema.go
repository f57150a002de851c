// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"sort"

	"github.com/z5labs/crud/schema"

	"github.com/swaggest/jsonschema-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// DefinitionSchema describes documents of def as a JSON schema.
func DefinitionSchema(def schema.Definition) jsonschema.Schema {
	var s jsonschema.Schema
	s.WithType(jsonschema.Object.Type())

	names := make([]string, 0, len(def))
	for name := range def {
		names = append(names, name)
	}
	sort.Strings(names)

	var required []string
	for _, name := range names {
		f := schema.ParseField(def[name])
		if f.Required {
			required = append(required, name)
		}
		fs := fieldSchema(f)
		s.WithPropertiesItem(name, fs.ToSchemaOrBool())
	}
	if len(required) > 0 {
		s.WithRequired(required...)
	}
	return s
}

func fieldSchema(f schema.Field) jsonschema.Schema {
	var s jsonschema.Schema
	switch f.Type {
	case schema.TypeString:
		s.WithType(jsonschema.String.Type())
	case schema.TypeNumber:
		s.WithType(jsonschema.Number.Type())
	case schema.TypeBoolean:
		s.WithType(jsonschema.Boolean.Type())
	case schema.TypeDate:
		s.WithType(jsonschema.String.Type())
		s.WithFormat("date-time")
	case schema.TypeArray:
		s.WithType(jsonschema.Array.Type())
		if f.Items != nil {
			var items jsonschema.Items
			is := fieldSchema(*f.Items)
			items.WithSchemaOrBool(is.ToSchemaOrBool())
			s.WithItems(items)
		}
	case schema.TypeObject:
		if f.Fields != nil {
			return DefinitionSchema(f.Fields)
		}
		s.WithType(jsonschema.Object.Type())
	}
	return s
}

func stringSchema() jsonschema.Schema {
	var s jsonschema.Schema
	s.WithType(jsonschema.String.Type())
	return s
}

func arraySchema(item jsonschema.Schema) jsonschema.Schema {
	var items jsonschema.Items
	items.WithSchemaOrBool(item.ToSchemaOrBool())

	var s jsonschema.Schema
	s.WithType(jsonschema.Array.Type())
	s.WithItems(items)
	return s
}

func mustReflect(v any) jsonschema.Schema {
	var reflector jsonschema.Reflector

	s, err := reflector.Reflect(v, jsonschema.InlineRefs)
	if err != nil {
		panic(err)
	}
	return s
}

func schemaOrRef(s jsonschema.Schema) *openapi3.SchemaOrRef {
	var sor openapi3.SchemaOrRef
	sor.FromJSONSchema(s.ToSchemaOrBool())
	return &sor
}
