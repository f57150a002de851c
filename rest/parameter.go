// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"github.com/swaggest/jsonschema-go"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
)

// ParameterOption configures the document of a single parameter.
type ParameterOption func(*openapi3.Parameter)

// Required marks the parameter as required.
func Required() ParameterOption {
	return func(p *openapi3.Parameter) {
		p.Required = ptr.Ref(true)
	}
}

// Description describes the parameter.
func Description(s string) ParameterOption {
	return func(p *openapi3.Parameter) {
		p.Description = ptr.Ref(s)
	}
}

// ParamSchema sets the schema of the parameter value.
func ParamSchema(schema jsonschema.Schema) ParameterOption {
	return func(p *openapi3.Parameter) {
		p.Schema = schemaOrRef(schema)
	}
}

// QueryParam declares a URL query parameter.
func QueryParam(name string, opts ...ParameterOption) OperationOption {
	return param(name, openapi3.ParameterInQuery, opts...)
}

// PathParameter declares a path parameter. Parameters in the [Path] given
// to [Handle] are declared automatically.
func PathParameter(name string, opts ...ParameterOption) OperationOption {
	return param(name, openapi3.ParameterInPath, append([]ParameterOption{Required()}, opts...)...)
}

func param(name string, in openapi3.ParameterIn, opts ...ParameterOption) OperationOption {
	return func(oo *OperationOptions) {
		def := &openapi3.Parameter{
			Name:   name,
			In:     in,
			Schema: schemaOrRef(stringSchema()),
		}
		for _, opt := range opts {
			opt(def)
		}

		oo.parameters = append(oo.parameters, openapi3.ParameterOrRef{
			Parameter: def,
		})
	}
}
