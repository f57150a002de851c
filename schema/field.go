// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package schema

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Type is the type of a field descriptor.
type Type string

const (
	TypeString  Type = "String"
	TypeNumber  Type = "Number"
	TypeDate    Type = "Date"
	TypeBoolean Type = "Boolean"
	TypeMixed   Type = "Mixed"
	TypeArray   Type = "Array"
	TypeObject  Type = "Object"
)

// Descriptor keys.
const (
	KeyType     = "type"
	KeyDefault  = "default"
	KeyRequired = "required"
)

// Generated is a default value which is produced when a document is
// written rather than stored verbatim in the definition.
type Generated string

// Now is the default of timestamp fields. It resolves to the time of the
// write according to the schema clock.
const Now Generated = "now"

// DefaultFunc computes a default value at write time.
type DefaultFunc func(now time.Time) any

// Field is the parsed form of a descriptor.
type Field struct {
	Type       Type
	Default    any
	HasDefault bool
	Required   bool

	// Fields is set for sub documents.
	Fields Definition

	// Items is set for arrays declared as a single element list.
	Items *Field
}

// ParseField interprets v as a field descriptor. Maps carrying a type key
// are descriptors, any other map is a sub document. A bare type name such
// as "String" is shorthand for a descriptor with only a type.
func ParseField(v any) Field {
	switch x := v.(type) {
	case Type:
		return Field{Type: x}
	case string:
		return Field{Type: parseType(x)}
	case []any:
		f := Field{Type: TypeArray}
		if len(x) > 0 {
			items := ParseField(x[0])
			f.Items = &items
		}
		return f
	}

	m, ok := asMap(v)
	if !ok {
		return Field{Type: TypeMixed}
	}
	t, ok := typeOf(m[KeyType])
	if !ok {
		return Field{Type: TypeObject, Fields: Definition(m)}
	}

	f := Field{Type: t}
	f.Default, f.HasDefault = m[KeyDefault]
	f.Required, _ = m[KeyRequired].(bool)
	return f
}

func parseType(s string) Type {
	switch strings.ToLower(s) {
	case "string":
		return TypeString
	case "number":
		return TypeNumber
	case "date":
		return TypeDate
	case "boolean", "bool":
		return TypeBoolean
	case "array":
		return TypeArray
	case "object":
		return TypeObject
	default:
		return TypeMixed
	}
}

func typeOf(v any) (Type, bool) {
	switch x := v.(type) {
	case Type:
		return x, true
	case string:
		return parseType(x), true
	default:
		return "", false
	}
}

func asMap(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case Definition:
		return map[string]any(x), true
	case map[string]any:
		return x, true
	default:
		return nil, false
	}
}

// Resolve returns the value the default should take for a write at now.
func (f Field) Resolve(now time.Time) any {
	switch d := f.Default.(type) {
	case Generated:
		if d == Now {
			return now
		}
		return string(d)
	case DefaultFunc:
		return d(now)
	case func(time.Time) any:
		return d(now)
	case func() any:
		return d()
	default:
		return clone(d)
	}
}

// ApplyDefaults fills every field of def which is missing from doc with
// its default. Sub documents are created as needed.
func (d Definition) ApplyDefaults(doc map[string]any, now time.Time) {
	for name, v := range d {
		f := ParseField(v)
		switch {
		case f.Fields != nil:
			sub, ok := doc[name].(map[string]any)
			if !ok {
				if _, present := doc[name]; present {
					continue
				}
				sub = map[string]any{}
			}
			f.Fields.ApplyDefaults(sub, now)
			if len(sub) > 0 {
				doc[name] = sub
			}
		case f.HasDefault:
			if _, present := doc[name]; present {
				continue
			}
			doc[name] = f.Resolve(now)
		}
	}
}

// Int64 converts the numeric representations produced by the document
// stores and JSON decoding into an int64.
func Int64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float32:
		return int64(x), !math.IsNaN(float64(x))
	case float64:
		return int64(x), !math.IsNaN(x)
	case json.Number:
		n, err := x.Int64()
		if err == nil {
			return n, true
		}
		fl, err := x.Float64()
		return int64(fl), err == nil
	default:
		return 0, false
	}
}

func clone(v any) any {
	switch x := v.(type) {
	case Definition:
		return cloneMap(x)
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = clone(el)
		}
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}
