// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package params normalizes incoming requests into a flat parameter mapping.
//
// A request arrives in one of three shapes, modelled by the sealed
// [Request] interface:
//   - [OperationDocRequest] carries the operation document describing which
//     parameters the operation declares and where each one lives.
//   - [SwaggerParamsRequest] carries parameters which were already parsed
//     and validated by an upstream middleware.
//   - [RawRequest] carries nothing but the raw query, path and body fields.
//
// [Map] reduces any of them to [Params].
package params

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Params is the flat mapping of parameter names to values handed to
// CRUD operations.
type Params map[string]any

// MissingParamError is returned by the typed accessors of [Params] when a
// required parameter is absent.
type MissingParamError struct {
	Name string
}

func (e MissingParamError) Error() string {
	return "missing required parameter: " + e.Name
}

// InvalidParamError is returned when a parameter is present but can not be
// interpreted as the requested type.
type InvalidParamError struct {
	Name  string
	Cause error
}

func (e InvalidParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %v", e.Name, e.Cause)
}

func (e InvalidParamError) Unwrap() error {
	return e.Cause
}

// Get returns the raw value for name and whether it was present.
func (p Params) Get(name string) (any, bool) {
	v, ok := p[name]
	return v, ok
}

// String returns the parameter as a string. Multi valued query parameters
// return their first value.
func (p Params) String(name string) (string, bool) {
	v, ok := p[name]
	if !ok || v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, x != ""
	case []string:
		if len(x) == 0 {
			return "", false
		}
		return x[0], x[0] != ""
	case fmt.Stringer:
		return x.String(), true
	default:
		return fmt.Sprint(x), true
	}
}

// RequiredString is like [Params.String] but returns a [MissingParamError]
// when the parameter is absent.
func (p Params) RequiredString(name string) (string, error) {
	s, ok := p.String(name)
	if !ok {
		return "", MissingParamError{Name: name}
	}
	return s, nil
}

// Int returns the parameter as an int, or def when it is absent.
func (p Params) Int(name string, def int) (int, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return def, InvalidParamError{Name: name, Cause: err}
		}
		return int(i), nil
	}
	s, ok := p.String(name)
	if !ok {
		return def, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def, InvalidParamError{Name: name, Cause: err}
	}
	return i, nil
}

// List returns a comma separated parameter as a list. Values given as
// arrays are returned element wise.
func (p Params) List(name string) []string {
	v, ok := p[name]
	if !ok || v == nil {
		return nil
	}

	var raw []string
	switch x := v.(type) {
	case []string:
		raw = x
	case []any:
		for _, el := range x {
			raw = append(raw, fmt.Sprint(el))
		}
	default:
		s, _ := p.String(name)
		raw = []string{s}
	}

	var out []string
	for _, s := range raw {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
	}
	return out
}

// Object returns the parameter as a JSON object. Strings are decoded as
// JSON. An absent parameter yields an empty, non-nil map.
func (p Params) Object(name string) (map[string]any, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	switch x := v.(type) {
	case map[string]any:
		return x, nil
	case Params:
		return map[string]any(x), nil
	}

	s, ok := p.String(name)
	if !ok {
		return map[string]any{}, nil
	}
	var m map[string]any
	err := json.Unmarshal([]byte(s), &m)
	if err != nil {
		return nil, InvalidParamError{Name: name, Cause: err}
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
