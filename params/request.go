// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package params

import (
	"net/url"

	"github.com/swaggest/openapi-go/openapi3"
)

// InBody marks a parameter which receives the whole request body. OpenAPI 3
// describes bodies separately from parameters so this location only appears
// in documents converted from Swagger 2.
const InBody openapi3.ParameterIn = "body"

// BodyNameExtension is the request body extension naming the parameter which
// receives the body. Bodies without it are mapped to [DataKey].
const BodyNameExtension = "x-body-name"

// DataKey is the parameter receiving the request body when no other name
// is declared for it.
const DataKey = "data"

// Request is one of [OperationDocRequest], [SwaggerParamsRequest] or
// [RawRequest].
type Request interface {
	isRequest()
}

// OperationDocRequest is a request for which the operation document is
// known. Only the parameters declared by the operation are mapped.
type OperationDocRequest struct {
	Operation *openapi3.Operation
	Body      any
	Query     url.Values
	Path      map[string]string
}

func (OperationDocRequest) isRequest() {}

// ParamValue is a parameter already parsed by an upstream middleware.
type ParamValue struct {
	Value any
}

// SwaggerParamsRequest is a request whose parameters were parsed and
// validated before reaching the handler.
type SwaggerParamsRequest struct {
	Params map[string]ParamValue
}

func (SwaggerParamsRequest) isRequest() {}

// RawRequest is a request with nothing but its raw fields.
type RawRequest struct {
	Query url.Values
	Path  map[string]string
	Body  any
}

func (RawRequest) isRequest() {}

// Map normalizes req into [Params]. The result is never nil.
func Map(req Request) Params {
	switch r := req.(type) {
	case OperationDocRequest:
		return mapOperationDoc(r)
	case *OperationDocRequest:
		if r == nil {
			return Params{}
		}
		return mapOperationDoc(*r)
	case SwaggerParamsRequest:
		return mapSwaggerParams(r)
	case *SwaggerParamsRequest:
		if r == nil {
			return Params{}
		}
		return mapSwaggerParams(*r)
	case RawRequest:
		return mapRaw(r)
	case *RawRequest:
		if r == nil {
			return Params{}
		}
		return mapRaw(*r)
	default:
		return Params{}
	}
}

func mapOperationDoc(r OperationDocRequest) Params {
	p := Params{}
	if r.Operation == nil {
		return p
	}

	for _, pr := range r.Operation.Parameters {
		param := pr.Parameter
		if param == nil {
			continue
		}

		switch param.In {
		case InBody:
			p[param.Name] = r.Body
		case openapi3.ParameterInQuery:
			v, ok := queryValue(r.Query, param.Name)
			if ok {
				p[param.Name] = v
			}
		case openapi3.ParameterInPath:
			v, ok := r.Path[param.Name]
			if ok && v != "" {
				p[param.Name] = v
			}
		}
	}

	if name, ok := bodyName(r.Operation); ok {
		p[name] = r.Body
	}
	return p
}

func bodyName(op *openapi3.Operation) (string, bool) {
	if op.RequestBody == nil || op.RequestBody.RequestBody == nil {
		return "", false
	}
	ext := op.RequestBody.RequestBody.MapOfAnything
	if name, ok := ext[BodyNameExtension].(string); ok && name != "" {
		return name, true
	}
	return DataKey, true
}

func mapSwaggerParams(r SwaggerParamsRequest) Params {
	p := make(Params, len(r.Params))
	for name, v := range r.Params {
		p[name] = v.Value
	}
	return p
}

func mapRaw(r RawRequest) Params {
	p := make(Params, len(r.Query)+len(r.Path)+1)
	for name := range r.Query {
		v, ok := queryValue(r.Query, name)
		if !ok {
			v = ""
		}
		p[name] = v
	}
	for name, v := range r.Path {
		p[name] = v
	}
	p[DataKey] = r.Body
	return p
}

// queryValue flattens single valued query parameters to a string.
func queryValue(q url.Values, name string) (any, bool) {
	vs := q[name]
	switch len(vs) {
	case 0:
		return nil, false
	case 1:
		return vs[0], vs[0] != ""
	default:
		out := make([]string, len(vs))
		copy(out, vs)
		return out, true
	}
}
