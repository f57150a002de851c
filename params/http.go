// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package params

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/openapi-go/openapi3"
)

// InvalidBodyError is returned by [FromHTTP] when the request body is not
// valid JSON.
type InvalidBodyError struct {
	Cause error
}

func (e InvalidBodyError) Error() string {
	return "request body is not valid json: " + e.Cause.Error()
}

func (e InvalidBodyError) Unwrap() error {
	return e.Cause
}

type swaggerParamsCtxKey struct{}

// WithSwaggerParams returns a copy of ctx carrying already parsed
// parameters. Middleware which validates requests against an API document
// uses it to hand its results to [FromHTTP].
func WithSwaggerParams(ctx context.Context, ps map[string]ParamValue) context.Context {
	return context.WithValue(ctx, swaggerParamsCtxKey{}, ps)
}

func swaggerParamsFrom(ctx context.Context) (map[string]ParamValue, bool) {
	ps, ok := ctx.Value(swaggerParamsCtxKey{}).(map[string]ParamValue)
	return ps, ok
}

// FromHTTP builds the [Request] variant which best describes r.
//
// When op is non-nil an [OperationDocRequest] is returned. Otherwise
// parameters placed in the context by [WithSwaggerParams] produce a
// [SwaggerParamsRequest]. Anything else is a [RawRequest].
func FromHTTP(r *http.Request, op *openapi3.Operation) (Request, error) {
	if op == nil {
		if ps, ok := swaggerParamsFrom(r.Context()); ok {
			return SwaggerParamsRequest{Params: ps}, nil
		}
	}

	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	query := r.URL.Query()
	path := pathParams(r)

	if op != nil {
		return OperationDocRequest{
			Operation: op,
			Body:      body,
			Query:     query,
			Path:      path,
		}, nil
	}
	return RawRequest{
		Query: query,
		Path:  path,
		Body:  body,
	}, nil
}

func readBody(r *http.Request) (any, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	defer r.Body.Close()

	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}

	var v any
	err = json.Unmarshal(b, &v)
	if err != nil {
		return nil, InvalidBodyError{Cause: err}
	}
	return v, nil
}

func pathParams(r *http.Request) map[string]string {
	path := make(map[string]string)
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return path
	}
	for i, key := range rctx.URLParams.Keys {
		if key == "*" || i >= len(rctx.URLParams.Values) {
			continue
		}
		path[key] = rctx.URLParams.Values[i]
	}
	return path
}
