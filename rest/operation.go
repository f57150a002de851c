// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/z5labs/crud/controller"
	"github.com/z5labs/crud/params"

	"github.com/swaggest/jsonschema-go"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OperationOptions hold the document and behaviour of an operation
// registered with [Handle].
type OperationOptions struct {
	id          string
	summary     string
	tags        []string
	parameters  []openapi3.ParameterOrRef
	requestBody *openapi3.RequestBodyOrRef
	responses   map[string]openapi3.ResponseOrRef
	errHandler  ErrorHandler
	mapper      func(params.Request) params.Params
}

// OperationOption configures an operation registered with [Handle].
type OperationOption func(*OperationOptions)

// OnError overrides the [ErrorHandler] of an operation. Operations default
// to a [ProblemDetailsErrorHandler].
func OnError(eh ErrorHandler) OperationOption {
	return func(oo *OperationOptions) {
		oo.errHandler = eh
	}
}

// OperationID sets the operationId of the operation document.
func OperationID(id string) OperationOption {
	return func(oo *OperationOptions) {
		oo.id = id
	}
}

// Summary sets the summary of the operation document.
func Summary(s string) OperationOption {
	return func(oo *OperationOptions) {
		oo.summary = s
	}
}

// Tags groups the operation in the API document.
func Tags(tags ...string) OperationOption {
	return func(oo *OperationOptions) {
		oo.tags = append(oo.tags, tags...)
	}
}

// Mapper overrides how requests are normalized into [params.Params].
// It defaults to [params.Map].
func Mapper(f func(params.Request) params.Params) OperationOption {
	return func(oo *OperationOptions) {
		oo.mapper = f
	}
}

// JsonBody declares a JSON request body described by schema. The body is
// passed to the operation as the name parameter.
func JsonBody(name string, schema jsonschema.Schema) OperationOption {
	return func(oo *OperationOptions) {
		oo.requestBody = &openapi3.RequestBodyOrRef{
			RequestBody: &openapi3.RequestBody{
				Required: ptr.Ref(true),
				Content: map[string]openapi3.MediaType{
					"application/json": {
						Schema: schemaOrRef(schema),
					},
				},
				MapOfAnything: map[string]any{
					params.BodyNameExtension: name,
				},
			},
		}
	}
}

// Returns documents a JSON response with the given status.
func Returns(status int, schema jsonschema.Schema) OperationOption {
	return func(oo *OperationOptions) {
		oo.responses[strconv.Itoa(status)] = openapi3.ResponseOrRef{
			Response: &openapi3.Response{
				Description: http.StatusText(status),
				Content: map[string]openapi3.MediaType{
					"application/json": {
						Schema: schemaOrRef(schema),
					},
				},
			},
		}
	}
}

// ReturnsProblem documents a problem details response with the given
// status.
func ReturnsProblem(status int) OperationOption {
	return func(oo *OperationOptions) {
		oo.responses[strconv.Itoa(status)] = openapi3.ResponseOrRef{
			Response: &openapi3.Response{
				Description: http.StatusText(status),
				Content: map[string]openapi3.MediaType{
					ProblemDetailContentType: {
						Schema: schemaOrRef(mustReflect(ProblemDetail{})),
					},
				},
			},
		}
	}
}

type operation struct {
	tracer     trace.Tracer
	def        openapi3.Operation
	errHandler ErrorHandler
	mapper     func(params.Request) params.Params
	handle     controller.Operation
}

// Handle registers op for requests matching method and path, along with
// its OpenAPI operation document. The parameters declared in the document
// decide which request fields reach op.
func Handle(method string, path Path, op controller.Operation, opts ...OperationOption) ApiOption {
	return apiOptionFunc(func(ao *ApiOptions) {
		oo := &OperationOptions{
			responses:  make(map[string]openapi3.ResponseOrRef),
			errHandler: NewProblemDetailsErrorHandler(),
			mapper:     params.Map,
		}
		for _, pp := range path.params() {
			PathParameter(pp.name, pp.opts...)(oo)
		}
		for _, opt := range opts {
			opt(oo)
		}
		if len(oo.responses) == 0 {
			oo.responses[strconv.Itoa(http.StatusOK)] = openapi3.ResponseOrRef{
				Response: &openapi3.Response{Description: http.StatusText(http.StatusOK)},
			}
		}

		def := openapi3.Operation{
			Tags:        oo.tags,
			Parameters:  oo.parameters,
			RequestBody: oo.requestBody,
			Responses: openapi3.Responses{
				MapOfResponseOrRefValues: oo.responses,
			},
		}
		if oo.id != "" {
			def.ID = ptr.Ref(oo.id)
		}
		if oo.summary != "" {
			def.Summary = ptr.Ref(oo.summary)
		}

		endpoint := path.String()
		err := ao.def.AddOperation(method, endpoint, def)
		if err != nil {
			panic(err)
		}

		ao.mux.Method(method, endpoint, otelhttp.WithRouteTag(endpoint, &operation{
			tracer:     otel.Tracer("github.com/z5labs/crud/rest"),
			def:        def,
			errHandler: oo.errHandler,
			mapper:     oo.mapper,
			handle:     op,
		}))
	})
}

func (o *operation) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var err error
	defer func() {
		if err == nil {
			return
		}

		o.errHandler.OnError(ctx, w, err)
	}()
	defer try.Recover(&err)

	p, err := o.readParams(ctx, r)
	if err != nil {
		return
	}

	resp, err := o.handle(ctx, p)
	if err != nil {
		return
	}

	err = o.writeResponse(ctx, w, resp)
}

func (o *operation) readParams(ctx context.Context, r *http.Request) (params.Params, error) {
	_, span := o.tracer.Start(ctx, "operation.readParams")
	defer span.End()

	req, err := params.FromHTTP(r, &o.def)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	p := o.mapper(req)
	span.SetAttributes(attribute.Int("crud.params.count", len(p)))
	return p, nil
}

func (o *operation) writeResponse(ctx context.Context, w http.ResponseWriter, resp controller.Response) error {
	_, span := o.tracer.Start(ctx, "operation.writeResponse")
	defer span.End()

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	if resp.Body == nil {
		w.WriteHeader(status)
		return nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	return enc.Encode(resp.Body)
}
