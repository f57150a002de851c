// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package rest serves model handles as an OpenAPI described HTTP API.
package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/z5labs/crud"
	"github.com/z5labs/crud/health"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/openapi-go/openapi3"
)

// ApiOptions holds configuration values used when constructing an [Api].
type ApiOptions struct {
	mux        *chi.Mux
	def        *openapi3.Spec
	readiness  health.Monitor
	liveness   health.Monitor
	notFound   http.Handler
	notAllowed http.Handler
}

// ApiOption configures an [Api].
//
// Common implementations include:
//   - [Handle] registers a single operation
//   - [Resource] registers every CRUD operation of a model
//   - [Readiness] and [Liveness] tie the health endpoints to a [health.Monitor]
//   - [Metrics] serves Prometheus metrics
type ApiOption interface {
	ApplyApiOption(*ApiOptions)
}

type apiOptionFunc func(*ApiOptions)

func (f apiOptionFunc) ApplyApiOption(ao *ApiOptions) {
	f(ao)
}

// Readiness reports m at GET /health/readiness.
//
// See [Liveness, Readiness, and Startup Probes] for more details.
//
// [Liveness, Readiness, and Startup Probes]: https://kubernetes.io/docs/concepts/configuration/liveness-readiness-startup-probes/
func Readiness(m health.Monitor) ApiOption {
	return apiOptionFunc(func(ao *ApiOptions) {
		ao.readiness = m
	})
}

// Liveness reports m at GET /health/liveness.
func Liveness(m health.Monitor) ApiOption {
	return apiOptionFunc(func(ao *ApiOptions) {
		ao.liveness = m
	})
}

// NotFound overrides the handler for requests which match no route.
func NotFound(h http.Handler) ApiOption {
	return apiOptionFunc(func(ao *ApiOptions) {
		ao.notFound = h
	})
}

// MethodNotAllowed overrides the handler for requests to known routes
// with an unsupported method.
func MethodNotAllowed(h http.Handler) ApiOption {
	return apiOptionFunc(func(ao *ApiOptions) {
		ao.notAllowed = h
	})
}

// Api is an OpenAPI compliant [http.Handler].
//
// Every Api provides:
//   - the OpenAPI 3.0 document at GET /openapi.json
//   - a liveness probe at GET /health/liveness
//   - a readiness probe at GET /health/readiness
//   - problem details responses for unknown routes and methods
type Api struct {
	router *chi.Mux
	def    *openapi3.Spec
}

// NewApi creates an [Api] described by title and version.
//
//	api := rest.NewApi(
//	    "Library",
//	    "v1.0.0",
//	    rest.Resource("/books", books),
//	    rest.Readiness(storeMonitor),
//	)
func NewApi(title, version string, opts ...ApiOption) *Api {
	log := crud.Logger("github.com/z5labs/crud/rest")

	var alive health.Binary
	alive.MarkHealthy()

	ao := &ApiOptions{
		mux: chi.NewMux(),
		def: &openapi3.Spec{
			Openapi: "3.0.3",
			Info: openapi3.Info{
				Title:   title,
				Version: version,
			},
		},
		readiness:  &alive,
		liveness:   &alive,
		notFound:   problemHandler(http.StatusNotFound),
		notAllowed: problemHandler(http.StatusMethodNotAllowed),
	}
	for _, opt := range opts {
		opt.ApplyApiOption(ao)
	}

	ao.mux.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		err := enc.Encode(ao.def)
		if err == nil {
			return
		}
		log.ErrorContext(
			r.Context(),
			"failed to encode openapi schema to json",
			slog.Any("error", err),
		)
	})
	ao.mux.Get("/health/readiness", healthHandler(ao.readiness))
	ao.mux.Get("/health/liveness", healthHandler(ao.liveness))
	ao.mux.NotFound(ao.notFound.ServeHTTP)
	ao.mux.MethodNotAllowed(ao.notAllowed.ServeHTTP)

	return &Api{
		router: ao.mux,
		def:    ao.def,
	}
}

// Spec returns the OpenAPI document of the Api.
func (api *Api) Spec() *openapi3.Spec {
	return api.def
}

// ServeHTTP implements the [http.Handler] interface.
func (api *Api) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	api.router.ServeHTTP(w, req)
}

func healthHandler(m health.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy, err := m.Healthy(r.Context())
		if !healthy || err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
