// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/z5labs/crud"
	"github.com/z5labs/crud/controller"
	"github.com/z5labs/crud/params"
)

// ProblemDetailContentType is the media type of problem details responses.
const ProblemDetailContentType = "application/problem+json"

// ProblemDetail is an RFC 7807 Problem Details error response.
//
// Reference: https://www.rfc-editor.org/rfc/rfc7807
type ProblemDetail struct {
	// Type is a URI reference identifying the problem type. It is
	// "about:blank" unless a default type was configured.
	Type string `json:"type"`

	// Title is a short summary of the problem type.
	Title string `json:"title"`

	Status int `json:"status"`

	// Detail explains this occurrence of the problem.
	Detail string `json:"detail,omitempty"`

	Instance string `json:"instance,omitempty"`
}

// Error implements the error interface.
func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// ErrorHandler handles errors returned while serving an operation.
type ErrorHandler interface {
	OnError(context.Context, http.ResponseWriter, error)
}

// ErrorHandlerFunc is a func type of the [ErrorHandler] interface.
type ErrorHandlerFunc func(context.Context, http.ResponseWriter, error)

// OnError implements the [ErrorHandler] interface.
func (f ErrorHandlerFunc) OnError(ctx context.Context, w http.ResponseWriter, err error) {
	f(ctx, w, err)
}

type problemDetailsConfig struct {
	defaultType string
}

// ProblemDetailsOption configures a [ProblemDetailsErrorHandler].
type ProblemDetailsOption func(*problemDetailsConfig)

// WithDefaultType sets the base URI problem types are appended to, e.g.
// "https://api.example.com/problems/". It defaults to "about:blank" in
// which case every problem has the type "about:blank".
func WithDefaultType(uri string) ProblemDetailsOption {
	return func(c *problemDetailsConfig) {
		c.defaultType = uri
	}
}

// ProblemDetailsErrorHandler is an [ErrorHandler] responding with RFC 7807
// problem details.
//
// The status is taken from the error: a [ProblemDetail] is written as is,
// errors of the controller package carry their own status and malformed
// request bodies are a 400. Every other error is a 500 whose detail is a
// fixed message so internal errors are never leaked to clients.
type ProblemDetailsErrorHandler struct {
	config problemDetailsConfig
	log    *slog.Logger
}

// NewProblemDetailsErrorHandler creates a [ProblemDetailsErrorHandler].
func NewProblemDetailsErrorHandler(opts ...ProblemDetailsOption) *ProblemDetailsErrorHandler {
	config := problemDetailsConfig{
		defaultType: "about:blank",
	}
	for _, opt := range opts {
		opt(&config)
	}

	return &ProblemDetailsErrorHandler{
		config: config,
		log:    crud.Logger("github.com/z5labs/crud/rest"),
	}
}

// OnError implements the [ErrorHandler] interface.
func (h *ProblemDetailsErrorHandler) OnError(ctx context.Context, w http.ResponseWriter, err error) {
	pd := h.problemDetail(err)
	if pd.Status >= http.StatusInternalServerError {
		h.log.ErrorContext(ctx, "sending error response", slog.Any("error", err))
	} else {
		h.log.DebugContext(ctx, "sending error response", slog.Any("error", err))
	}

	writeProblem(ctx, h.log, w, pd)
}

func (h *ProblemDetailsErrorHandler) problemDetail(err error) ProblemDetail {
	var pd ProblemDetail
	if errors.As(err, &pd) {
		if pd.Type == "" {
			pd.Type = h.config.defaultType
		}
		return pd
	}

	status := controller.StatusCode(err)
	if errors.As(err, &params.InvalidBodyError{}) {
		status = http.StatusBadRequest
	}

	pd = ProblemDetail{
		Type:   h.typeURI(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: err.Error(),
	}
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		pd.Detail = "An internal server error occurred."
	}
	return pd
}

func (h *ProblemDetailsErrorHandler) typeURI(status int) string {
	if h.config.defaultType == "about:blank" {
		return "about:blank"
	}
	slug := strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "-")
	return h.config.defaultType + slug
}

func problemHandler(status int) http.HandlerFunc {
	log := crud.Logger("github.com/z5labs/crud/rest")

	return func(w http.ResponseWriter, r *http.Request) {
		writeProblem(r.Context(), log, w, ProblemDetail{
			Type:     "about:blank",
			Title:    http.StatusText(status),
			Status:   status,
			Instance: r.URL.Path,
		})
	}
}

func writeProblem(ctx context.Context, log *slog.Logger, w http.ResponseWriter, pd ProblemDetail) {
	w.Header().Set("Content-Type", ProblemDetailContentType)
	w.WriteHeader(pd.Status)

	err := json.NewEncoder(w).Encode(pd)
	if err != nil {
		log.ErrorContext(ctx, "failed to encode problem details", slog.Any("error", err))
	}
}
