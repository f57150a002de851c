// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/z5labs/crud/controller"
	"github.com/z5labs/crud/health"
	"github.com/z5labs/crud/params"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeProblem(t *testing.T, resp *http.Response) ProblemDetail {
	t.Helper()

	require.Equal(t, ProblemDetailContentType, resp.Header.Get("Content-Type"))

	var pd ProblemDetail
	err := json.NewDecoder(resp.Body).Decode(&pd)
	require.NoError(t, err)
	return pd
}

func TestNewApi(t *testing.T) {
	t.Run("will serve the OpenAPI document at /openapi.json", func(t *testing.T) {
		api := NewApi("My API", "v2.3.1")

		srv := httptest.NewServer(api)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/openapi.json")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var spec map[string]any
		err = json.NewDecoder(resp.Body).Decode(&spec)
		require.NoError(t, err)

		info := spec["info"].(map[string]any)
		assert.Equal(t, "My API", info["title"])
		assert.Equal(t, "v2.3.1", info["version"])
	})

	t.Run("will respond with problem details", func(t *testing.T) {
		t.Run("if no route matches", func(t *testing.T) {
			api := NewApi("Test", "v1")

			srv := httptest.NewServer(api)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/nowhere")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			pd := decodeProblem(t, resp)
			assert.Equal(t, "/nowhere", pd.Instance)
		})

		t.Run("if the method is not allowed", func(t *testing.T) {
			api := NewApi("Test", "v1")

			srv := httptest.NewServer(api)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/openapi.json", "application/json", nil)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		})
	})
}

func TestReadiness(t *testing.T) {
	t.Run("will report the monitor state", func(t *testing.T) {
		var ready health.Binary
		api := NewApi("Test", "v1", Readiness(&ready))

		srv := httptest.NewServer(api)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/health/readiness")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		ready.MarkHealthy()

		resp, err = http.Get(srv.URL + "/health/readiness")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLiveness(t *testing.T) {
	t.Run("will be healthy by default", func(t *testing.T) {
		api := NewApi("Test", "v1")

		srv := httptest.NewServer(api)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/health/liveness")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestMetrics(t *testing.T) {
	t.Run("will serve gathered metrics", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: "crud_test_total"})
		reg.MustRegister(c)
		c.Inc()

		api := NewApi("Test", "v1", Metrics(reg))

		srv := httptest.NewServer(api)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		var sb strings.Builder
		_, err = io.Copy(&sb, resp.Body)
		require.NoError(t, err)
		assert.Contains(t, sb.String(), "crud_test_total 1")
	})
}

func TestHandle(t *testing.T) {
	echo := func(ctx context.Context, p params.Params) (controller.Response, error) {
		return controller.Response{Status: http.StatusOK, Body: p}, nil
	}

	t.Run("will only pass declared parameters", func(t *testing.T) {
		api := NewApi(
			"Test",
			"v1",
			Handle(
				http.MethodGet,
				BasePath("/echo").Param("id"),
				echo,
				QueryParam("q"),
			),
		)

		srv := httptest.NewServer(api)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/echo/42?q=hello&other=dropped")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		err = json.NewDecoder(resp.Body).Decode(&body)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "42", "q": "hello"}, body)
	})

	t.Run("will pass the request body under its declared name", func(t *testing.T) {
		api := NewApi(
			"Test",
			"v1",
			Handle(
				http.MethodPost,
				BasePath("/echo"),
				echo,
				JsonBody("payload", stringSchema()),
			),
		)

		srv := httptest.NewServer(api)
		defer srv.Close()

		resp, err := http.Post(srv.URL+"/echo", "application/json", strings.NewReader(`{"a": 1}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		var body map[string]any
		err = json.NewDecoder(resp.Body).Decode(&body)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"payload": map[string]any{"a": float64(1)}}, body)
	})

	t.Run("will register the operation document", func(t *testing.T) {
		api := NewApi(
			"Test",
			"v1",
			Handle(http.MethodGet, BasePath("/echo").Param("id"), echo, OperationID("echo")),
		)

		b, err := json.Marshal(api.Spec())
		require.NoError(t, err)

		var spec struct {
			Paths map[string]map[string]struct {
				OperationID string `json:"operationId"`
				Parameters  []struct {
					Name     string `json:"name"`
					In       string `json:"in"`
					Required bool   `json:"required"`
				} `json:"parameters"`
			} `json:"paths"`
		}
		err = json.Unmarshal(b, &spec)
		require.NoError(t, err)

		op, ok := spec.Paths["/echo/{id}"]["get"]
		require.True(t, ok)
		assert.Equal(t, "echo", op.OperationID)
		require.Len(t, op.Parameters, 1)
		assert.Equal(t, "id", op.Parameters[0].Name)
		assert.Equal(t, "path", op.Parameters[0].In)
		assert.True(t, op.Parameters[0].Required)
	})

	t.Run("will respond with a 400", func(t *testing.T) {
		t.Run("if the body is not json", func(t *testing.T) {
			api := NewApi(
				"Test",
				"v1",
				Handle(http.MethodPost, BasePath("/echo"), echo, JsonBody("data", stringSchema())),
			)

			srv := httptest.NewServer(api)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/echo", "application/json", strings.NewReader(`{`))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			pd := decodeProblem(t, resp)
			assert.Equal(t, http.StatusBadRequest, pd.Status)
		})
	})

	t.Run("will respond with a 500", func(t *testing.T) {
		t.Run("if the operation panics", func(t *testing.T) {
			api := NewApi(
				"Test",
				"v1",
				Handle(http.MethodGet, BasePath("/panic"), func(ctx context.Context, p params.Params) (controller.Response, error) {
					panic("boom")
				}),
			)

			srv := httptest.NewServer(api)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/panic")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		})

		t.Run("without leaking the error", func(t *testing.T) {
			api := NewApi(
				"Test",
				"v1",
				Handle(http.MethodGet, BasePath("/fail"), func(ctx context.Context, p params.Params) (controller.Response, error) {
					return controller.Response{}, errors.New("connection refused by 10.0.0.1")
				}),
			)

			srv := httptest.NewServer(api)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/fail")
			require.NoError(t, err)
			defer resp.Body.Close()

			pd := decodeProblem(t, resp)
			assert.Equal(t, http.StatusInternalServerError, pd.Status)
			assert.NotContains(t, pd.Detail, "10.0.0.1")
		})
	})

	t.Run("will use a custom error handler", func(t *testing.T) {
		api := NewApi(
			"Test",
			"v1",
			Handle(
				http.MethodGet,
				BasePath("/fail"),
				func(ctx context.Context, p params.Params) (controller.Response, error) {
					return controller.Response{}, errors.New("boom")
				},
				OnError(ErrorHandlerFunc(func(ctx context.Context, w http.ResponseWriter, err error) {
					w.WriteHeader(http.StatusTeapot)
				})),
			),
		)

		srv := httptest.NewServer(api)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/fail")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	})
}

func TestProblemDetailsErrorHandler(t *testing.T) {
	testCases := []struct {
		Name   string
		Err    error
		Status int
		Type   string
	}{
		{
			Name:   "will map controller not found errors",
			Err:    controller.NotFoundError{Model: "Book", ID: "1"},
			Status: http.StatusNotFound,
			Type:   "https://example.com/problems/not-found",
		},
		{
			Name:   "will map controller conflict errors",
			Err:    controller.ConflictError{Model: "Book", ID: "1", Expected: 1, Actual: 2},
			Status: http.StatusConflict,
			Type:   "https://example.com/problems/conflict",
		},
		{
			Name:   "will map invalid bodies",
			Err:    params.InvalidBodyError{Cause: errors.New("unexpected EOF")},
			Status: http.StatusBadRequest,
			Type:   "https://example.com/problems/bad-request",
		},
		{
			Name:   "will keep problem details as is",
			Err:    ProblemDetail{Type: "https://example.com/problems/custom", Title: "Custom", Status: http.StatusTeapot},
			Status: http.StatusTeapot,
			Type:   "https://example.com/problems/custom",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			h := NewProblemDetailsErrorHandler(WithDefaultType("https://example.com/problems/"))

			w := httptest.NewRecorder()
			h.OnError(context.Background(), w, testCase.Err)

			resp := w.Result()
			defer resp.Body.Close()

			assert.Equal(t, testCase.Status, resp.StatusCode)
			pd := decodeProblem(t, resp)
			assert.Equal(t, testCase.Status, pd.Status)
			assert.Equal(t, testCase.Type, pd.Type)
		})
	}
}
