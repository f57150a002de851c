// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/z5labs/crud/app"
	"github.com/z5labs/crud/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const models = `
models:
  - name: Book
    schema:
      title:
        type: String
        required: true
  - name: Person
    basePath: /v1/people
    permanentDeleteData: true
    schema:
      name: String
`

func writeModels(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "models.yaml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)
	return path
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	t.Setenv("MODELS_FILE", writeModels(t, models))
	t.Setenv("STORE_URL", "mem://")

	var hooks app.HookRegistry
	h, err := Handler(context.Background(), ConfigFromEnv(), &hooks)
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler(t *testing.T) {
	t.Run("will serve every defined model", func(t *testing.T) {
		srv := newServer(t)

		resp, err := http.Post(srv.URL+"/books", "application/json", strings.NewReader(`{"title": "Dune"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, err = http.Post(srv.URL+"/v1/people", "application/json", strings.NewReader(`{"name": "Ada"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, err = http.Get(srv.URL + "/books/utils/count")
		require.NoError(t, err)
		defer resp.Body.Close()

		var count map[string]int
		err = json.NewDecoder(resp.Body).Decode(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count["count"])
	})

	t.Run("will report ready once the store answers", func(t *testing.T) {
		srv := newServer(t)

		resp, err := http.Get(srv.URL + "/health/readiness")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("will expose store metrics", func(t *testing.T) {
		srv := newServer(t)

		resp, err := http.Get(srv.URL + "/books")
		require.NoError(t, err)
		resp.Body.Close()

		resp, err = http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(b), "crud_store_operations_total")
		assert.Contains(t, string(b), "go_goroutines")
	})

	t.Run("will close the store once the service stops", func(t *testing.T) {
		t.Setenv("MODELS_FILE", writeModels(t, models))
		t.Setenv("STORE_URL", "mem://")

		var hooks app.HookRegistry
		_, err := Handler(context.Background(), ConfigFromEnv(), &hooks)
		require.NoError(t, err)

		rt, err := app.WithHooks(func(ctx context.Context, h *app.HookRegistry) (app.Runtime, error) {
			*h = hooks
			return app.RuntimeFunc(func(ctx context.Context) error { return nil }), nil
		}).Build(context.Background())
		require.NoError(t, err)

		assert.NoError(t, rt.Run(context.Background()))
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if no models are defined", func(t *testing.T) {
			t.Setenv("MODELS_FILE", "")

			var hooks app.HookRegistry
			_, err := Handler(context.Background(), ConfigFromEnv(), &hooks)
			assert.ErrorIs(t, err, NoModelsError{})
		})

		t.Run("if the definitions contain unknown keys", func(t *testing.T) {
			t.Setenv("MODELS_FILE", writeModels(t, "models:\n  - name: Book\n    softDelete: true\n"))

			var hooks app.HookRegistry
			_, err := Handler(context.Background(), ConfigFromEnv(), &hooks)
			assert.Error(t, err)
		})

		t.Run("if the store url is unsupported", func(t *testing.T) {
			t.Setenv("MODELS_FILE", writeModels(t, models))
			t.Setenv("STORE_URL", "postgres://localhost")

			var hooks app.HookRegistry
			_, err := Handler(context.Background(), ConfigFromEnv(), &hooks)
			assert.ErrorAs(t, err, &store.UnsupportedStoreError{})
		})
	})
}
