// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package controller

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/z5labs/crud/params"
	"github.com/z5labs/crud/store"

	"github.com/stretchr/testify/require"
)

func TestParamController_BulkShow(t *testing.T) {
	t.Run("will return records in id order and skip missing ones", func(t *testing.T) {
		f := newFixture(t, nil, false)
		a := f.create(t, map[string]any{"name": "ada"})
		g := f.create(t, map[string]any{"name": "grace"})

		resp, err := f.ctrl.BulkShow(context.Background(), params.Params{
			ParamID: strings.Join([]string{g, "missing", a}, ","),
		})
		require.NoError(t, err)

		docs := resp.Body.([]map[string]any)
		require.Len(t, docs, 2)
		require.Equal(t, "grace", docs[0]["name"])
		require.Equal(t, "ada", docs[1]["name"])
	})

	t.Run("will return a BadRequestError", func(t *testing.T) {
		t.Run("if no id is given", func(t *testing.T) {
			f := newFixture(t, nil, false)

			_, err := f.ctrl.BulkShow(context.Background(), params.Params{ParamID: " , "})
			require.ErrorAs(t, err, &BadRequestError{})
		})
	})
}

func TestParamController_BulkUpload(t *testing.T) {
	t.Run("will create every record", func(t *testing.T) {
		f := newFixture(t, nil, false, MaxConcurrency(2))

		resp, err := f.ctrl.BulkUpload(context.Background(), params.Params{
			ParamData: []any{
				map[string]any{"name": "ada"},
				map[string]any{"name": "grace"},
				map[string]any{"name": "linus"},
			},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.Status)

		results := resp.Body.([]BulkResult)
		require.Len(t, results, 3)
		for i, r := range results {
			require.Equal(t, i, r.Index)
			require.Equal(t, http.StatusCreated, r.Status)
			require.NotEmpty(t, r.ID)
		}

		n, err := f.model.Count(context.Background(), store.Query{})
		require.NoError(t, err)
		require.Equal(t, 3, n)
	})

	t.Run("will report per record failures", func(t *testing.T) {
		f := newFixture(t, nil, false)
		f.create(t, map[string]any{store.KeyField: "p1"})

		resp, err := f.ctrl.BulkUpload(context.Background(), params.Params{
			ParamData: []any{
				map[string]any{"name": "ada"},
				map[string]any{store.KeyField: "p1"},
				"grace",
			},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusMultiStatus, resp.Status)

		results := resp.Body.([]BulkResult)
		require.Equal(t, http.StatusCreated, results[0].Status)
		require.Empty(t, results[0].Error)
		require.Equal(t, http.StatusConflict, results[1].Status)
		require.Equal(t, "p1", results[1].ID)
		require.NotEmpty(t, results[1].Error)
		require.Equal(t, http.StatusBadRequest, results[2].Status)
	})
}

func TestParamController_BulkUpdate(t *testing.T) {
	t.Run("will update every record", func(t *testing.T) {
		f := newFixture(t, nil, false)
		a := f.create(t, map[string]any{"name": "ada"})
		g := f.create(t, map[string]any{"name": "grace"})

		resp, err := f.ctrl.BulkUpdate(context.Background(), params.Params{
			ParamID:   []string{a, g},
			ParamData: map[string]any{"owner": "alice"},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.Status)

		for _, id := range []string{a, g} {
			doc, err := f.model.FindByID(context.Background(), id)
			require.NoError(t, err)
			require.Equal(t, "alice", doc["owner"])
			require.Equal(t, int64(2), docVersion(t, doc))
		}
	})

	t.Run("will report missing records", func(t *testing.T) {
		f := newFixture(t, nil, false)
		a := f.create(t, map[string]any{"name": "ada"})

		resp, err := f.ctrl.BulkUpdate(context.Background(), params.Params{
			ParamID:   a + ",missing",
			ParamData: map[string]any{"owner": "alice"},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusMultiStatus, resp.Status)

		results := resp.Body.([]BulkResult)
		require.Equal(t, http.StatusOK, results[0].Status)
		require.Equal(t, http.StatusNotFound, results[1].Status)
		require.Equal(t, "missing", results[1].ID)
	})
}

func TestParamController_BulkDestroy(t *testing.T) {
	t.Run("will soft delete and keep records retrievable by id", func(t *testing.T) {
		f := newFixture(t, nil, false)
		a := f.create(t, map[string]any{"name": "ada"})
		g := f.create(t, map[string]any{"name": "grace"})

		resp, err := f.ctrl.BulkDestroy(context.Background(), params.Params{ParamID: a + "," + g})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.Status)

		for _, id := range []string{a, g} {
			doc, err := f.model.FindByID(context.Background(), id)
			require.NoError(t, err)
			require.True(t, store.IsDeleted(doc))
		}

		n, err := f.model.Count(context.Background(), store.Query{})
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("will remove records if data is permanently deleted", func(t *testing.T) {
		f := newFixture(t, nil, true)
		a := f.create(t, map[string]any{"name": "ada"})
		g := f.create(t, map[string]any{"name": "grace"})

		_, err := f.ctrl.BulkDestroy(context.Background(), params.Params{ParamID: a + "," + g})
		require.NoError(t, err)

		for _, id := range []string{a, g} {
			_, err := f.model.FindByID(context.Background(), id)
			require.ErrorAs(t, err, &store.NotFoundError{})
		}
	})
}

func TestParamController_BulkMarkAsDeleted(t *testing.T) {
	t.Run("will soft delete every record", func(t *testing.T) {
		f := newFixture(t, nil, true)
		a := f.create(t, map[string]any{"name": "ada"})

		resp, err := f.ctrl.BulkMarkAsDeleted(context.Background(), params.Params{ParamID: a + ",missing"})
		require.NoError(t, err)
		require.Equal(t, http.StatusMultiStatus, resp.Status)

		doc, err := f.model.FindByID(context.Background(), a)
		require.NoError(t, err)
		require.True(t, store.IsDeleted(doc))
	})
}
