// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseSort(t *testing.T) {
	t.Run("will parse ascending and descending fields", func(t *testing.T) {
		require.Equal(t, []SortField{
			{Path: "name"},
			{Path: "_metadata.createdAt", Desc: true},
			{Path: "age"},
		}, ParseSort("name, -_metadata.createdAt,,+age"))
	})

	t.Run("will return nil for an empty expression", func(t *testing.T) {
		require.Nil(t, ParseSort(""))
	})
}

func TestCompileFilter(t *testing.T) {
	t.Run("will push down comparable values", func(t *testing.T) {
		now := time.Now()
		pushed, local, err := compileFilter(map[string]any{
			"name":    "ada",
			"age":     map[string]any{"$gt": 3},
			"address": map[string]any{"city": "London"},
			"seen":    now,
		})
		require.NoError(t, err)
		require.Empty(t, local)
		require.ElementsMatch(t, []predicate{
			{path: "name", op: "=", value: "ada"},
			{path: "age", op: ">", value: 3},
			{path: "address.city", op: "=", value: "London"},
			{path: "seen", op: "=", value: now},
		}, pushed)
	})

	t.Run("will evaluate other values in process", func(t *testing.T) {
		pushed, local, err := compileFilter(map[string]any{
			"admin":  true,
			"parent": nil,
			"tags":   map[string]any{"$in": []any{"a"}},
		})
		require.NoError(t, err)
		require.Empty(t, pushed)
		require.Len(t, local, 3)
	})

	t.Run("will return an InvalidFilterError", func(t *testing.T) {
		t.Run("if $in is not given an array", func(t *testing.T) {
			_, _, err := compileFilter(map[string]any{"tags": map[string]any{"$in": "a"}})
			require.ErrorAs(t, err, &InvalidFilterError{})
		})

		t.Run("if $or has no clauses", func(t *testing.T) {
			_, _, err := compileFilter(map[string]any{"$or": []any{}})
			require.ErrorAs(t, err, &InvalidFilterError{})
		})

		t.Run("if an $or clause is not a document", func(t *testing.T) {
			_, _, err := compileFilter(map[string]any{"$or": []any{"a"}})
			require.ErrorAs(t, err, &InvalidFilterError{})
		})

		t.Run("if an unknown top level operator is used", func(t *testing.T) {
			_, _, err := compileFilter(map[string]any{"$nor": []any{}})
			require.ErrorAs(t, err, &InvalidFilterError{})
		})
	})
}

func TestMatches(t *testing.T) {
	doc := map[string]any{"name": "ada", "age": 36, "tags": "math"}

	t.Run("will match if any $or clause matches", func(t *testing.T) {
		ok, err := Matches(map[string]any{
			"$or": []any{
				map[string]any{"name": "grace"},
				map[string]any{"age": map[string]any{"$lt": 40}},
			},
		}, doc)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("will not match if no $or clause matches", func(t *testing.T) {
		ok, err := Matches(map[string]any{
			"name": "ada",
			"$or": []any{
				map[string]any{"name": "grace"},
				map[string]any{"age": map[string]any{"$gt": 40}},
			},
		}, doc)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("will evaluate $or nested in $and", func(t *testing.T) {
		ok, err := Matches(map[string]any{
			"$and": []any{
				map[string]any{"$or": []any{map[string]any{"tags": "math"}}},
				map[string]any{"name": "ada"},
			},
		}, doc)
		require.NoError(t, err)
		require.True(t, ok)
	})
}

func TestProject(t *testing.T) {
	t.Run("will return the document if nothing is selected", func(t *testing.T) {
		doc := map[string]any{"_id": "1", "a": 1}
		require.Equal(t, doc, Project(doc, nil))
	})

	t.Run("will skip missing fields", func(t *testing.T) {
		doc := map[string]any{"_id": "1", "a": 1}
		require.Equal(t, map[string]any{"_id": "1"}, Project(doc, []string{"b.c"}))
	})
}
