// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package schema

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMakeSchema(t *testing.T) {
	t.Run("will return ErrMissingDefinition", func(t *testing.T) {
		t.Run("if the definition is nil", func(t *testing.T) {
			_, err := MakeSchema(nil)
			require.ErrorIs(t, err, ErrMissingDefinition)
		})
	})

	t.Run("will accept an empty definition", func(t *testing.T) {
		s, err := MakeSchema(Definition{})
		require.NoError(t, err)

		def := s.Definition()
		require.Len(t, def, 1)
		require.Contains(t, def, MetadataKey)
	})

	t.Run("will add the default metadata", func(t *testing.T) {
		t.Run("if the definition has no metadata", func(t *testing.T) {
			s, err := MakeSchema(Definition{
				"name": map[string]any{KeyType: TypeString, KeyRequired: true},
			})
			require.NoError(t, err)

			require.Equal(t, Definition{
				"lastUpdated": map[string]any{KeyType: TypeDate, KeyDefault: Now},
				"createdAt":   map[string]any{KeyType: TypeDate, KeyDefault: Now},
				"deleted":     map[string]any{KeyType: TypeBoolean, KeyDefault: false},
				"version": map[string]any{
					"document": map[string]any{KeyType: TypeNumber, KeyDefault: 0},
				},
			}, s.Metadata())
			require.Contains(t, s.Definition(), "name")
		})
	})

	t.Run("will let caller metadata leaves win", func(t *testing.T) {
		def := Definition{
			"name": "String",
			MetadataKey: Definition{
				"deleted": map[string]any{KeyDefault: true},
				"version": map[string]any{
					"document": map[string]any{KeyDefault: 10},
				},
				"owner": map[string]any{KeyType: "String"},
			},
		}

		s, err := MakeSchema(def)
		require.NoError(t, err)

		meta := s.Metadata()
		require.Equal(t, map[string]any{KeyType: TypeDate, KeyDefault: Now}, meta["lastUpdated"])
		require.Equal(t, map[string]any{KeyType: TypeDate, KeyDefault: Now}, meta["createdAt"])
		require.Equal(t, map[string]any{KeyType: TypeBoolean, KeyDefault: true}, meta["deleted"])
		require.Equal(t, map[string]any{
			"document": map[string]any{KeyType: TypeNumber, KeyDefault: 10},
		}, meta["version"])
		require.Equal(t, map[string]any{KeyType: "String"}, meta["owner"])
	})

	t.Run("will not modify the given definition", func(t *testing.T) {
		custom := map[string]any{"deleted": map[string]any{KeyDefault: true}}
		def := Definition{"name": "String", MetadataKey: custom}

		_, err := MakeSchema(def)
		require.NoError(t, err)

		require.Equal(t, map[string]any{"deleted": map[string]any{KeyDefault: true}}, custom)
	})

	t.Run("will not share defaults between schemas", func(t *testing.T) {
		a, err := MakeSchema(Definition{
			"name":      "String",
			MetadataKey: map[string]any{"deleted": map[string]any{KeyDefault: true}},
		})
		require.NoError(t, err)

		b, err := MakeSchema(Definition{"name": "String"})
		require.NoError(t, err)

		require.NotEqual(t, a.Metadata()["deleted"], b.Metadata()["deleted"])
	})
}

func TestSchema_ApplyDefaults(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("will fill missing fields", func(t *testing.T) {
		s, err := MakeSchema(
			Definition{
				"name":   map[string]any{KeyType: TypeString, KeyDefault: "anonymous"},
				"age":    map[string]any{KeyType: TypeNumber},
				"labels": map[string]any{KeyType: TypeArray, KeyDefault: []any{}},
			},
			WithClock(func() time.Time { return now }),
		)
		require.NoError(t, err)

		doc := map[string]any{"age": 3}
		s.ApplyDefaults(doc)

		require.Equal(t, map[string]any{
			"name":   "anonymous",
			"age":    3,
			"labels": []any{},
			MetadataKey: map[string]any{
				"lastUpdated": now,
				"createdAt":   now,
				"deleted":     false,
				"version":     map[string]any{"document": 0},
			},
		}, doc)
	})

	t.Run("will keep values which are present", func(t *testing.T) {
		s, err := MakeSchema(Definition{"name": map[string]any{KeyType: TypeString, KeyDefault: "x"}})
		require.NoError(t, err)

		doc := map[string]any{
			"name":      "ada",
			MetadataKey: map[string]any{"deleted": true},
		}
		s.ApplyDefaults(doc)

		require.Equal(t, "ada", doc["name"])
		meta := doc[MetadataKey].(map[string]any)
		require.Equal(t, true, meta["deleted"])
		require.Contains(t, meta, "createdAt")
	})
}

func TestSchema_RunHooks(t *testing.T) {
	t.Run("will stop at the first error", func(t *testing.T) {
		s, err := MakeSchema(Definition{"name": "String"})
		require.NoError(t, err)

		hookErr := errors.New("nope")
		var calls int
		s.Pre(Save, func(ctx context.Context, w *Write) error {
			calls++
			return hookErr
		})
		s.Pre(Save, func(ctx context.Context, w *Write) error {
			calls++
			return nil
		})

		err = s.RunHooks(context.Background(), &Write{Event: Save, Doc: map[string]any{}})
		require.ErrorIs(t, err, hookErr)
		require.Equal(t, 1, calls)
	})

	t.Run("will only run hooks for the given event", func(t *testing.T) {
		s, err := MakeSchema(Definition{"name": "String"})
		require.NoError(t, err)

		var calls int
		s.Pre(Update, func(ctx context.Context, w *Write) error {
			calls++
			return nil
		})

		err = s.RunHooks(context.Background(), &Write{Event: Save, Doc: map[string]any{}})
		require.NoError(t, err)
		require.Zero(t, calls)
	})
}

func TestParseField(t *testing.T) {
	t.Run("will treat maps without a type as sub documents", func(t *testing.T) {
		f := ParseField(map[string]any{"street": "String"})
		require.Equal(t, TypeObject, f.Type)
		require.Equal(t, Definition{"street": "String"}, f.Fields)
	})

	t.Run("will parse type names case insensitively", func(t *testing.T) {
		require.Equal(t, TypeDate, ParseField("date").Type)
		require.Equal(t, TypeBoolean, ParseField(map[string]any{KeyType: "boolean"}).Type)
	})

	t.Run("will parse single element lists as arrays", func(t *testing.T) {
		f := ParseField([]any{"Number"})
		require.Equal(t, TypeArray, f.Type)
		require.NotNil(t, f.Items)
		require.Equal(t, TypeNumber, f.Items.Type)
	})
}

func TestInt64(t *testing.T) {
	for _, v := range []any{int(7), int32(7), int64(7), float64(7), float32(7)} {
		n, ok := Int64(v)
		require.True(t, ok)
		require.Equal(t, int64(7), n)
	}

	_, ok := Int64("7")
	require.False(t, ok)
}
