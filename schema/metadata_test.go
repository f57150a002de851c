// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package schema

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

func TestInjectDefaults(t *testing.T) {
	t.Run("will register ascending metadata indexes", func(t *testing.T) {
		s, err := MakeSchema(Definition{"name": "String"})
		require.NoError(t, err)

		InjectDefaults(s)
		InjectDefaults(s)

		require.Equal(t, []Index{
			{Field: LastUpdatedPath, Order: 1},
			{Field: CreatedAtPath, Order: 1},
			{Field: DeletedPath, Order: 1},
		}, s.Indexes())
	})

	t.Run("will maintain metadata across writes", func(t *testing.T) {
		start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		s, err := MakeSchema(
			Definition{"name": "String"},
			WithClock(newClock(start, time.Second)),
		)
		require.NoError(t, err)
		InjectDefaults(s)

		ctx := context.Background()
		doc := map[string]any{"name": "ada"}
		s.ApplyDefaults(doc)

		err = s.RunHooks(ctx, &Write{Event: Save, Doc: doc, IsNew: true})
		require.NoError(t, err)

		meta := doc[MetadataKey].(map[string]any)
		require.Equal(t, int64(1), meta["version"].(map[string]any)["document"])
		createdAt := meta["createdAt"].(time.Time)
		first := meta["lastUpdated"].(time.Time)
		require.Equal(t, createdAt, first)

		for i, ev := range []Event{Save, Update, Save} {
			err = s.RunHooks(ctx, &Write{Event: ev, Doc: doc})
			require.NoError(t, err)

			require.Equal(t, int64(i+2), meta["version"].(map[string]any)["document"])
			require.Equal(t, createdAt, meta["createdAt"])

			next := meta["lastUpdated"].(time.Time)
			require.True(t, next.After(first))
			first = next
		}
	})

	t.Run("will keep lastUpdated strictly increasing", func(t *testing.T) {
		t.Run("if the clock does not advance", func(t *testing.T) {
			frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			s, err := MakeSchema(
				Definition{"name": "String"},
				WithClock(func() time.Time { return frozen }),
			)
			require.NoError(t, err)
			InjectDefaults(s)

			doc := map[string]any{}
			s.ApplyDefaults(doc)
			ctx := context.Background()
			require.NoError(t, s.RunHooks(ctx, &Write{Event: Save, Doc: doc, IsNew: true}))
			require.NoError(t, s.RunHooks(ctx, &Write{Event: Save, Doc: doc}))

			meta := doc[MetadataKey].(map[string]any)
			require.Equal(t, frozen.Add(time.Millisecond), meta["lastUpdated"])
			require.Equal(t, frozen, meta["createdAt"])
		})
	})

	t.Run("will leave documents without metadata untouched", func(t *testing.T) {
		s, err := MakeSchema(Definition{"name": "String"})
		require.NoError(t, err)
		InjectDefaults(s)

		doc := map[string]any{"name": "ada"}
		err = s.RunHooks(context.Background(), &Write{Event: Update, Doc: doc})
		require.NoError(t, err)
		require.Equal(t, map[string]any{"name": "ada"}, doc)
	})

	t.Run("will not add a version if the metadata has none", func(t *testing.T) {
		s, err := MakeSchema(Definition{"name": "String"})
		require.NoError(t, err)
		InjectDefaults(s)

		doc := map[string]any{MetadataKey: map[string]any{}}
		err = s.RunHooks(context.Background(), &Write{Event: Save, Doc: doc, IsNew: true})
		require.NoError(t, err)

		meta := doc[MetadataKey].(map[string]any)
		require.NotContains(t, meta, "version")
		require.Contains(t, meta, "lastUpdated")
		require.Contains(t, meta, "createdAt")
	})
}
