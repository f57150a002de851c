// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package schema

import (
	"context"
	"time"
)

// Metadata field paths.
const (
	LastUpdatedPath     = MetadataKey + ".lastUpdated"
	CreatedAtPath       = MetadataKey + ".createdAt"
	DeletedPath         = MetadataKey + ".deleted"
	VersionDocumentPath = MetadataKey + ".version.document"
)

// InjectDefaults registers ascending indexes on the metadata timestamps and
// deleted flag, and a hook for [Save] and [Update] writes which maintains
// the metadata of every document carrying a _metadata sub document.
//
// On each write the hook increments version.document, when a version block
// exists, and sets lastUpdated. createdAt is only set for new documents.
// Injecting into the same schema more than once has no further effect.
func InjectDefaults(s *Schema) *Schema {
	if s.injected {
		return s
	}
	s.injected = true

	s.Index(LastUpdatedPath, 1)
	s.Index(CreatedAtPath, 1)
	s.Index(DeletedPath, 1)

	hook := touchMetadata(s.Now)
	s.Pre(Save, hook)
	s.Pre(Update, hook)
	return s
}

func touchMetadata(now func() time.Time) PreHook {
	return func(ctx context.Context, w *Write) error {
		meta, ok := w.Doc[MetadataKey].(map[string]any)
		if !ok {
			return nil
		}

		if version, ok := meta["version"].(map[string]any); ok {
			n, _ := Int64(version["document"])
			version["document"] = n + 1
		}

		t := now()
		if prev, ok := meta["lastUpdated"].(time.Time); ok && !t.After(prev) && !w.IsNew {
			t = prev.Add(time.Millisecond)
		}
		meta["lastUpdated"] = t
		if w.IsNew {
			meta["createdAt"] = t
		}
		return nil
	}
}
