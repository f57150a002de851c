// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package schema augments model definitions with lifecycle metadata.
//
// Every record managed by this module carries a _metadata sub document
// tracking when it was created, when it was last written, whether it has
// been soft deleted and how many times it has been written. [MakeSchema]
// merges the metadata defaults into a caller's [Definition] and
// [InjectDefaults] registers the indexes and pre-write hook which keep the
// metadata up to date.
package schema

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"dario.cat/mergo"
)

// MetadataKey is the name of the metadata sub document.
const MetadataKey = "_metadata"

// ErrMissingDefinition is returned by [MakeSchema] when given a nil
// definition. An empty definition is valid and only gains the metadata.
var ErrMissingDefinition = errors.New("schema: missing definition")

// Definition maps field names to descriptors. See [ParseField] for the
// accepted descriptor forms.
type Definition map[string]any

// Event identifies the kind of write a pre-write hook is run for.
type Event string

const (
	// Save covers inserts and whole document replacements.
	Save Event = "save"

	// Update covers partial updates applied by the store.
	Update Event = "update"
)

// Write is the document about to be written.
type Write struct {
	Event Event
	Doc   map[string]any
	IsNew bool
}

// PreHook runs before a document is written. Returning an error aborts
// the write.
type PreHook func(context.Context, *Write) error

// Index is an index the store should maintain.
type Index struct {
	Field string

	// Order is 1 for ascending and -1 for descending.
	Order int
}

// Schema is an augmented [Definition] with its indexes and hooks.
type Schema struct {
	def     Definition
	indexes []Index
	hooks   map[Event][]PreHook
	clock   func() time.Time

	injected bool
}

// Option configures a [Schema].
type Option func(*Schema)

// WithClock overrides the clock used for timestamps.
func WithClock(f func() time.Time) Option {
	return func(s *Schema) {
		s.clock = f
	}
}

// MakeSchema returns a [Schema] for def whose _metadata sub document is the
// standard metadata deep merged with any _metadata def declares. Leaves
// declared by def win, every other leaf keeps its default.
//
// def is not modified.
func MakeSchema(def Definition, opts ...Option) (*Schema, error) {
	if def == nil {
		return nil, ErrMissingDefinition
	}

	merged := make(Definition, len(def)+1)
	for name, v := range def {
		merged[name] = clone(v)
	}

	meta := metadataDefaults()
	if custom, ok := asMap(merged[MetadataKey]); ok {
		err := mergo.Merge(&meta, normalize(custom), mergo.WithOverride)
		if err != nil {
			return nil, fmt.Errorf("schema: failed to merge metadata: %w", err)
		}
	}
	merged[MetadataKey] = meta

	s := &Schema{
		def:   merged,
		hooks: make(map[Event][]PreHook),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func metadataDefaults() map[string]any {
	return map[string]any{
		"lastUpdated": map[string]any{KeyType: TypeDate, KeyDefault: Now},
		"createdAt":   map[string]any{KeyType: TypeDate, KeyDefault: Now},
		"deleted":     map[string]any{KeyType: TypeBoolean, KeyDefault: false},
		"version": map[string]any{
			"document": map[string]any{KeyType: TypeNumber, KeyDefault: 0},
		},
	}
}

// normalize converts every nested map into a map[string]any so the merge
// never sees two distinct map types for the same key.
func normalize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := asMap(v); ok {
			out[k] = normalize(sub)
			continue
		}
		out[k] = v
	}
	return out
}

// Definition returns the augmented definition.
func (s *Schema) Definition() Definition {
	return s.def
}

// Metadata returns the merged _metadata definition.
func (s *Schema) Metadata() Definition {
	m, _ := asMap(s.def[MetadataKey])
	return Definition(m)
}

// Now returns the current time according to the schema clock, truncated
// to the millisecond precision of the stores.
func (s *Schema) Now() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}

// Index registers an index on field.
func (s *Schema) Index(field string, order int) {
	idx := Index{Field: field, Order: order}
	if slices.Contains(s.indexes, idx) {
		return
	}
	s.indexes = append(s.indexes, idx)
}

// Indexes returns the registered indexes in registration order.
func (s *Schema) Indexes() []Index {
	return slices.Clone(s.indexes)
}

// Pre registers a hook to run before writes of the given event.
func (s *Schema) Pre(ev Event, h PreHook) {
	s.hooks[ev] = append(s.hooks[ev], h)
}

// RunHooks runs the hooks registered for w.Event in registration order.
// The first error stops the chain.
func (s *Schema) RunHooks(ctx context.Context, w *Write) error {
	for _, h := range s.hooks[w.Event] {
		err := h(ctx, w)
		if err != nil {
			return err
		}
	}
	return nil
}

// ApplyDefaults fills every missing field of doc which has a default.
func (s *Schema) ApplyDefaults(doc map[string]any) {
	s.def.ApplyDefaults(doc, s.Now())
}
