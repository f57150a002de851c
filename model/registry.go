// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"context"

	"github.com/z5labs/crud/concurrent"
	"github.com/z5labs/crud/schema"
	"github.com/z5labs/crud/store"
)

// ModelExistsError is returned when a model name is registered twice.
type ModelExistsError struct {
	Name string
}

func (e ModelExistsError) Error() string {
	return "model: " + e.Name + " is already registered"
}

// Registry holds the handles of a service by model name.
type Registry struct {
	handles *concurrent.Cache[string, *Handle]
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		handles: concurrent.NewCache[string, *Handle](),
	}
}

// Register adds h under its name.
func (r *Registry) Register(h *Handle) error {
	if !r.handles.PutIfAbsent(h.Name, h) {
		return ModelExistsError{Name: h.Name}
	}
	return nil
}

// New creates a handle with [New] and registers it.
func (r *Registry) New(ctx context.Context, s *schema.Schema, name string, opener store.Opener, opts ...Option) (*Handle, error) {
	if _, ok := r.handles.Get(name); ok {
		return nil, ModelExistsError{Name: name}
	}

	h, err := New(ctx, s, name, opener, opts...)
	if err != nil {
		return nil, err
	}
	err = r.Register(h)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Get returns the handle registered under name.
func (r *Registry) Get(name string) (*Handle, bool) {
	return r.handles.Get(name)
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	return r.handles.Len()
}

// Range calls f for each handle in registration order until f returns
// false.
func (r *Registry) Range(f func(*Handle) bool) {
	r.handles.Range(func(_ string, h *Handle) bool {
		return f(h)
	})
}
