// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package model binds a schema to a document store collection and exposes
// the CRUD operations of the result as a [Handle].
package model

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/z5labs/crud"
	"github.com/z5labs/crud/controller"
	"github.com/z5labs/crud/params"
	"github.com/z5labs/crud/schema"
	"github.com/z5labs/crud/store"
)

// Options configure a [Handle].
type Options struct {
	log                 *slog.Logger
	defaultFilter       map[string]any
	permanentDeleteData bool
	collectionName      string
	metrics             *store.Metrics
	maxConcurrency      int
}

// Option sets a value on [Options].
type Option func(*Options)

// Logger overrides the default logger.
func Logger(log *slog.Logger) Option {
	return func(o *Options) {
		o.log = log
	}
}

// DefaultFilter restricts every operation to records matching filter.
func DefaultFilter(filter map[string]any) Option {
	return func(o *Options) {
		o.defaultFilter = filter
	}
}

// PermanentDeleteData makes Destroy remove records instead of marking
// them as deleted.
func PermanentDeleteData(b bool) Option {
	return func(o *Options) {
		o.permanentDeleteData = b
	}
}

// CollectionName overrides the collection records are stored in. It
// defaults to the lower cased plural of the model name.
func CollectionName(name string) Option {
	return func(o *Options) {
		o.collectionName = name
	}
}

// Metrics records store operation metrics in m.
func Metrics(m *store.Metrics) Option {
	return func(o *Options) {
		o.metrics = m
	}
}

// MaxConcurrency bounds the records a bulk operation works on at once.
func MaxConcurrency(n int) Option {
	return func(o *Options) {
		o.maxConcurrency = n
	}
}

// Handle is a model bound to its collection. The operation fields are set
// once by [New] and the Handle is safe for concurrent use.
type Handle struct {
	Name   string
	Schema *schema.Schema
	Model  *store.Model

	// SwagMapper normalizes requests into the parameters every operation
	// accepts.
	SwagMapper func(params.Request) params.Params

	Index             controller.Operation
	Aggregate         controller.Operation
	Create            controller.Operation
	Show              controller.Operation
	Update            controller.Operation
	Destroy           controller.Operation
	Rucc              controller.Operation
	Count             controller.Operation
	BulkUpdate        controller.Operation
	BulkUpload        controller.Operation
	BulkShow          controller.Operation
	MarkAsDeleted     controller.Operation
	BulkDestroy       controller.Operation
	BulkMarkAsDeleted controller.Operation
}

// New registers the metadata indexes and hooks on s, binds it to a
// collection opened through opener and returns the bound operations.
func New(ctx context.Context, s *schema.Schema, name string, opener store.Opener, opts ...Option) (*Handle, error) {
	if name == "" {
		return nil, MissingNameError{}
	}

	o := &Options{
		log: crud.Logger("github.com/z5labs/crud/model"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.collectionName == "" {
		o.collectionName = Pluralize(name)
	}

	s = schema.InjectDefaults(s)

	modelOpts := []store.ModelOption{store.Logger(o.log)}
	if o.metrics != nil {
		modelOpts = append(modelOpts, store.WithMetrics(o.metrics))
	}
	m, err := store.NewModel(ctx, s, o.collectionName, opener, modelOpts...)
	if err != nil {
		return nil, fmt.Errorf("model: failed to bind %s: %w", name, err)
	}

	var ctrlOpts []controller.Option
	if o.maxConcurrency > 0 {
		ctrlOpts = append(ctrlOpts, controller.MaxConcurrency(o.maxConcurrency))
	}
	c := controller.New(m, name, o.log, o.defaultFilter, o.permanentDeleteData, ctrlOpts...)

	o.log.InfoContext(ctx, "bound model",
		slog.String("model", name),
		slog.String("collection", o.collectionName),
		slog.Bool("permanent_delete_data", o.permanentDeleteData),
	)

	return &Handle{
		Name:              name,
		Schema:            s,
		Model:             m,
		SwagMapper:        params.Map,
		Index:             c.Index,
		Aggregate:         c.Aggregate,
		Create:            c.Create,
		Show:              c.Show,
		Update:            c.Update,
		Destroy:           c.Destroy,
		Rucc:              c.Rucc,
		Count:             c.Count,
		BulkUpdate:        c.BulkUpdate,
		BulkUpload:        c.BulkUpload,
		BulkShow:          c.BulkShow,
		MarkAsDeleted:     c.MarkAsDeleted,
		BulkDestroy:       c.BulkDestroy,
		BulkMarkAsDeleted: c.BulkMarkAsDeleted,
	}, nil
}

// FromDefinition builds the schema from def and calls [New].
func FromDefinition(ctx context.Context, def schema.Definition, name string, opener store.Opener, opts ...Option) (*Handle, error) {
	s, err := schema.MakeSchema(def)
	if err != nil {
		return nil, fmt.Errorf("model: invalid schema for %s: %w", name, err)
	}
	return New(ctx, s, name, opener, opts...)
}

// MissingNameError is returned when a model is created without a name.
type MissingNameError struct{}

func (MissingNameError) Error() string {
	return "model: name must not be empty"
}
