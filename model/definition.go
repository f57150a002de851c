// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/z5labs/crud/config"
	"github.com/z5labs/crud/schema"
	"github.com/z5labs/crud/store"
)

// Definition declares a model in a configuration file.
type Definition struct {
	Name                string         `yaml:"name"`
	CollectionName      string         `yaml:"collectionName"`
	BasePath            string         `yaml:"basePath"`
	PermanentDeleteData bool           `yaml:"permanentDeleteData"`
	DefaultFilter       map[string]any `yaml:"defaultFilter"`
	Schema              map[string]any `yaml:"schema"`
}

// Definitions is the document format of a models file:
//
//	models:
//	  - name: Book
//	    basePath: /books
//	    schema:
//	      title: String
//	      pages: { type: Number, default: 0 }
type Definitions struct {
	Models []Definition `yaml:"models"`
}

// ReadDefinitions decodes YAML model definitions. Unknown keys are
// rejected.
func ReadDefinitions(r config.Reader[io.Reader]) config.Reader[Definitions] {
	return config.UnmarshalYAML[Definitions](r)
}

// Path returns the base path the model is served under, which defaults
// to its collection name.
func (d Definition) Path() string {
	if d.BasePath != "" {
		return d.BasePath
	}
	if d.CollectionName != "" {
		return "/" + d.CollectionName
	}
	return "/" + Pluralize(d.Name)
}

// Options converts the definition into [Option]s.
func (d Definition) Options() []Option {
	opts := []Option{
		PermanentDeleteData(d.PermanentDeleteData),
	}
	if d.CollectionName != "" {
		opts = append(opts, CollectionName(d.CollectionName))
	}
	if len(d.DefaultFilter) > 0 {
		opts = append(opts, DefaultFilter(d.DefaultFilter))
	}
	return opts
}

// Load creates and registers a handle for every definition. opts apply to
// all of them and are overridden by the options of each definition.
func (r *Registry) Load(ctx context.Context, defs []Definition, opener store.Opener, opts ...Option) error {
	for _, d := range defs {
		s, err := schema.MakeSchema(schema.Definition(d.Schema))
		if err != nil {
			return fmt.Errorf("model: invalid schema for %s: %w", d.Name, err)
		}

		_, err = r.New(ctx, s, d.Name, opener, slices.Concat(opts, d.Options())...)
		if err != nil {
			return err
		}
	}
	return nil
}
