// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package controller implements the CRUD operations of a model.
//
// Every operation takes the normalized request parameters produced by the
// params package and returns a [Response] or an error. Errors defined by
// this package carry the HTTP status they should be served with.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/z5labs/crud"
	"github.com/z5labs/crud/params"
	"github.com/z5labs/crud/schema"
	"github.com/z5labs/crud/store"

	"dario.cat/mergo"
)

// Parameter names read by the operations.
const (
	ParamID     = "id"
	ParamData   = params.DataKey
	ParamFilter = "filter"
	ParamSort   = "sort"
	ParamPage   = "page"
	ParamCount  = "count"
	ParamSelect = "select"
)

// DefaultCount is the page size used when no count is given.
const DefaultCount = 10

// Response is the outcome of an operation.
type Response struct {
	Status int
	Body   any
}

// Operation is a CRUD operation bound to a model.
type Operation func(context.Context, params.Params) (Response, error)

// Options configure a [ParamController].
type Options struct {
	maxConcurrency int
}

// Option sets a value on [Options].
type Option func(*Options)

// MaxConcurrency bounds the number of records a bulk operation works on
// at the same time.
func MaxConcurrency(n int) Option {
	return func(o *Options) {
		o.maxConcurrency = n
	}
}

// ParamController implements the CRUD operations for a single model.
type ParamController struct {
	model               *store.Model
	name                string
	log                 *slog.Logger
	defaultFilter       map[string]any
	permanentDeleteData bool
	maxConcurrency      int
}

// New returns a [ParamController] for model. defaultFilter restricts every
// read and write to the records it matches. Destroy physically removes
// records when permanentDeleteData is set and soft deletes them otherwise.
func New(model *store.Model, name string, log *slog.Logger, defaultFilter map[string]any, permanentDeleteData bool, opts ...Option) *ParamController {
	o := &Options{
		maxConcurrency: 8,
	}
	for _, opt := range opts {
		opt(o)
	}
	if log == nil {
		log = crud.Logger("github.com/z5labs/crud/controller")
	}
	if defaultFilter == nil {
		defaultFilter = map[string]any{}
	}

	return &ParamController{
		model:               model,
		name:                name,
		log:                 log,
		defaultFilter:       defaultFilter,
		permanentDeleteData: permanentDeleteData,
		maxConcurrency:      max(1, o.maxConcurrency),
	}
}

// Index lists records matching the filter parameter, paginated by page and
// count. A count of -1 returns every match.
func (c *ParamController) Index(ctx context.Context, p params.Params) (Response, error) {
	filter, err := c.filter(p)
	if err != nil {
		return Response{}, c.translate(err)
	}

	page, err := p.Int(ParamPage, 1)
	if err != nil {
		return Response{}, c.translate(err)
	}
	if page < 1 {
		return Response{}, BadRequestError{Cause: params.InvalidParamError{Name: ParamPage, Cause: errors.New("must be at least 1")}}
	}

	count, err := p.Int(ParamCount, DefaultCount)
	if err != nil {
		return Response{}, c.translate(err)
	}

	q := store.Query{Filter: filter, Select: p.List(ParamSelect)}
	if sort, ok := p.String(ParamSort); ok {
		q.Sort = store.ParseSort(sort)
	}
	switch {
	case count == -1:
	case count < 1:
		return Response{}, BadRequestError{Cause: params.InvalidParamError{Name: ParamCount, Cause: errors.New("must be positive or -1")}}
	case page-1 > math.MaxInt/count:
		return Response{}, BadRequestError{Cause: params.InvalidParamError{Name: ParamPage, Cause: errors.New("is out of range")}}
	default:
		q.Skip = (page - 1) * count
		q.Limit = count
	}

	docs, err := c.model.Find(ctx, q)
	if err != nil {
		return Response{}, c.translate(err)
	}
	return Response{Status: http.StatusOK, Body: docs}, nil
}

// Count returns the number of records matching the filter parameter.
func (c *ParamController) Count(ctx context.Context, p params.Params) (Response, error) {
	filter, err := c.filter(p)
	if err != nil {
		return Response{}, c.translate(err)
	}

	n, err := c.model.Count(ctx, store.Query{Filter: filter})
	if err != nil {
		return Response{}, c.translate(err)
	}
	return Response{Status: http.StatusOK, Body: map[string]any{"count": n}}, nil
}

// Aggregate runs the aggregation pipeline given as data. A $match stage
// restricting the input to visible records is prepended.
func (c *ParamController) Aggregate(ctx context.Context, p params.Params) (Response, error) {
	stages, ok := p[ParamData].([]any)
	if !ok {
		return Response{}, BadRequestError{Cause: InvalidDataError{Expected: "an array of pipeline stages"}}
	}

	match := store.And(c.defaultFilter, map[string]any{
		schema.DeletedPath: map[string]any{"$ne": true},
	})
	pipeline := make([]any, 0, len(stages)+1)
	pipeline = append(pipeline, map[string]any{"$match": match})
	pipeline = append(pipeline, stages...)

	docs, err := c.model.Aggregate(ctx, pipeline)
	if err != nil {
		return Response{}, c.translate(err)
	}
	return Response{Status: http.StatusOK, Body: docs}, nil
}

// Create inserts the record, or array of records, given as data.
func (c *ParamController) Create(ctx context.Context, p params.Params) (Response, error) {
	switch data := p[ParamData].(type) {
	case map[string]any:
		doc, err := c.create(ctx, data)
		if err != nil {
			return Response{}, c.translate(err)
		}
		return Response{Status: http.StatusCreated, Body: doc}, nil
	case []any:
		docs := make([]map[string]any, 0, len(data))
		for _, el := range data {
			m, ok := el.(map[string]any)
			if !ok {
				return Response{}, BadRequestError{Cause: InvalidDataError{Expected: "an object or an array of objects"}}
			}
			doc, err := c.create(ctx, m)
			if err != nil {
				return Response{}, c.translate(err)
			}
			docs = append(docs, doc)
		}
		return Response{Status: http.StatusCreated, Body: docs}, nil
	default:
		return Response{}, BadRequestError{Cause: InvalidDataError{Expected: "an object or an array of objects"}}
	}
}

// Show returns the record identified by id.
func (c *ParamController) Show(ctx context.Context, p params.Params) (Response, error) {
	id, err := p.RequiredString(ParamID)
	if err != nil {
		return Response{}, c.translate(err)
	}

	doc, err := c.find(ctx, id)
	if err != nil {
		return Response{}, c.translate(err)
	}
	return Response{Status: http.StatusOK, Body: store.Project(store.Public(doc), p.List(ParamSelect))}, nil
}

// Update deep merges data into the record identified by id. Metadata and
// the id can not be changed by the caller.
func (c *ParamController) Update(ctx context.Context, p params.Params) (Response, error) {
	id, data, err := idAndData(p)
	if err != nil {
		return Response{}, c.translate(err)
	}

	doc, err := c.update(ctx, id, data, false)
	if err != nil {
		return Response{}, c.translate(err)
	}
	return Response{Status: http.StatusOK, Body: doc}, nil
}

// Rucc is a read-update-compare-commit: like [ParamController.Update] but
// data must carry the _metadata.version.document the caller last read, and
// the update is rejected with a [ConflictError] if the record has been
// written since.
func (c *ParamController) Rucc(ctx context.Context, p params.Params) (Response, error) {
	id, data, err := idAndData(p)
	if err != nil {
		return Response{}, c.translate(err)
	}

	doc, err := c.update(ctx, id, data, true)
	if err != nil {
		return Response{}, c.translate(err)
	}
	return Response{Status: http.StatusOK, Body: doc}, nil
}

// Destroy deletes the record identified by id. Unless the controller was
// configured to permanently delete data the record is only marked as
// deleted.
func (c *ParamController) Destroy(ctx context.Context, p params.Params) (Response, error) {
	id, err := p.RequiredString(ParamID)
	if err != nil {
		return Response{}, c.translate(err)
	}

	err = c.destroy(ctx, id)
	if err != nil {
		return Response{}, c.translate(err)
	}
	return Response{Status: http.StatusOK, Body: message(fmt.Sprintf("%s %s deleted", c.name, id))}, nil
}

// MarkAsDeleted soft deletes the record identified by id regardless of the
// delete policy.
func (c *ParamController) MarkAsDeleted(ctx context.Context, p params.Params) (Response, error) {
	id, err := p.RequiredString(ParamID)
	if err != nil {
		return Response{}, c.translate(err)
	}

	err = c.markAsDeleted(ctx, id)
	if err != nil {
		return Response{}, c.translate(err)
	}
	return Response{Status: http.StatusOK, Body: message(fmt.Sprintf("%s %s marked as deleted", c.name, id))}, nil
}

func message(msg string) map[string]any {
	return map[string]any{"message": msg}
}

func idAndData(p params.Params) (string, map[string]any, error) {
	id, err := p.RequiredString(ParamID)
	if err != nil {
		return "", nil, err
	}
	data, ok := p[ParamData].(map[string]any)
	if !ok {
		return "", nil, InvalidDataError{Expected: "an object"}
	}
	return id, data, nil
}

func (c *ParamController) filter(p params.Params) (map[string]any, error) {
	f, err := p.Object(ParamFilter)
	if err != nil {
		return nil, err
	}
	return store.And(c.defaultFilter, f), nil
}

// find returns the record with id if it is visible through this
// controller.
func (c *ParamController) find(ctx context.Context, id string) (map[string]any, error) {
	doc, err := c.model.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if store.IsDeleted(doc) {
		return nil, NotFoundError{Model: c.name, ID: id}
	}
	ok, err := store.Matches(c.defaultFilter, doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NotFoundError{Model: c.name, ID: id}
	}
	return doc, nil
}

func (c *ParamController) create(ctx context.Context, data map[string]any) (map[string]any, error) {
	doc := writable(data)
	if id, ok := data[store.KeyField].(string); ok && id != "" {
		doc[store.KeyField] = id
	}

	out, err := c.model.Insert(ctx, doc)
	if err != nil {
		return nil, err
	}

	id, _ := out[store.KeyField].(string)
	crud.Audit(ctx, c.log, "created record",
		slog.String("model", c.name),
		slog.String("id", id),
	)
	return store.Public(out), nil
}

func (c *ParamController) update(ctx context.Context, id string, data map[string]any, compare bool) (map[string]any, error) {
	doc, err := c.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if compare {
		expected, ok := version(data)
		if !ok {
			return nil, params.MissingParamError{Name: ParamData + "." + schema.VersionDocumentPath}
		}
		actual, _ := version(doc)
		if expected != actual {
			return nil, ConflictError{Model: c.name, ID: id, Expected: expected, Actual: actual}
		}
	}

	err = mergo.Merge(&doc, writable(data), mergo.WithOverride)
	if err != nil {
		return nil, BadRequestError{Cause: fmt.Errorf("failed to merge data: %w", err)}
	}

	err = c.model.Replace(ctx, doc, schema.Update)
	if err != nil {
		return nil, err
	}

	v, _ := version(doc)
	crud.Audit(ctx, c.log, "updated record",
		slog.String("model", c.name),
		slog.String("id", id),
		slog.Int64("version", v),
	)
	return store.Public(doc), nil
}

func (c *ParamController) destroy(ctx context.Context, id string) error {
	if !c.permanentDeleteData {
		return c.markAsDeleted(ctx, id)
	}

	_, err := c.find(ctx, id)
	if err != nil {
		return err
	}
	err = c.model.Delete(ctx, id)
	if err != nil {
		return err
	}

	crud.Audit(ctx, c.log, "deleted record",
		slog.String("model", c.name),
		slog.String("id", id),
	)
	return nil
}

func (c *ParamController) markAsDeleted(ctx context.Context, id string) error {
	doc, err := c.find(ctx, id)
	if err != nil {
		return err
	}

	meta, ok := doc[schema.MetadataKey].(map[string]any)
	if !ok {
		meta = map[string]any{}
		doc[schema.MetadataKey] = meta
	}
	meta["deleted"] = true

	err = c.model.Replace(ctx, doc, schema.Update)
	if err != nil {
		return err
	}

	crud.Audit(ctx, c.log, "marked record as deleted",
		slog.String("model", c.name),
		slog.String("id", id),
	)
	return nil
}

func version(doc map[string]any) (int64, bool) {
	meta, ok := doc[schema.MetadataKey].(map[string]any)
	if !ok {
		return 0, false
	}
	v, ok := meta["version"].(map[string]any)
	if !ok {
		return 0, false
	}
	return schema.Int64(v["document"])
}

// writable returns a deep copy of data without the fields managed by the
// store.
func writable(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch k {
		case store.KeyField, store.RevisionField, schema.MetadataKey:
			continue
		}
		out[k] = clone(v)
	}
	return out
}

func clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = clone(el)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = clone(el)
		}
		return out
	default:
		return v
	}
}
