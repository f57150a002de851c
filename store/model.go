// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/z5labs/crud"
	"github.com/z5labs/crud/schema"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/docstore"
)

// ModelOptions configure a [Model].
type ModelOptions struct {
	log     *slog.Logger
	metrics *Metrics
}

// ModelOption sets a value on [ModelOptions].
type ModelOption func(*ModelOptions)

// Logger overrides the default logger.
func Logger(log *slog.Logger) ModelOption {
	return func(mo *ModelOptions) {
		mo.log = log
	}
}

// WithMetrics records operation metrics in m.
func WithMetrics(m *Metrics) ModelOption {
	return func(mo *ModelOptions) {
		mo.metrics = m
	}
}

// Model is a [schema.Schema] bound to a collection. Writes go through the
// schema defaults and pre-write hooks. Model is safe for concurrent use.
type Model struct {
	name    string
	schema  *schema.Schema
	coll    *docstore.Collection
	mcoll   *mongo.Collection
	log     *slog.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// NewModel binds s to the collection named collection. On MongoDB the
// indexes registered on s are created.
func NewModel(ctx context.Context, s *schema.Schema, collection string, opener Opener, opts ...ModelOption) (*Model, error) {
	mo := &ModelOptions{
		log: crud.Logger("github.com/z5labs/crud/store"),
	}
	for _, opt := range opts {
		opt(mo)
	}

	coll, err := opener.OpenCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open collection %s: %w", collection, err)
	}

	m := &Model{
		name:    collection,
		schema:  s,
		coll:    coll,
		log:     mo.log.With(slog.String("collection", collection)),
		tracer:  otel.Tracer("github.com/z5labs/crud/store"),
		metrics: mo.metrics,
	}

	var mcoll *mongo.Collection
	if coll.As(&mcoll) {
		m.mcoll = mcoll
	}

	err = m.EnsureIndexes(ctx)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Name returns the collection name.
func (m *Model) Name() string {
	return m.name
}

// Schema returns the bound schema.
func (m *Model) Schema() *schema.Schema {
	return m.schema
}

func (m *Model) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	spanCtx, span := m.tracer.Start(ctx, "Model."+op, trace.WithAttributes(
		append(attrs, attribute.String("db.collection.name", m.name))...,
	))
	start := time.Now()
	return spanCtx, func(errp *error) {
		err := *errp
		m.metrics.record(m.name, op, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// EnsureIndexes creates the schema indexes. It is a no-op on drivers which
// do not manage indexes.
func (m *Model) EnsureIndexes(ctx context.Context) (err error) {
	if m.mcoll == nil {
		return nil
	}
	indexes := m.schema.Indexes()
	if len(indexes) == 0 {
		return nil
	}

	ctx, end := m.start(ctx, "EnsureIndexes")
	defer end(&err)

	models := make([]mongo.IndexModel, len(indexes))
	for i, idx := range indexes {
		models[i] = mongo.IndexModel{
			Keys: bson.D{{Key: idx.Field, Value: idx.Order}},
		}
	}
	_, err = m.mcoll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("store: failed to create indexes on %s: %w", m.name, err)
	}
	m.log.DebugContext(ctx, "ensured indexes", slog.Int("count", len(models)))
	return nil
}

// Insert applies the schema defaults to a copy of doc, assigns an id when
// doc has none, runs the save hooks and creates the document.
func (m *Model) Insert(ctx context.Context, doc map[string]any) (out map[string]any, err error) {
	out = cloneDoc(doc)
	// A nil revision asks the driver to assign the first revision.
	out[RevisionField] = nil
	if id, ok := out[KeyField].(string); !ok || id == "" {
		out[KeyField] = uuid.NewString()
	}
	id := out[KeyField].(string)

	ctx, end := m.start(ctx, "Insert", attribute.String("db.document.id", id))
	defer end(&err)

	m.schema.ApplyDefaults(out)
	err = m.schema.RunHooks(ctx, &schema.Write{Event: schema.Save, Doc: out, IsNew: true})
	if err != nil {
		return nil, err
	}

	err = m.coll.Create(ctx, out)
	if err != nil {
		return nil, classify(err, m.name, id, "insert")
	}
	delete(out, RevisionField)
	return out, nil
}

// FindByID returns the document with the given id, whether or not it was
// soft deleted. The returned document carries its revision so it can be
// passed back to [Model.Replace].
func (m *Model) FindByID(ctx context.Context, id string) (doc map[string]any, err error) {
	ctx, end := m.start(ctx, "FindByID", attribute.String("db.document.id", id))
	defer end(&err)

	doc = map[string]any{KeyField: id}
	err = m.coll.Get(ctx, doc)
	if err != nil {
		return nil, classify(err, m.name, id, "get")
	}
	return doc, nil
}

// Replace runs the hooks for ev on doc and replaces the stored document.
// When doc carries the revision returned by [Model.FindByID] the replace
// fails with a [ConflictError] if another write happened in between.
func (m *Model) Replace(ctx context.Context, doc map[string]any, ev schema.Event) (err error) {
	id, _ := doc[KeyField].(string)

	ctx, end := m.start(ctx, "Replace", attribute.String("db.document.id", id))
	defer end(&err)

	err = m.schema.RunHooks(ctx, &schema.Write{Event: ev, Doc: doc})
	if err != nil {
		return err
	}

	err = m.coll.Replace(ctx, doc)
	if err != nil {
		return classify(err, m.name, id, "replace")
	}
	return nil
}

// Delete removes the document with the given id.
func (m *Model) Delete(ctx context.Context, id string) (err error) {
	ctx, end := m.start(ctx, "Delete", attribute.String("db.document.id", id))
	defer end(&err)

	_, err = m.FindByID(ctx, id)
	if err != nil {
		return err
	}
	err = m.coll.Delete(ctx, map[string]any{KeyField: id})
	if err != nil {
		return classify(err, m.name, id, "delete")
	}
	return nil
}

// Find returns the documents matching q. On MongoDB the filter, sort and
// pagination are evaluated by the server.
func (m *Model) Find(ctx context.Context, q Query) (docs []map[string]any, err error) {
	ctx, end := m.start(ctx, "Find")
	defer end(&err)

	if m.mcoll != nil {
		docs, err = m.findMongo(ctx, q)
	} else {
		docs, err = m.findLocal(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	for i, doc := range docs {
		delete(doc, RevisionField)
		docs[i] = Project(doc, q.Select)
	}
	return docs, nil
}

// Count returns the number of documents matching q. Pagination and
// projection are ignored.
func (m *Model) Count(ctx context.Context, q Query) (n int, err error) {
	ctx, end := m.start(ctx, "Count")
	defer end(&err)

	if m.mcoll != nil {
		return m.countMongo(ctx, q)
	}

	docs, err := m.scan(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (m *Model) findLocal(ctx context.Context, q Query) ([]map[string]any, error) {
	docs, err := m.scan(ctx, q)
	if err != nil {
		return nil, err
	}

	sortDocs(docs, q.Sort)
	if q.Skip > 0 {
		if q.Skip >= len(docs) {
			return docs[:0], nil
		}
		docs = docs[q.Skip:]
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

// scan evaluates q against a driver without server side query support.
// Predicates the docstore accepts are pushed down, the rest are matched
// in process.
func (m *Model) scan(ctx context.Context, q Query) ([]map[string]any, error) {
	pushed, local, err := compileFilter(q.Filter)
	if err != nil {
		return nil, err
	}

	dq := m.coll.Query()
	for _, p := range pushed {
		dq = dq.Where(docstore.FieldPath(p.path), p.op, p.value)
	}

	iter := dq.Get(ctx)
	defer iter.Stop()

	docs := []map[string]any{}
	for {
		doc := map[string]any{}
		err := iter.Next(ctx, doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: failed to query %s: %w", m.name, err)
		}
		if !q.IncludeDeleted && IsDeleted(doc) {
			continue
		}
		if !matchesAll(local, doc) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Aggregate runs a MongoDB aggregation pipeline. Other drivers return an
// [UnsupportedOperationError].
func (m *Model) Aggregate(ctx context.Context, pipeline []any) (docs []map[string]any, err error) {
	if m.mcoll == nil {
		return nil, UnsupportedOperationError{Operation: "aggregate"}
	}

	ctx, end := m.start(ctx, "Aggregate", attribute.Int("db.pipeline.stages", len(pipeline)))
	defer end(&err)

	cur, err := m.mcoll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("store: failed to aggregate %s: %w", m.name, err)
	}

	var results []bson.M
	err = cur.All(ctx, &results)
	if err != nil {
		return nil, fmt.Errorf("store: failed to decode aggregation of %s: %w", m.name, err)
	}

	docs = normalizeAll(results)
	for i, doc := range docs {
		docs[i] = Public(doc)
	}
	return docs, nil
}

// Ping checks that the collection can be queried.
func (m *Model) Ping(ctx context.Context) error {
	iter := m.coll.Query().Limit(1).Get(ctx, KeyField)
	defer iter.Stop()

	err := iter.Next(ctx, map[string]any{})
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Public returns a copy of doc without store internal fields.
func Public(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == RevisionField {
			continue
		}
		out[k] = v
	}
	return out
}

func cloneDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneDoc(x)
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = cloneValue(el)
		}
		return out
	default:
		return v
	}
}
