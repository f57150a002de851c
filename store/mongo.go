// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/z5labs/crud/schema"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var mongoOps = map[string]string{
	"=":  "$eq",
	">":  "$gt",
	">=": "$gte",
	"<":  "$lt",
	"<=": "$lte",
	"!=": "$ne",
	"in": "$in",
}

// mongoFilter translates compiled predicates into a MongoDB filter. Soft
// deleted documents are excluded unless includeDeleted is set.
func mongoFilter(preds []predicate, includeDeleted bool) bson.D {
	clauses := mongoClauses(preds)
	if !includeDeleted {
		clauses = append(clauses, bson.D{{Key: schema.DeletedPath, Value: bson.D{{Key: "$ne", Value: true}}}})
	}

	switch len(clauses) {
	case 0:
		return bson.D{}
	case 1:
		return clauses[0].(bson.D)
	default:
		return bson.D{{Key: "$and", Value: clauses}}
	}
}

func mongoClauses(preds []predicate) bson.A {
	clauses := bson.A{}
	for _, p := range preds {
		if p.op == "or" {
			alts := make(bson.A, len(p.clauses))
			for i, clause := range p.clauses {
				alts[i] = mongoFilter(clause, true)
			}
			clauses = append(clauses, bson.D{{Key: "$or", Value: alts}})
			continue
		}
		clauses = append(clauses, bson.D{{Key: p.path, Value: bson.D{{Key: mongoOps[p.op], Value: p.value}}}})
	}
	return clauses
}

func mongoSort(fields []SortField) bson.D {
	sort := make(bson.D, len(fields))
	for i, f := range fields {
		order := 1
		if f.Desc {
			order = -1
		}
		sort[i] = bson.E{Key: f.Path, Value: order}
	}
	return sort
}

func (m *Model) findMongo(ctx context.Context, q Query) ([]map[string]any, error) {
	preds, err := predicates(q.Filter)
	if err != nil {
		return nil, err
	}

	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(mongoSort(q.Sort))
	}
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := m.mcoll.Find(ctx, mongoFilter(preds, q.IncludeDeleted), opts)
	if err != nil {
		return nil, fmt.Errorf("store: failed to query %s: %w", m.name, err)
	}

	var results []bson.M
	err = cur.All(ctx, &results)
	if err != nil {
		return nil, fmt.Errorf("store: failed to decode documents of %s: %w", m.name, err)
	}
	return normalizeAll(results), nil
}

func (m *Model) countMongo(ctx context.Context, q Query) (int, error) {
	preds, err := predicates(q.Filter)
	if err != nil {
		return 0, err
	}

	n, err := m.mcoll.CountDocuments(ctx, mongoFilter(preds, q.IncludeDeleted))
	if err != nil {
		return 0, fmt.Errorf("store: failed to count %s: %w", m.name, err)
	}
	return int(n), nil
}

func predicates(f map[string]any) ([]predicate, error) {
	var preds []predicate
	err := flatten("", f, &preds)
	if err != nil {
		return nil, err
	}
	return preds, nil
}

func normalizeAll(results []bson.M) []map[string]any {
	docs := make([]map[string]any, len(results))
	for i, r := range results {
		docs[i] = normalize(map[string]any(r)).(map[string]any)
	}
	return docs
}

// normalize converts BSON values into the Go values the docstore codec
// returns for the same documents.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = normalize(el)
		}
		return out
	case primitive.M:
		return normalize(map[string]any(x))
	case primitive.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = normalize(el)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = normalize(el)
		}
		return out
	case primitive.DateTime:
		return time.UnixMilli(int64(x)).UTC()
	case primitive.Binary:
		return x.Data
	case primitive.ObjectID:
		return x.Hex()
	case int32:
		return int64(x)
	default:
		return v
	}
}
