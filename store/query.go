// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package store

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/z5labs/crud/schema"
)

// Query selects documents of a [Model].
type Query struct {
	// Filter is a MongoDB style filter. Keys are field paths, values are
	// either matched for equality or are operator documents using $eq, $ne,
	// $gt, $gte, $lt, $lte or $in. Nested documents are flattened into
	// field paths. Top level $and and $or combine several filters.
	Filter map[string]any

	Sort []SortField

	// Skip is the number of matching documents to skip.
	Skip int

	// Limit caps the number of returned documents. Zero or less means
	// no limit.
	Limit int

	// Select lists the field paths to return. The id is always returned.
	Select []string

	// IncludeDeleted includes soft deleted documents.
	IncludeDeleted bool
}

// SortField orders query results by a field path.
type SortField struct {
	Path string
	Desc bool
}

// ParseSort parses a comma separated sort expression where a leading '-'
// orders the field descending, e.g. "name,-_metadata.createdAt".
func ParseSort(s string) []SortField {
	var fields []SortField
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		part = strings.TrimLeft(part, "+-")
		if part == "" {
			continue
		}
		fields = append(fields, SortField{Path: part, Desc: desc})
	}
	return fields
}

type predicate struct {
	path  string
	op    string
	value any

	// clauses holds the alternatives of an "or" predicate.
	clauses [][]predicate
}

var filterOps = map[string]string{
	"$eq":  "=",
	"$gt":  ">",
	"$gte": ">=",
	"$lt":  "<",
	"$lte": "<=",
	"$ne":  "!=",
	"$in":  "in",
}

// compileFilter splits f into predicates the docstore can evaluate and
// predicates which must be evaluated in process.
func compileFilter(f map[string]any) (pushed, local []predicate, err error) {
	var preds []predicate
	err = flatten("", f, &preds)
	if err != nil {
		return nil, nil, err
	}

	for _, p := range preds {
		if pushable(p) {
			pushed = append(pushed, p)
			continue
		}
		local = append(local, p)
	}
	return pushed, local, nil
}

func flatten(prefix string, f map[string]any, preds *[]predicate) error {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := f[k]
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if k == "$and" && prefix == "" {
			err := flattenAnd(v, preds)
			if err != nil {
				return err
			}
			continue
		}
		if k == "$or" && prefix == "" {
			p, err := flattenOr(v)
			if err != nil {
				return err
			}
			*preds = append(*preds, p)
			continue
		}
		if strings.HasPrefix(k, "$") {
			return InvalidFilterError{Field: prefix, Reason: "unsupported operator " + k}
		}

		sub, ok := v.(map[string]any)
		if !ok || len(sub) == 0 {
			*preds = append(*preds, predicate{path: path, op: "=", value: v})
			continue
		}
		if !isOperatorDoc(sub) {
			err := flatten(path, sub, preds)
			if err != nil {
				return err
			}
			continue
		}

		for op, operand := range sub {
			dop, ok := filterOps[op]
			if !ok {
				return InvalidFilterError{Field: path, Reason: "unsupported operator " + op}
			}
			if dop == "in" {
				if _, ok := operand.([]any); !ok {
					return InvalidFilterError{Field: path, Reason: "$in requires an array"}
				}
			}
			*preds = append(*preds, predicate{path: path, op: dop, value: operand})
		}
	}
	return nil
}

func clausesOf(op string, v any) ([]map[string]any, error) {
	var clauses []map[string]any
	switch x := v.(type) {
	case []map[string]any:
		clauses = x
	case []any:
		for _, el := range x {
			m, ok := el.(map[string]any)
			if !ok {
				return nil, InvalidFilterError{Field: op, Reason: "clauses must be documents"}
			}
			clauses = append(clauses, m)
		}
	default:
		return nil, InvalidFilterError{Field: op, Reason: "requires an array"}
	}
	return clauses, nil
}

func flattenAnd(v any, preds *[]predicate) error {
	clauses, err := clausesOf("$and", v)
	if err != nil {
		return err
	}
	for _, clause := range clauses {
		err := flatten("", clause, preds)
		if err != nil {
			return err
		}
	}
	return nil
}

func flattenOr(v any) (predicate, error) {
	clauses, err := clausesOf("$or", v)
	if err != nil {
		return predicate{}, err
	}
	if len(clauses) == 0 {
		return predicate{}, InvalidFilterError{Field: "$or", Reason: "requires at least one clause"}
	}

	p := predicate{op: "or", clauses: make([][]predicate, len(clauses))}
	for i, clause := range clauses {
		err := flatten("", clause, &p.clauses[i])
		if err != nil {
			return predicate{}, err
		}
	}
	return p, nil
}

// And combines filters so a document must match all of them.
func And(filters ...map[string]any) map[string]any {
	var clauses []any
	for _, f := range filters {
		if len(f) == 0 {
			continue
		}
		clauses = append(clauses, f)
	}
	switch len(clauses) {
	case 0:
		return map[string]any{}
	case 1:
		return clauses[0].(map[string]any)
	default:
		return map[string]any{"$and": clauses}
	}
}

// Matches reports whether doc satisfies filter.
func Matches(filter map[string]any, doc map[string]any) (bool, error) {
	var preds []predicate
	err := flatten("", filter, &preds)
	if err != nil {
		return false, err
	}
	return matchesAll(preds, doc), nil
}

func isOperatorDoc(m map[string]any) bool {
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// pushable reports whether the docstore accepts the predicate. Docstore
// filters only support ordering operators over strings, numbers and times.
func pushable(p predicate) bool {
	switch p.op {
	case "=", ">", ">=", "<", "<=":
	default:
		return false
	}
	if p.value == nil {
		return false
	}
	if _, ok := p.value.(time.Time); ok {
		return true
	}
	switch reflect.TypeOf(p.value).Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func (p predicate) matches(doc map[string]any) bool {
	if p.op == "or" {
		for _, clause := range p.clauses {
			if matchesAll(clause, doc) {
				return true
			}
		}
		return false
	}

	v, ok := lookup(doc, p.path)

	switch p.op {
	case "=":
		return ok && equal(v, p.value)
	case "!=":
		return !ok || !equal(v, p.value)
	case "in":
		if !ok {
			return false
		}
		for _, el := range p.value.([]any) {
			if equal(v, el) {
				return true
			}
		}
		return false
	}

	if !ok {
		return false
	}
	c, ok := compare(v, p.value)
	if !ok {
		return false
	}
	switch p.op {
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	default:
		return false
	}
}

func matchesAll(preds []predicate, doc map[string]any) bool {
	for _, p := range preds {
		if !p.matches(doc) {
			return false
		}
	}
	return true
}

// IsDeleted reports whether doc was soft deleted.
func IsDeleted(doc map[string]any) bool {
	v, _ := lookup(doc, schema.DeletedPath)
	deleted, _ := v.(bool)
	return deleted
}

func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func equal(a, b any) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two scalar values of compatible kinds.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		return cmp.Compare(fa, fb), true
	}

	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(x).Convert(reflect.TypeOf(float64(0))).Float(), true
	default:
		return 0, false
	}
}

// sortDocs orders docs by fields. Missing values sort first.
func sortDocs(docs []map[string]any, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	slices.SortStableFunc(docs, func(a, b map[string]any) int {
		for _, f := range fields {
			c := compareField(a, b, f.Path)
			if f.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func compareField(a, b map[string]any, path string) int {
	va, aok := lookup(a, path)
	vb, bok := lookup(b, path)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	c, ok := compare(va, vb)
	if !ok {
		return strings.Compare(fmt.Sprint(va), fmt.Sprint(vb))
	}
	return c
}

// Project keeps the id and the selected field paths of doc.
func Project(doc map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return doc
	}

	out := map[string]any{}
	if id, ok := doc[KeyField]; ok {
		out[KeyField] = id
	}
	for _, path := range fields {
		v, ok := lookup(doc, path)
		if !ok {
			continue
		}
		set(out, path, v)
	}
	return out
}

func set(doc map[string]any, path string, v any) {
	keys := strings.Split(path, ".")
	cur := doc
	for _, key := range keys[:len(keys)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = v
}
