// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/z5labs/crud/params"
	"github.com/z5labs/crud/store"

	"github.com/sourcegraph/conc/pool"
)

// BulkResult is the outcome of a bulk operation for a single record.
type BulkResult struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Status int    `json:"status"`
	Body   any    `json:"body,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BulkShow returns the records identified by the comma separated id
// parameter in the order they were given. Ids which do not resolve to a
// visible record are skipped.
func (c *ParamController) BulkShow(ctx context.Context, p params.Params) (Response, error) {
	ids := p.List(ParamID)
	if len(ids) == 0 {
		return Response{}, BadRequestError{Cause: params.MissingParamError{Name: ParamID}}
	}
	fields := p.List(ParamSelect)

	docs := make([]map[string]any, len(ids))
	errs := make([]error, len(ids))
	c.fanOut(len(ids), func(i int) {
		doc, err := c.find(ctx, ids[i])
		if err != nil {
			errs[i] = err
			return
		}
		docs[i] = store.Project(store.Public(doc), fields)
	})

	found := make([]map[string]any, 0, len(ids))
	for i, doc := range docs {
		err := c.translate(errs[i])
		if err == nil {
			found = append(found, doc)
			continue
		}
		if errors.As(err, &NotFoundError{}) {
			continue
		}
		return Response{}, err
	}
	return Response{Status: http.StatusOK, Body: found}, nil
}

// BulkUpdate deep merges data into every record identified by the comma
// separated id parameter.
func (c *ParamController) BulkUpdate(ctx context.Context, p params.Params) (Response, error) {
	ids := p.List(ParamID)
	if len(ids) == 0 {
		return Response{}, BadRequestError{Cause: params.MissingParamError{Name: ParamID}}
	}
	data, ok := p[ParamData].(map[string]any)
	if !ok {
		return Response{}, BadRequestError{Cause: InvalidDataError{Expected: "an object"}}
	}

	return c.bulk(ctx, "bulk update", len(ids), func(i int) (string, int, any, error) {
		doc, err := c.update(ctx, ids[i], data, false)
		return ids[i], http.StatusOK, doc, err
	}), nil
}

// BulkUpload creates every record of the data array.
func (c *ParamController) BulkUpload(ctx context.Context, p params.Params) (Response, error) {
	data, ok := p[ParamData].([]any)
	if !ok {
		return Response{}, BadRequestError{Cause: InvalidDataError{Expected: "an array of objects"}}
	}

	return c.bulk(ctx, "bulk upload", len(data), func(i int) (string, int, any, error) {
		m, ok := data[i].(map[string]any)
		if !ok {
			return "", 0, nil, BadRequestError{Cause: InvalidDataError{Expected: "an object"}}
		}
		doc, err := c.create(ctx, m)
		if err != nil {
			id, _ := m[store.KeyField].(string)
			return id, 0, nil, err
		}
		id, _ := doc[store.KeyField].(string)
		return id, http.StatusCreated, doc, nil
	}), nil
}

// BulkDestroy applies [ParamController.Destroy] to every record identified
// by the comma separated id parameter.
func (c *ParamController) BulkDestroy(ctx context.Context, p params.Params) (Response, error) {
	ids := p.List(ParamID)
	if len(ids) == 0 {
		return Response{}, BadRequestError{Cause: params.MissingParamError{Name: ParamID}}
	}

	return c.bulk(ctx, "bulk destroy", len(ids), func(i int) (string, int, any, error) {
		err := c.destroy(ctx, ids[i])
		return ids[i], http.StatusOK, message(fmt.Sprintf("%s %s deleted", c.name, ids[i])), err
	}), nil
}

// BulkMarkAsDeleted soft deletes every record identified by the comma
// separated id parameter.
func (c *ParamController) BulkMarkAsDeleted(ctx context.Context, p params.Params) (Response, error) {
	ids := p.List(ParamID)
	if len(ids) == 0 {
		return Response{}, BadRequestError{Cause: params.MissingParamError{Name: ParamID}}
	}

	return c.bulk(ctx, "bulk mark as deleted", len(ids), func(i int) (string, int, any, error) {
		err := c.markAsDeleted(ctx, ids[i])
		return ids[i], http.StatusOK, message(fmt.Sprintf("%s %s marked as deleted", c.name, ids[i])), err
	}), nil
}

// bulk runs f for every index and collects the per record results. The
// response status is 200 when every record succeeded and 207 otherwise.
func (c *ParamController) bulk(ctx context.Context, op string, n int, f func(int) (string, int, any, error)) Response {
	results := make([]BulkResult, n)
	c.fanOut(n, func(i int) {
		id, status, body, err := f(i)
		results[i] = c.result(ctx, i, id, status, body, err)
	})

	status := http.StatusOK
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		status = http.StatusMultiStatus
	}

	c.log.InfoContext(ctx, "completed bulk operation",
		slog.String("model", c.name),
		slog.String("operation", op),
		slog.Int("records", n),
		slog.Int("failed", failed),
	)
	return Response{Status: status, Body: results}
}

func (c *ParamController) result(ctx context.Context, i int, id string, status int, body any, err error) BulkResult {
	if err == nil {
		return BulkResult{Index: i, ID: id, Status: status, Body: body}
	}

	err = c.translate(err)
	status = StatusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		c.log.ErrorContext(ctx, "bulk operation failed for record",
			slog.String("model", c.name),
			slog.String("id", id),
			slog.Any("error", err),
		)
		msg = http.StatusText(status)
	}
	return BulkResult{Index: i, ID: id, Status: status, Error: msg}
}

// fanOut calls f for every index in [0, n) using at most maxConcurrency
// goroutines and waits for all of them to return.
func (c *ParamController) fanOut(n int, f func(int)) {
	p := pool.New().WithMaxGoroutines(c.maxConcurrency)
	for i := range n {
		p.Go(func() {
			f(i)
		})
	}
	p.Wait()
}
