// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package store

import (
	"fmt"

	"gocloud.dev/gcerrors"
)

// NotFoundError is returned when no document has the requested id.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("document %s not found in %s", e.ID, e.Collection)
}

// ConflictError is returned when a write lost a race with another writer
// or would overwrite an existing document.
type ConflictError struct {
	Collection string
	ID         string
	Cause      error
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("conflicting write to document %s in %s: %v", e.ID, e.Collection, e.Cause)
}

func (e ConflictError) Unwrap() error {
	return e.Cause
}

// InvalidFilterError is returned for filters which can not be evaluated.
type InvalidFilterError struct {
	Field  string
	Reason string
}

func (e InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter on %s: %s", e.Field, e.Reason)
}

// UnsupportedOperationError is returned when the collection driver does not
// support an operation.
type UnsupportedOperationError struct {
	Operation string
}

func (e UnsupportedOperationError) Error() string {
	return e.Operation + " is not supported by this document store"
}

// UnsupportedStoreError is returned by [Open] for unknown store URLs.
type UnsupportedStoreError struct {
	URL string
}

func (e UnsupportedStoreError) Error() string {
	return "unsupported document store url: " + e.URL
}

func classify(err error, collection, id, op string) error {
	if err == nil {
		return nil
	}
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return NotFoundError{Collection: collection, ID: id}
	case gcerrors.FailedPrecondition, gcerrors.AlreadyExists:
		return ConflictError{Collection: collection, ID: id, Cause: err}
	default:
		return fmt.Errorf("store: %s %s in %s: %w", op, id, collection, err)
	}
}
