// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/z5labs/crud/params"
	"github.com/z5labs/crud/store"
)

// NotFoundError is returned when a record does not exist, was soft
// deleted or is hidden by the default filter.
type NotFoundError struct {
	Model string
	ID    string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Model, e.ID)
}

// StatusCode returns the HTTP status of the error.
func (NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// ConflictError is returned when a write is based on a stale version of
// a record.
type ConflictError struct {
	Model string
	ID    string

	// Expected is the version the caller based its write on and Actual the
	// stored version. Both are zero when the conflict was detected by the
	// store itself.
	Expected int64
	Actual   int64

	Cause error
}

func (e ConflictError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s was modified concurrently", e.Model, e.ID)
	}
	return fmt.Sprintf("%s %s is at version %d but version %d was given", e.Model, e.ID, e.Actual, e.Expected)
}

func (e ConflictError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status of the error.
func (ConflictError) StatusCode() int {
	return http.StatusConflict
}

// BadRequestError is returned for malformed parameters.
type BadRequestError struct {
	Cause error
}

func (e BadRequestError) Error() string {
	return e.Cause.Error()
}

func (e BadRequestError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status of the error.
func (BadRequestError) StatusCode() int {
	return http.StatusBadRequest
}

// UnimplementedError is returned for operations the store can not perform.
type UnimplementedError struct {
	Operation string
}

func (e UnimplementedError) Error() string {
	return e.Operation + " is not implemented for this store"
}

// StatusCode returns the HTTP status of the error.
func (UnimplementedError) StatusCode() int {
	return http.StatusNotImplemented
}

// InvalidDataError describes a data parameter of the wrong shape.
type InvalidDataError struct {
	Expected string
}

func (e InvalidDataError) Error() string {
	return "data must be " + e.Expected
}

// StatusCode returns the HTTP status of err, which is 500 for errors
// not defined by this package.
func StatusCode(err error) int {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// translate maps collaborator errors to the errors of this package.
func (c *ParamController) translate(err error) error {
	if err == nil {
		return nil
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return err
	}

	var (
		notFound     store.NotFoundError
		conflict     store.ConflictError
		badFilter    store.InvalidFilterError
		unsupported  store.UnsupportedOperationError
		missingParam params.MissingParamError
		invalidParam params.InvalidParamError
		invalidData  InvalidDataError
	)
	switch {
	case errors.As(err, &notFound):
		return NotFoundError{Model: c.name, ID: notFound.ID}
	case errors.As(err, &conflict):
		return ConflictError{Model: c.name, ID: conflict.ID, Cause: err}
	case errors.As(err, &badFilter),
		errors.As(err, &missingParam),
		errors.As(err, &invalidParam),
		errors.As(err, &invalidData):
		return BadRequestError{Cause: err}
	case errors.As(err, &unsupported):
		return UnimplementedError{Operation: unsupported.Operation}
	default:
		return err
	}
}
