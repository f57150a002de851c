// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides composable readers for configuration values.
//
// A [Reader] produces a [Value] which may or may not be set. Readers are
// combined to express where a value comes from and what to fall back to:
//
//	port := config.Default(8080, config.IntFromString(config.Env("HTTP_PORT")))
//	p, err := config.Read(ctx, port)
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Value is the result of reading a [Reader]. A Value may be unset,
// which is distinct from being set to the zero value of T.
type Value[T any] struct {
	v   T
	set bool
}

// ValueOf returns a set [Value] holding v.
func ValueOf[T any](v T) Value[T] {
	return Value[T]{v: v, set: true}
}

// Value returns the underlying value and whether it was set.
func (v Value[T]) Value() (T, bool) {
	return v.v, v.set
}

// Reader reads a configuration value.
type Reader[T any] interface {
	Read(context.Context) (Value[T], error)
}

// ReaderFunc is a func type of the [Reader] interface.
type ReaderFunc[T any] func(context.Context) (Value[T], error)

// Read implements the [Reader] interface.
func (f ReaderFunc[T]) Read(ctx context.Context) (Value[T], error) {
	return f(ctx)
}

// EmptyReader returns a [Reader] which never has a value set.
func EmptyReader[T any]() Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return Value[T]{}, nil
	})
}

// ReaderOf returns a [Reader] which always returns v.
func ReaderOf[T any](v T) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return ValueOf(v), nil
	})
}

// Env reads the environment variable with the given name. An unset or
// empty variable results in an unset [Value].
func Env(name string) Reader[string] {
	return ReaderFunc[string](func(ctx context.Context) (Value[string], error) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return Value[string]{}, nil
		}
		return ValueOf(v), nil
	})
}

// Default returns def whenever r does not produce a value.
func Default[T any](def T, r Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		val, err := r.Read(ctx)
		if err != nil {
			return Value[T]{}, err
		}
		if _, ok := val.Value(); ok {
			return val, nil
		}
		return ValueOf(def), nil
	})
}

// Or returns the first set value from the given readers.
func Or[T any](rs ...Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		for _, r := range rs {
			val, err := r.Read(ctx)
			if err != nil {
				return Value[T]{}, err
			}
			if _, ok := val.Value(); ok {
				return val, nil
			}
		}
		return Value[T]{}, nil
	})
}

// Map transforms a set value with f. Unset values are passed through.
func Map[A, B any](r Reader[A], f func(context.Context, A) (B, error)) Reader[B] {
	return ReaderFunc[B](func(ctx context.Context) (Value[B], error) {
		val, err := r.Read(ctx)
		if err != nil {
			return Value[B]{}, err
		}
		a, ok := val.Value()
		if !ok {
			return Value[B]{}, nil
		}
		b, err := f(ctx, a)
		if err != nil {
			return Value[B]{}, err
		}
		return ValueOf(b), nil
	})
}

// ParseError is returned when a string value can not be converted
// to the requested type.
type ParseError struct {
	Value string
	Type  string
	Cause error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("failed to parse %q as %s: %v", e.Value, e.Type, e.Cause)
}

func (e ParseError) Unwrap() error {
	return e.Cause
}

func parseWith[T any](typ string, parse func(string) (T, error)) func(context.Context, string) (T, error) {
	return func(ctx context.Context, s string) (T, error) {
		v, err := parse(strings.TrimSpace(s))
		if err != nil {
			var zero T
			return zero, ParseError{Value: s, Type: typ, Cause: err}
		}
		return v, nil
	}
}

// BoolFromString parses the string value as a bool.
func BoolFromString(r Reader[string]) Reader[bool] {
	return Map(r, parseWith("bool", strconv.ParseBool))
}

// IntFromString parses the string value as an int.
func IntFromString(r Reader[string]) Reader[int] {
	return Map(r, parseWith("int", strconv.Atoi))
}

// Int64FromString parses the string value as an int64.
func Int64FromString(r Reader[string]) Reader[int64] {
	return Map(r, parseWith("int64", func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	}))
}

// Float64FromString parses the string value as a float64.
func Float64FromString(r Reader[string]) Reader[float64] {
	return Map(r, parseWith("float64", func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}))
}

// DurationFromString parses the string value with [time.ParseDuration].
func DurationFromString(r Reader[string]) Reader[time.Duration] {
	return Map(r, parseWith("duration", time.ParseDuration))
}

// File reads the entire contents of the file named by path.
func File(path Reader[string]) Reader[io.Reader] {
	return Map(path, func(ctx context.Context, name string) (io.Reader, error) {
		b, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(b), nil
	})
}

// UnmarshalJSON decodes the read contents as JSON into a T.
func UnmarshalJSON[T any](r Reader[io.Reader]) Reader[T] {
	return Map(r, func(ctx context.Context, src io.Reader) (T, error) {
		var t T
		dec := json.NewDecoder(src)
		dec.DisallowUnknownFields()
		err := dec.Decode(&t)
		return t, err
	})
}

// UnmarshalYAML decodes the read contents as YAML into a T. Unknown
// fields are rejected.
func UnmarshalYAML[T any](r Reader[io.Reader]) Reader[T] {
	return Map(r, func(ctx context.Context, src io.Reader) (T, error) {
		var t T
		dec := yaml.NewDecoder(src)
		dec.KnownFields(true)
		err := dec.Decode(&t)
		return t, err
	})
}

// Read reads r and returns its value. An unset value results in the
// zero value of T.
func Read[T any](ctx context.Context, r Reader[T]) (T, error) {
	val, err := r.Read(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := val.Value()
	return v, nil
}

// MissingValueError is raised by [Must] when a required value is not set.
type MissingValueError struct{}

func (MissingValueError) Error() string {
	return "config value is required but was not set"
}

// Must reads r and panics if reading fails or no value is set.
func Must[T any](ctx context.Context, r Reader[T]) T {
	val, err := r.Read(ctx)
	if err != nil {
		panic(err)
	}
	v, ok := val.Value()
	if !ok {
		panic(MissingValueError{})
	}
	return v
}

// MustOr reads r and returns def when no value is set. It panics if reading fails.
func MustOr[T any](ctx context.Context, def T, r Reader[T]) T {
	return Must(ctx, Default(def, r))
}
