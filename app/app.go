// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app composes the service runtime from builders and runs it until
// the process is signalled to stop.
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Builder constructs a T, typically from configuration read via ctx.
type Builder[T any] interface {
	Build(context.Context) (T, error)
}

// BuilderFunc is a func type of the [Builder] interface.
type BuilderFunc[T any] func(context.Context) (T, error)

// Build implements the [Builder] interface.
func (f BuilderFunc[T]) Build(ctx context.Context) (T, error) {
	return f(ctx)
}

// Bind feeds the output of b into f and builds the [Builder] f returns.
func Bind[A, B any](b Builder[A], f func(A) Builder[B]) Builder[B] {
	return BuilderFunc[B](func(ctx context.Context) (B, error) {
		a, err := b.Build(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return f(a).Build(ctx)
	})
}

// Runtime is a long running component of the service.
type Runtime interface {
	Run(context.Context) error
}

// RuntimeFunc is a func type of the [Runtime] interface.
type RuntimeFunc func(context.Context) error

// Run implements the [Runtime] interface.
func (f RuntimeFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Run builds the [Runtime] and runs it until it returns or the process
// receives SIGINT or SIGTERM.
func Run[T Runtime](ctx context.Context, b Builder[T]) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := b.Build(ctx)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// LogError logs err, if any, as the reason the service stopped.
func LogError(log *slog.Logger, err error) {
	if err == nil {
		return
	}
	log.Error("service stopped with error", slog.Any("error", err))
}
