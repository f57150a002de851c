// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package crud generates OpenAPI described REST CRUD handlers which are
// bound to a document store model.
//
// The heavy lifting lives in the sub packages:
//   - params normalizes incoming requests into a flat parameter mapping
//   - schema augments model definitions with lifecycle metadata
//   - store binds a schema to a document store collection
//   - controller implements the CRUD operation bodies
//   - model constructs a bound handle for a named model
//   - rest serves handles as an OpenAPI compliant HTTP API
//
// This package provides the logging conventions shared by all of them.
package crud

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/z5labs/crud/config"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// Custom log levels. LevelAudit sits just below the maximum severity so
// audit entries are only dropped when logging is effectively disabled.
const (
	LevelTrace = slog.LevelDebug - 4
	LevelAudit = slog.Level(math.MaxInt32 - 1)
)

// UnknownLevelError is returned by [ParseLevel] for unrecognized level names.
type UnknownLevelError struct {
	Level string
}

func (e UnknownLevelError) Error() string {
	return "unknown log level: " + e.Level
}

// ParseLevel converts a level name into a [slog.Level]. Names are
// case insensitive: trace, debug, info, warn, error and audit.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "audit":
		return LevelAudit, nil
	default:
		return slog.LevelInfo, UnknownLevelError{Level: s}
	}
}

// LogLevelFromEnv reads the minimum log level from the LOG_LEVEL environment
// variable, defaulting to info.
func LogLevelFromEnv() config.Reader[slog.Level] {
	return config.Map(
		config.Default("info", config.Env("LOG_LEVEL")),
		func(ctx context.Context, s string) (slog.Level, error) {
			return ParseLevel(s)
		},
	)
}

var (
	stdoutOnce  sync.Once
	stdoutLevel = new(slog.LevelVar)
)

func envLevel() slog.Leveler {
	stdoutOnce.Do(func() {
		lvl, err := config.Read(context.Background(), LogLevelFromEnv())
		if err != nil {
			lvl = slog.LevelInfo
		}
		stdoutLevel.Set(lvl)
	})
	return stdoutLevel
}

// NewLogHandler returns a plain text [slog.Handler] writing to w which
// drops records below level. Custom levels are rendered by name.
func NewLogHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	})
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != slog.LevelKey {
		return a
	}
	lvl, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch lvl {
	case LevelTrace:
		a.Value = slog.StringValue("TRACE")
	case LevelAudit:
		a.Value = slog.StringValue("AUDIT")
	}
	return a
}

// LogHandler returns the default [slog.Handler] for the named component.
// Records are sent to the OpenTelemetry log bridge and written to stdout
// when they meet the LOG_LEVEL threshold.
func LogHandler(name string) slog.Handler {
	stdout := NewLogHandler(os.Stdout, envLevel()).WithAttrs([]slog.Attr{
		slog.String("logger", name),
	})
	return slogmulti.Fanout(
		otelslog.NewHandler(name),
		stdout,
	)
}

// Logger returns the default [slog.Logger] for the named component.
func Logger(name string) *slog.Logger {
	return slog.New(LogHandler(name))
}

// Audit writes an audit grade entry.
func Audit(ctx context.Context, log *slog.Logger, msg string, attrs ...slog.Attr) {
	log.LogAttrs(ctx, LevelAudit, msg, attrs...)
}
