// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package http serves the CRUD API over HTTP with graceful shutdown.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/z5labs/crud/app"
	"github.com/z5labs/crud/config"

	"github.com/sourcegraph/conc/pool"
	"github.com/z5labs/sdk-go/try"
)

// Server holds the readers for every HTTP server setting.
type Server struct {
	Addr              config.Reader[string]
	ReadTimeout       config.Reader[time.Duration]
	ReadHeaderTimeout config.Reader[time.Duration]
	WriteTimeout      config.Reader[time.Duration]
	IdleTimeout       config.Reader[time.Duration]
	ShutdownTimeout   config.Reader[time.Duration]
	MaxHeaderBytes    config.Reader[int]
}

// ServerOption overrides a setting of a [Server].
type ServerOption func(*Server)

// Addr sets the listen address, e.g. ":8080".
func Addr(addr config.Reader[string]) ServerOption {
	return func(s *Server) {
		s.Addr = addr
	}
}

// Port sets the listen address to all interfaces on port.
func Port(port config.Reader[int]) ServerOption {
	return Addr(config.Map(port, func(ctx context.Context, p int) (string, error) {
		return ":" + strconv.Itoa(p), nil
	}))
}

// ReadTimeout
func ReadTimeout(d config.Reader[time.Duration]) ServerOption {
	return func(s *Server) {
		s.ReadTimeout = d
	}
}

// WriteTimeout
func WriteTimeout(d config.Reader[time.Duration]) ServerOption {
	return func(s *Server) {
		s.WriteTimeout = d
	}
}

// ShutdownTimeout bounds the time in flight requests get to complete
// once the server is asked to stop.
func ShutdownTimeout(d config.Reader[time.Duration]) ServerOption {
	return func(s *Server) {
		s.ShutdownTimeout = d
	}
}

// ServerFromEnv reads every setting from the environment:
//
//	HTTP_PORT                 listen port, default 8080
//	HTTP_READ_TIMEOUT         default 5s
//	HTTP_READ_HEADER_TIMEOUT  default 2s
//	HTTP_WRITE_TIMEOUT        default 10s
//	HTTP_IDLE_TIMEOUT         default 120s
//	HTTP_SHUTDOWN_TIMEOUT     default 10s
//	HTTP_MAX_HEADER_BYTES     default 1MB
func ServerFromEnv(opts ...ServerOption) Server {
	port := config.Map(config.IntFromString(config.Env("HTTP_PORT")), func(ctx context.Context, p int) (string, error) {
		return ":" + strconv.Itoa(p), nil
	})

	srv := Server{
		Addr:              port,
		ReadTimeout:       config.DurationFromString(config.Env("HTTP_READ_TIMEOUT")),
		ReadHeaderTimeout: config.DurationFromString(config.Env("HTTP_READ_HEADER_TIMEOUT")),
		WriteTimeout:      config.DurationFromString(config.Env("HTTP_WRITE_TIMEOUT")),
		IdleTimeout:       config.DurationFromString(config.Env("HTTP_IDLE_TIMEOUT")),
		ShutdownTimeout:   config.DurationFromString(config.Env("HTTP_SHUTDOWN_TIMEOUT")),
		MaxHeaderBytes:    config.IntFromString(config.Env("HTTP_MAX_HEADER_BYTES")),
	}
	for _, opt := range opts {
		opt(&srv)
	}
	return srv
}

func orEmpty[T any](r config.Reader[T]) config.Reader[T] {
	if r == nil {
		return config.EmptyReader[T]()
	}
	return r
}

// App is a listening HTTP server.
type App struct {
	log             *slog.Logger
	ln              net.Listener
	srv             *http.Server
	shutdownTimeout time.Duration
}

// Addr returns the address the server listens on.
func (a *App) Addr() net.Addr {
	return a.ln.Addr()
}

// Run serves requests until ctx is cancelled and then shuts the server
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		a.log.InfoContext(ctx, "serving http", slog.String("addr", a.ln.Addr().String()))
		return a.srv.Serve(a.ln)
	})

	p.Go(func(ctx context.Context) error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
		defer cancel()

		a.log.InfoContext(shutdownCtx, "shutting down http server")
		return a.srv.Shutdown(shutdownCtx)
	})

	err := p.Wait()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Build listens on the configured address and serves the handler built
// by b.
func Build(srv Server, log *slog.Logger, b app.Builder[http.Handler]) app.Builder[*App] {
	return app.Bind(b, func(h http.Handler) app.Builder[*App] {
		return app.BuilderFunc[*App](func(ctx context.Context) (_ *App, err error) {
			defer try.Recover(&err)

			addr := config.MustOr(ctx, ":8080", orEmpty(srv.Addr))
			hs := &http.Server{
				Handler:           h,
				ReadTimeout:       config.MustOr(ctx, 5*time.Second, orEmpty(srv.ReadTimeout)),
				ReadHeaderTimeout: config.MustOr(ctx, 2*time.Second, orEmpty(srv.ReadHeaderTimeout)),
				WriteTimeout:      config.MustOr(ctx, 10*time.Second, orEmpty(srv.WriteTimeout)),
				IdleTimeout:       config.MustOr(ctx, 120*time.Second, orEmpty(srv.IdleTimeout)),
				MaxHeaderBytes:    config.MustOr(ctx, 1<<20, orEmpty(srv.MaxHeaderBytes)),
			}
			shutdownTimeout := config.MustOr(ctx, 10*time.Second, orEmpty(srv.ShutdownTimeout))

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return nil, err
			}

			return &App{
				log:             log,
				ln:              ln,
				srv:             hs,
				shutdownTimeout: shutdownTimeout,
			}, nil
		})
	})
}
