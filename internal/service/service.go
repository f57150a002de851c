// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package service wires the document store, the model registry and the
// REST API into a runnable HTTP service.
package service

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/z5labs/crud"
	"github.com/z5labs/crud/app"
	"github.com/z5labs/crud/config"
	"github.com/z5labs/crud/health"
	httpserver "github.com/z5labs/crud/http"
	"github.com/z5labs/crud/model"
	"github.com/z5labs/crud/otel"
	"github.com/z5labs/crud/rest"
	"github.com/z5labs/crud/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// NoModelsError is returned when the model definitions declare no models.
type NoModelsError struct{}

func (NoModelsError) Error() string {
	return "no models are defined, set MODELS_FILE to a YAML model definitions file"
}

// Config holds the readers for every service setting.
type Config struct {
	Title         config.Reader[string]
	Version       config.Reader[string]
	StoreURL      config.Reader[string]
	StoreDatabase config.Reader[string]
	Models        config.Reader[model.Definitions]

	Server httpserver.Server
	OTel   otel.Config
}

// ConfigFromEnv reads the service settings from the environment:
//
//	API_TITLE       OpenAPI title, default "crud"
//	API_VERSION     OpenAPI version, default "v0.0.0"
//	STORE_URL       mem:// (default) or mongodb://...
//	STORE_DATABASE  MongoDB database, default "crud"
//	MODELS_FILE     YAML model definitions
//
// HTTP and telemetry settings are read by [httpserver.ServerFromEnv] and
// [otel.ConfigFromEnv].
func ConfigFromEnv() Config {
	return Config{
		Title:         config.Default("crud", config.Env("API_TITLE")),
		Version:       config.Default("v0.0.0", config.Env("API_VERSION")),
		StoreURL:      config.Default("mem://", config.Env("STORE_URL")),
		StoreDatabase: config.Default("crud", config.Env("STORE_DATABASE")),
		Models:        model.ReadDefinitions(config.File(config.Env("MODELS_FILE"))),
		Server:        httpserver.ServerFromEnv(),
		OTel:          otel.ConfigFromEnv(),
	}
}

// Build composes the service runtime. Telemetry is installed first, the
// store is closed after the HTTP server has shut down.
func Build(cfg Config) app.Builder[otel.Runtime] {
	return otel.Build(cfg.OTel, app.WithHooks(func(ctx context.Context, hooks *app.HookRegistry) (*httpserver.App, error) {
		log := crud.Logger("crudsvc")

		h, err := Handler(ctx, cfg, hooks)
		if err != nil {
			return nil, err
		}

		handler := app.BuilderFunc[http.Handler](func(ctx context.Context) (http.Handler, error) {
			return h, nil
		})
		return httpserver.Build(cfg.Server, log, handler).Build(ctx)
	}))
}

// Handler opens the store, binds every defined model and returns the API
// serving them. Cleanup of the store is registered with hooks.
func Handler(ctx context.Context, cfg Config, hooks *app.HookRegistry) (http.Handler, error) {
	log := crud.Logger("crudsvc")

	defs, err := config.Read(ctx, cfg.Models)
	if err != nil {
		return nil, err
	}
	if len(defs.Models) == 0 {
		return nil, NoModelsError{}
	}

	url, err := config.Read(ctx, cfg.StoreURL)
	if err != nil {
		return nil, err
	}
	database, err := config.Read(ctx, cfg.StoreDatabase)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, url, database)
	if err != nil {
		return nil, err
	}
	hooks.OnPostRun(func(ctx context.Context) error {
		log.InfoContext(ctx, "closing document store")
		return st.Close(ctx)
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	models := model.NewRegistry()
	err = models.Load(
		ctx,
		defs.Models,
		st,
		model.Logger(crud.Logger("model")),
		model.Metrics(store.NewMetrics(reg)),
	)
	if err != nil {
		return nil, err
	}

	opts := []rest.ApiOption{
		rest.Readiness(health.Ping(st)),
		rest.Metrics(reg),
	}
	for _, def := range defs.Models {
		h, _ := models.Get(def.Name)
		opts = append(opts, rest.Resource(def.Path(), h))
	}

	title, err := config.Read(ctx, cfg.Title)
	if err != nil {
		return nil, err
	}
	version, err := config.Read(ctx, cfg.Version)
	if err != nil {
		return nil, err
	}

	log.InfoContext(
		ctx,
		"serving models",
		slog.Int("models", models.Len()),
		slog.String("store", st.Driver()),
	)
	return rest.NewApi(title, version, opts...), nil
}
