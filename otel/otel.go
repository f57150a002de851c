// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otel installs the OpenTelemetry providers used by the service.
//
// Configuration is read from the environment:
//   - OTEL_SERVICE_NAME, OTEL_SERVICE_VERSION: resource attributes
//   - OTEL_EXPORTER: none (default), otlp-grpc or otlp-http
//   - OTEL_EXPORTER_OTLP_ENDPOINT: collector address, e.g. localhost:4317
//   - OTEL_EXPORTER_OTLP_INSECURE: disables TLS for otlp-http
//   - OTEL_TRACES_SAMPLER_RATIO: fraction of root traces sampled, default 1
//   - OTEL_METRIC_EXPORT_INTERVAL: default 60s
//   - OTEL_BSP_EXPORT_INTERVAL: span and log batch timeout, default 5s
package otel

import (
	"context"
	"errors"
	"time"

	"github.com/z5labs/crud/app"
	"github.com/z5labs/crud/config"

	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	lognoop "go.opentelemetry.io/otel/log/noop"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.38.0"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Exporter names the telemetry export protocol.
type Exporter string

const (
	ExporterNone     Exporter = "none"
	ExporterOTLPGrpc Exporter = "otlp-grpc"
	ExporterOTLPHttp Exporter = "otlp-http"
)

// UnknownExporterError is returned for unsupported OTEL_EXPORTER values.
type UnknownExporterError struct {
	Exporter Exporter
}

func (e UnknownExporterError) Error() string {
	return "unknown telemetry exporter: " + string(e.Exporter)
}

// Config holds the readers for every telemetry setting.
type Config struct {
	ServiceName          config.Reader[string]
	ServiceVersion       config.Reader[string]
	Exporter             config.Reader[string]
	Endpoint             config.Reader[string]
	Insecure             config.Reader[bool]
	SampleRatio          config.Reader[float64]
	MetricExportInterval config.Reader[time.Duration]
	BatchTimeout         config.Reader[time.Duration]
}

// ConfigFromEnv reads every setting from the OTEL_* environment
// variables. overrides are applied afterwards.
func ConfigFromEnv(overrides ...func(*Config)) Config {
	cfg := Config{
		ServiceName:          config.Env("OTEL_SERVICE_NAME"),
		ServiceVersion:       config.Env("OTEL_SERVICE_VERSION"),
		Exporter:             config.Env("OTEL_EXPORTER"),
		Endpoint:             config.Env("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:             config.BoolFromString(config.Env("OTEL_EXPORTER_OTLP_INSECURE")),
		SampleRatio:          config.Float64FromString(config.Env("OTEL_TRACES_SAMPLER_RATIO")),
		MetricExportInterval: config.DurationFromString(config.Env("OTEL_METRIC_EXPORT_INTERVAL")),
		BatchTimeout:         config.DurationFromString(config.Env("OTEL_BSP_EXPORT_INTERVAL")),
	}
	for _, o := range overrides {
		o(&cfg)
	}
	return cfg
}

// Runtime runs an inner [app.Runtime] and flushes and shuts down the
// telemetry providers once it returns.
type Runtime struct {
	inner    app.Runtime
	shutdown []func(context.Context) error
}

// Build installs the global providers described by cfg before building
// the inner runtime, so loggers created by b already export.
func Build[T app.Runtime](cfg Config, b app.Builder[T]) app.Builder[Runtime] {
	return app.BuilderFunc[Runtime](func(ctx context.Context) (_ Runtime, err error) {
		defer try.Recover(&err)

		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

		p, err := newProviders(ctx, cfg)
		if err != nil {
			return Runtime{}, err
		}

		inner, err := b.Build(ctx)
		if err != nil {
			return Runtime{}, errors.Join(err, p.Shutdown(context.WithoutCancel(ctx)))
		}

		return Runtime{inner: inner, shutdown: []func(context.Context) error{p.Shutdown}}, nil
	})
}

// Run implements the [app.Runtime] interface.
func (rt Runtime) Run(ctx context.Context) error {
	errs := []error{rt.inner.Run(ctx)}

	ctx = context.WithoutCancel(ctx)
	for _, f := range rt.shutdown {
		errs = append(errs, f(ctx))
	}
	return errors.Join(errs...)
}

type providers struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
	lp *sdklog.LoggerProvider
	ex *exporters
}

func (p *providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return errors.Join(
		p.tp.Shutdown(ctx),
		p.mp.Shutdown(ctx),
		p.lp.Shutdown(ctx),
		p.ex.Close(),
	)
}

func newProviders(ctx context.Context, cfg Config) (*providers, error) {
	exporter := Exporter(config.MustOr(ctx, string(ExporterNone), cfg.Exporter))
	switch exporter {
	case ExporterNone:
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		global.SetLoggerProvider(lognoop.NewLoggerProvider())
		return nil, nil
	case ExporterOTLPGrpc, ExporterOTLPHttp:
	default:
		return nil, UnknownExporterError{Exporter: exporter}
	}

	rsc, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ex, err := newExporters(ctx, exporter, exporterOptions{
		endpoint: config.MustOr(ctx, "localhost:4317", cfg.Endpoint),
		insecure: config.MustOr(ctx, false, cfg.Insecure),
	})
	if err != nil {
		return nil, err
	}

	batchTimeout := config.MustOr(ctx, 5*time.Second, cfg.BatchTimeout)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(rsc),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(config.MustOr(ctx, 1.0, cfg.SampleRatio)),
		)),
		sdktrace.WithBatcher(ex.span, sdktrace.WithBatchTimeout(batchTimeout)),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(rsc),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			ex.metric,
			sdkmetric.WithInterval(config.MustOr(ctx, time.Minute, cfg.MetricExportInterval)),
			sdkmetric.WithProducer(runtime.NewProducer()),
		)),
	)

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(rsc),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(ex.log, sdklog.WithExportInterval(batchTimeout))),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	global.SetLoggerProvider(lp)

	p := &providers{tp: tp, mp: mp, lp: lp, ex: ex}

	err = runtime.Start(
		runtime.WithMeterProvider(mp),
		runtime.WithMinimumReadMemStatsInterval(time.Second),
	)
	if err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}
	return p, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	return resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(config.MustOr(ctx, "crud", cfg.ServiceName)),
			semconv.ServiceVersion(config.MustOr(ctx, "", cfg.ServiceVersion)),
		),
	)
}
