// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otel

import (
	"context"
	"errors"

	"github.com/z5labs/crud/concurrent"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// conns shares one client connection per collector across signals.
var conns = concurrent.NewCache[string, *grpc.ClientConn]()

type exporterOptions struct {
	endpoint string
	insecure bool
}

type exporters struct {
	span   sdktrace.SpanExporter
	metric sdkmetric.Exporter
	log    sdklog.Exporter
	conn   *grpc.ClientConn
	target string
}

// Close closes the shared grpc connection, if any. The exporters are shut
// down by their providers.
func (e *exporters) Close() error {
	if e == nil || e.conn == nil {
		return nil
	}
	conns.Delete(e.target)
	return e.conn.Close()
}

func newExporters(ctx context.Context, exporter Exporter, opts exporterOptions) (*exporters, error) {
	if exporter == ExporterOTLPHttp {
		return newHttpExporters(ctx, opts)
	}

	cc, err := conns.GetOr(opts.endpoint, func() (*grpc.ClientConn, error) {
		return grpc.NewClient(opts.endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	})
	if err != nil {
		return nil, err
	}

	ex := &exporters{conn: cc, target: opts.endpoint}
	ex.span, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(cc))
	if err != nil {
		return nil, errors.Join(err, ex.Close())
	}
	ex.metric, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(cc))
	if err != nil {
		return nil, errors.Join(err, ex.Close())
	}
	ex.log, err = otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(cc))
	if err != nil {
		return nil, errors.Join(err, ex.Close())
	}
	return ex, nil
}

func newHttpExporters(ctx context.Context, opts exporterOptions) (*exporters, error) {
	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.endpoint)}
	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(opts.endpoint)}
	logOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(opts.endpoint)}
	if opts.insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		logOpts = append(logOpts, otlploghttp.WithInsecure())
	}

	var (
		ex  exporters
		err error
	)
	ex.span, err = otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, err
	}
	ex.metric, err = otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, err
	}
	ex.log, err = otlploghttp.New(ctx, logOpts...)
	if err != nil {
		return nil, err
	}
	return &ex, nil
}
