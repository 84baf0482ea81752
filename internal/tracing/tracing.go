// Package tracing installs the global OpenTelemetry tracer provider used by
// the service layer and the expiry sweep.
package tracing

import (
	"asset-management-api/internal/config"
	"context"
	"errors"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init configures the stdout exporter from cfg. When tracing is disabled the
// global no-op provider stays in place. Spans go to stdout unless an output
// file is configured.
func Init(serviceName, serviceVersion string, cfg config.TracingConfig) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	var w io.Writer = os.Stdout
	var file *os.File
	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return noopShutdown, err
		}
		w, file = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if file != nil {
			file.Close()
		}
		return noopShutdown, err
	}

	tp, err := NewProvider(serviceName, serviceVersion, exporter, false)
	if err != nil {
		if file != nil {
			file.Close()
		}
		return noopShutdown, err
	}
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if file != nil {
			err = errors.Join(err, file.Close())
		}
		return err
	}, nil
}

// NewProvider builds a tracer provider around exporter. Synchronous providers
// export each span as it ends.
func NewProvider(serviceName, serviceVersion string, exporter sdktrace.SpanExporter, synchronous bool) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	if synchronous {
		processor = sdktrace.NewSimpleSpanProcessor(exporter)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithResource(res),
	), nil
}
