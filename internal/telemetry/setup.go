package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Options selects how the process reports telemetry.
type Options struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	Environment  string
	// Output receives JSON logs when Enabled is false. Defaults to stdout.
	Output io.Writer
}

// Telemetry bundles the logger and meter the server is built with.
type Telemetry struct {
	Logger *slog.Logger
	Meter  metric.Meter

	shutdown []func(context.Context) error
}

// Setup installs the OTLP tracer, meter and logger providers when enabled.
// Otherwise it returns a JSON logger and the global no-op meter.
func Setup(ctx context.Context, opts Options) (*Telemetry, error) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	if !opts.Enabled {
		return &Telemetry{
			Logger: NewJSONLogger(out, opts.ServiceName, opts.Environment),
			Meter:  otel.Meter(opts.ServiceName),
		}, nil
	}

	t := &Telemetry{}

	tp, err := InitTracerProvider(ctx, opts.ServiceName, opts.OTLPEndpoint, opts.Environment)
	if err != nil {
		return nil, err
	}
	t.shutdown = append(t.shutdown, tp.Shutdown)

	mp, err := InitMeterProvider(ctx, opts.ServiceName, opts.OTLPEndpoint, opts.Environment)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	t.shutdown = append(t.shutdown, mp.Shutdown)

	// Initialized last so startup logs from the other providers correlate.
	lp, logger, err := InitLoggerProvider(ctx, opts.ServiceName, opts.OTLPEndpoint, opts.Environment)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	t.shutdown = append(t.shutdown, lp.Shutdown)

	t.Logger = logger
	t.Meter = otel.Meter(opts.ServiceName)
	return t, nil
}

// Shutdown flushes and stops the providers in reverse order.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(t.shutdown) - 1; i >= 0; i-- {
		if err := t.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdown = nil
	return errors.Join(errs...)
}
