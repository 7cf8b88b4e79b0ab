package observability

import "context"

// Observability bundles the process-wide logger, meter and tracer. Start
// exposes the metrics endpoint; Close flushes traces and logs.
type Observability interface {
	Logger() Logger
	Meter() Meter
	Tracer() Tracer
	Start(ctx context.Context) error
	Close(ctx context.Context) error
}
