package implementation

import (
	"context"

	"github.com/jt828/token-ledger/pkg/observability"
)

type Config struct {
	ServiceName string
	LogLevel    string
	// OTLPEndpoint disables tracing export when empty.
	OTLPEndpoint string
	MetricsAddr  string
}

func NewObservability(cfg Config) (observability.Observability, error) {
	log, err := NewZapLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	meter := NewPrometheusMeter()

	obs := &observabilityImplementation{
		log:         log,
		meter:       meter,
		tracer:      NewNopTracer(),
		metricsAddr: cfg.MetricsAddr,
	}

	if cfg.OTLPEndpoint != "" {
		tracer, shutdown, err := NewOtelTracer(context.Background(), cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			return nil, err
		}
		obs.tracer = tracer
		obs.traceClose = shutdown
	}

	return obs, nil
}

// NewNop returns an observability bundle that discards logs and traces and keeps
// metrics in a private registry.
func NewNop() observability.Observability {
	return &observabilityImplementation{
		log:    NewNopLogger(),
		meter:  NewPrometheusMeter(),
		tracer: NewNopTracer(),
	}
}
