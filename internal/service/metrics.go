package service

import (
	"github.com/jt828/token-ledger/pkg/observability"
)

func externalCallDuration(meter observability.Meter) observability.Timer {
	return meter.Timer("ledger_external_call_duration_seconds", observability.MetricOpt{
		Help:      "Latency of calls to the indexer and settlement collaborators.",
		LabelKeys: []string{"collaborator", "operation"},
	})
}

func observeDuration(t observability.Timer, collaborator, operation string) func() {
	return t.Start(
		observability.Label{Key: "collaborator", Value: collaborator},
		observability.Label{Key: "operation", Value: operation},
	)
}
