package implementation

import (
	"context"

	"github.com/jt828/token-ledger/pkg/events"
)

type noopPublisher struct{}

// NewNoopPublisher is used when no brokers are configured.
func NewNoopPublisher() events.Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, events.Event) error { return nil }

func (noopPublisher) Close() error { return nil }
