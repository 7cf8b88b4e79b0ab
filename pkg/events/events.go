// Package events publishes ledger facts after they are committed. Delivery is
// best effort: a failed publish never undoes a ledger mutation.
package events

import (
	"context"
	"time"
)

type Type string

const (
	TypeTransferCompleted   Type = "ledger.transfer.completed"
	TypeDepositCredited     Type = "ledger.deposit.credited"
	TypeWithdrawalSettled   Type = "ledger.withdrawal.settled"
)

type Event struct {
	Type       Type
	Key        string
	OccurredAt time.Time
	Payload    any
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
