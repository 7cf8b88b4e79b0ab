package implementation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jt828/token-ledger/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMessage(t *testing.T) {
	occurred := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	msg, err := toMessage(events.Event{
		Type:       events.TypeTransferCompleted,
		Key:        "1/2",
		OccurredAt: occurred,
		Payload:    map[string]string{"amount": "30"},
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("1/2"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, []byte("ledger.transfer.completed"), msg.Headers[0].Value)

	var decoded struct {
		Type       string            `json:"type"`
		OccurredAt time.Time         `json:"occurred_at"`
		Payload    map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "ledger.transfer.completed", decoded.Type)
	assert.True(t, occurred.Equal(decoded.OccurredAt))
	assert.Equal(t, "30", decoded.Payload["amount"])
}

func TestToMessage_UnencodablePayload(t *testing.T) {
	_, err := toMessage(events.Event{Type: events.TypeDepositCredited, Payload: make(chan int)})

	assert.ErrorContains(t, err, "marshal ledger.deposit.credited event")
}

func TestKafkaPublisher_UnreachableBrokerIsBounded(t *testing.T) {
	p := NewKafkaPublisher([]string{"127.0.0.1:1"}, "ledger.events", 100*time.Millisecond)
	defer p.Close()

	start := time.Now()
	err := p.Publish(context.Background(), events.Event{Type: events.TypeTransferCompleted, Key: "1/2"})

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher()

	assert.NoError(t, p.Publish(context.Background(), events.Event{Type: events.TypeWithdrawalSettled}))
	assert.NoError(t, p.Close())
}
