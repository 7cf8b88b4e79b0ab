package implementation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jt828/token-ledger/pkg/events"
	"github.com/segmentio/kafka-go"
)

const defaultPublishTimeout = 2 * time.Second

type kafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

// NewKafkaPublisher writes events keyed by account. Each Publish gives up after
// timeout, independent of the caller's deadline.
func NewKafkaPublisher(brokers []string, topic string, timeout time.Duration) events.Publisher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &kafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: timeout,
			MaxAttempts:  3,
		},
		timeout: timeout,
	}
}

type envelope struct {
	Type       events.Type `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    any         `json:"payload"`
}

func toMessage(event events.Event) (kafka.Message, error) {
	data, err := json.Marshal(envelope{
		Type:       event.Type,
		OccurredAt: event.OccurredAt.UTC(),
		Payload:    event.Payload,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return kafka.Message{
		Key:     []byte(event.Key),
		Value:   data,
		Time:    event.OccurredAt,
		Headers: []kafka.Header{{Key: "type", Value: []byte(event.Type)}},
	}, nil
}

func (p *kafkaPublisher) Publish(ctx context.Context, event events.Event) error {
	msg, err := toMessage(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, msg)
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
