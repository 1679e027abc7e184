// Package events publishes one aggregate summary per dispatched invocation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Summary carries counts only; per-recipient results are never published.
type Summary struct {
	InvocationID string    `json:"invocation_id"`
	Trigger      string    `json:"trigger"`
	Recipients   int       `json:"recipients"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	Outcome      string    `json:"outcome"`
	EmittedAt    time.Time `json:"emitted_at"`
}

type Publisher interface {
	Publish(ctx context.Context, summary Summary) error
}

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	Writer MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, summary Summary) error {
	if summary.EmittedAt.IsZero() {
		summary.EmittedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(summary.InvocationID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// Nop discards summaries when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Summary) error { return nil }
