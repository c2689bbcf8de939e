// Package kafka wires the raw and canonical source topics.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Consumer groups.
const (
	GroupNormalizer = "normalizer-group"
	GroupLoader     = "loader-group"
)

// NewWriter returns a kafka-go writer keyed by campaign so one campaign's envelopes stay
// ordered within a partition.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 250 * time.Millisecond,
		BatchSize:    1,
	}
}

// NewReader constructs a reader bound to a consumer group.
func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		Topic:           topic,
		GroupID:         group,
		MinBytes:        1e4,
		MaxBytes:        10e6,
		StartOffset:     kafka.FirstOffset,
		CommitInterval:  time.Second,
		ReadLagInterval: 5 * time.Second,
		MaxWait:         time.Second,
	})
}

// MessageWriter is the subset of *kafka.Writer used to publish.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher encodes values as JSON and writes them under a key.
type Publisher struct {
	w       MessageWriter
	timeout time.Duration
}

// NewPublisher wraps w. Each publish is bounded by timeout.
func NewPublisher(w MessageWriter, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{w: w, timeout: timeout}
}

// Publish writes v as one message keyed by key.
func (p *Publisher) Publish(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload})
}
