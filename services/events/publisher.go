// Package events publishes answer lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/upb/faq-rag/config"
	"github.com/upb/faq-rag/models"
	"go.uber.org/zap"
)

// EventTypeAnswerCompleted is emitted once per finished question
const EventTypeAnswerCompleted = "answer.completed"

// ErrPublisherClosed is returned after Close
var ErrPublisherClosed = errors.New("event publisher is closed")

// AnswerEvent is the JSON payload of an answer.completed message
type AnswerEvent struct {
	Type              string             `json:"type"`
	RequestID         string             `json:"request_id"`
	State             models.AnswerState `json:"state"`
	Verdict           string             `json:"verdict"`
	OverallConfidence float64            `json:"overall_confidence"`
	Degraded          bool               `json:"degraded"`
	ErrorCode         string             `json:"error_code,omitempty"`
	References        []string           `json:"references"`
	LatencyMs         int                `json:"latency_ms"`
	OccurredAt        time.Time          `json:"occurred_at"`
}

// NewAnswerEvent builds the event of a finished answer record
func NewAnswerEvent(rec *models.AnswerRecord) AnswerEvent {
	ev := AnswerEvent{
		Type:              EventTypeAnswerCompleted,
		RequestID:         rec.RequestID,
		State:             rec.State,
		Verdict:           rec.Verdict,
		OverallConfidence: rec.OverallConfidence,
		Degraded:          rec.Degraded,
		References:        rec.ReferenceList(),
		LatencyMs:         rec.LatencyMs,
		OccurredAt:        rec.CreatedAt,
	}
	if rec.ErrorCode != nil {
		ev.ErrorCode = *rec.ErrorCode
	}
	return ev
}

// Publisher sends answer events
type Publisher interface {
	PublishAnswer(ctx context.Context, rec *models.AnswerRecord) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used here
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes answer events keyed by request id
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// NewPublisher returns a Kafka publisher when brokers are configured and a no-op one otherwise
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("no kafka brokers configured, answer events disabled")
		return NopPublisher{}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		Compression:  kafka.Gzip,
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	logger.Info("publishing answer events",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.Topic))

	return newKafkaPublisher(writer, cfg.Topic, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, logger: logger}
}

// PublishAnswer sends one answer.completed message
func (p *KafkaPublisher) PublishAnswer(ctx context.Context, rec *models.AnswerRecord) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPublisherClosed
	}
	p.mu.Unlock()

	value, err := json.Marshal(NewAnswerEvent(rec))
	if err != nil {
		return fmt.Errorf("failed to marshal answer event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(rec.RequestID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeAnswerCompleted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish answer event to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishAnswer(context.Context, *models.AnswerRecord) error { return nil }
func (NopPublisher) Close() error                                              { return nil }
