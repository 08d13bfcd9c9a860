// Package events publishes review lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Type names an event.
type Type string

const (
	ReviewCreated Type = "review.created"
	ReplyCreated  Type = "reply.created"
)

// Event is the message body. Fields not relevant to a type are omitted.
type Event struct {
	Type              Type      `json:"type"`
	CourseID          string    `json:"courseId,omitempty"`
	ReviewID          string    `json:"reviewId,omitempty"`
	ReplyID           string    `json:"replyId,omitempty"`
	UserID            string    `json:"userId"`
	Rating            int       `json:"rating,omitempty"`
	CourseRating      float64   `json:"courseRating,omitempty"`
	CourseReviewCount int64     `json:"courseReviewCount,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// partitionKey keeps the events of one course, or one review, in order.
func (e Event) partitionKey() string {
	if e.CourseID != "" {
		return e.CourseID
	}
	return e.ReviewID
}

// WriterInterface is the part of *kafka.Writer the producer needs.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON events to a single topic.
type Producer struct {
	Writer WriterInterface
	Logger *zap.Logger
}

// batchTimeout caps how long a message waits for batch-mates before flushing.
const batchTimeout = 10 * time.Millisecond

// NewProducer builds a producer on an async kafka-go writer. Publish only
// enqueues; delivery failures are logged from the writer's completion hook
// and Close flushes what is still buffered.
func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			BatchTimeout: batchTimeout,
			Completion:   deliveryLogger(logger),
		},
		Logger: logger,
	}
}

func deliveryLogger(logger *zap.Logger) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		keys := make([]string, 0, len(msgs))
		for _, m := range msgs {
			keys = append(keys, string(m.Key))
		}
		logger.Error("failed to deliver kafka messages", zap.Strings("keys", keys), zap.Error(err))
	}
}

// Publish writes one event keyed by its course or review id.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.partitionKey()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		p.Logger.Error("failed to write kafka message", zap.String("type", string(event.Type)), zap.Error(err))
		return err
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.Writer.Close()
}
