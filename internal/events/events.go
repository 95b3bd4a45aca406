// Package events publishes a notification for every record the API saves so
// downstream consumers (rankings, notifications, analytics) can react.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	RecordTypeExercise = "exercise"
	RecordTypeDiet     = "diet"
	RecordTypeFoodItem = "food_item"

	SourceTyping = "TYPING"
	SourceVoice  = "VOICE"
	SourceGPT    = "GPT"
)

// RecordEvent describes one persisted record.
type RecordEvent struct {
	EventID    string         `json:"event_id"`
	RecordType string         `json:"record_type"`
	RecordID   int64          `json:"record_id"`
	UserID     int64          `json:"user_id,omitempty"`
	Source     string         `json:"source"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewRecordEvent stamps a fresh id and the current time.
func NewRecordEvent(recordType string, recordID, userID int64, source string, payload map[string]any) RecordEvent {
	return RecordEvent{
		EventID:    uuid.NewString(),
		RecordType: recordType,
		RecordID:   recordID,
		UserID:     userID,
		Source:     source,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers record events.
type Publisher interface {
	Publish(ctx context.Context, event RecordEvent) error
	Close() error
}

// NoopPublisher drops every event. It is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, RecordEvent) error { return nil }
func (NoopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a single topic, keyed by user id so
// one user's records stay ordered within a partition.
type KafkaPublisher struct {
	topic string

	mu        sync.Mutex
	writer    messageWriter
	newWriter func(topic string) messageWriter
}

const publishBatchTimeout = 10 * time.Millisecond

// NewKafkaPublisher creates a publisher whose writer is opened on first use.
// The writer is asynchronous: Publish only enqueues, and delivery failures
// are reported through logDelivery.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		topic: topic,
		newWriter: func(topic string) messageWriter {
			return newAsyncWriter(brokers, topic)
		},
	}
}

func newAsyncWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: publishBatchTimeout,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			logDelivery(topic, messages, err)
		},
	}
}

func logDelivery(topic string, messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, msg := range messages {
		log.Printf("record event delivery failed topic=%s key=%s err=%v", topic, string(msg.Key), err)
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event RecordEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal record event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(messageKey(event)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "record_type", Value: []byte(event.RecordType)},
			{Key: "source", Value: []byte(event.Source)},
		},
		Time: event.OccurredAt,
	}
	if err := p.writerForTopic().WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event to %s: %w", event.RecordType, p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) writerForTopic() messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer == nil {
		p.writer = p.newWriter(p.topic)
	}
	return p.writer
}

// Close releases the writer if one was opened.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}

func messageKey(event RecordEvent) string {
	if event.UserID > 0 {
		return strconv.FormatInt(event.UserID, 10)
	}
	return event.RecordType + ":" + strconv.FormatInt(event.RecordID, 10)
}
