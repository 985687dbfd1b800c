// Package events publishes order lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/erazemk/techstore/internal/model"
)

// DefaultTopic receives order events when no topic is configured.
const DefaultTopic = "techstore.orders"

// Event types.
const (
	OrderPlaced        = "order.placed"
	OrderLineAdded     = "order.line_added"
	OrderStatusChanged = "order.status_changed"
)

// Event is the JSON payload of an order event.
type Event struct {
	Type       string            `json:"type"`
	OrderID    int64             `json:"order_id"`
	AccountID  int64             `json:"account_id"`
	ActorID    int64             `json:"actor_id"`
	Status     model.OrderStatus `json:"status"`
	Total      decimal.Decimal   `json:"total"`
	Lines      []model.OrderLine `json:"lines,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewEvent describes order as changed by actorID.
func NewEvent(eventType string, order *model.Order, actorID int64) Event {
	return Event{
		Type:       eventType,
		OrderID:    order.ID,
		AccountID:  order.AccountID,
		ActorID:    actorID,
		Status:     order.Status,
		Total:      order.Total,
		Lines:      order.Lines,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Publish must not be called after Close.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// messageWriter is the part of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by order ID, so every
// event of one order lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher returns a publisher writing to topic on broker. Writes are
// asynchronous: Publish returns once the message is queued and delivery
// failures are logged by logDelivery.
func NewKafkaPublisher(broker, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: newKafkaWriter(broker, topic)}
}

func newKafkaWriter(broker, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              100,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             logDelivery,
	}
}

// logDelivery reports the outcome of an asynchronous batch.
func logDelivery(messages []kafka.Message, err error) {
	if err == nil {
		slog.Debug("order events delivered", "count", len(messages))
		return
	}
	for _, m := range messages {
		slog.Warn("delivering order event", "order_id", string(m.Key), "type", headerValue(m, "type"), "error", err)
	}
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Publish encodes and writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(e.OrderID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing %s event: %w", e.Type, err)
	}
	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher only logs events at debug level.
type LogPublisher struct{}

// Publish logs e.
func (LogPublisher) Publish(_ context.Context, e Event) error {
	slog.Debug("order event", "type", e.Type, "order_id", e.OrderID, "status", e.Status)
	return nil
}

// Close does nothing.
func (LogPublisher) Close() error { return nil }
