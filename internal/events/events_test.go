package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/erazemk/techstore/internal/model"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherWritesKeyedEvent(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	order := &model.Order{
		ID:        12,
		AccountID: 3,
		Status:    model.OrderPending,
		Total:     decimal.RequireFromString("35.00"),
		Lines: []model.OrderLine{
			{ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		},
	}
	if err := p.Publish(context.Background(), NewEvent(OrderPlaced, order, 3)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "12" {
		t.Errorf("expected key 12, got %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != OrderPlaced {
		t.Errorf("unexpected headers: %+v", msg.Headers)
	}

	var got Event
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if got.Type != OrderPlaced || got.OrderID != 12 || !got.Total.Equal(order.Total) || len(got.Lines) != 1 {
		t.Errorf("unexpected event: %+v", got)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("expected writer to be closed, err %v", err)
	}
}

func TestKafkaPublisherError(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}}

	err := p.Publish(context.Background(), Event{Type: OrderStatusChanged, OrderID: 1})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped writer error, got %v", err)
	}
}

func TestNewKafkaPublisherDefaultTopic(t *testing.T) {
	p := NewKafkaPublisher("localhost:9092", "")
	w, ok := p.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("expected *kafka.Writer, got %T", p.writer)
	}
	if w.Topic != DefaultTopic {
		t.Errorf("expected default topic, got %q", w.Topic)
	}
	if !w.Async || w.Completion == nil {
		t.Error("expected an asynchronous writer reporting deliveries")
	}
}

func TestLogDelivery(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	msg := kafka.Message{
		Key:     []byte("7"),
		Headers: []kafka.Header{{Key: "type", Value: []byte(OrderPlaced)}},
	}
	logDelivery([]kafka.Message{msg}, errors.New("broker unreachable"))

	out := buf.String()
	for _, want := range []string{"level=WARN", "order_id=7", "type=order.placed", "broker unreachable"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log output: %s", want, out)
		}
	}

	buf.Reset()
	logDelivery([]kafka.Message{msg}, nil)
	if strings.Contains(buf.String(), "WARN") {
		t.Errorf("successful delivery logged a warning: %s", buf.String())
	}
}

func TestLogPublisher(t *testing.T) {
	var p Publisher = LogPublisher{}
	if err := p.Publish(context.Background(), Event{Type: OrderPlaced}); err != nil {
		t.Error(err)
	}
	if err := p.Close(); err != nil {
		t.Error(err)
	}
}
