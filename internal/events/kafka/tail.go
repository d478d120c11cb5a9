package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/inventory-hub/pkg/tracing"
)

// Message is a decoded outbox event as seen on the topic.
type Message struct {
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Partition int             `json:"partition"`
	Offset    int64           `json:"offset"`
	TraceID   string          `json:"traceId,omitempty"`
	Time      time.Time       `json:"time"`
	Payload   json.RawMessage `json:"payload"`
}

type Tail struct {
	log    *slog.Logger
	reader *kafka.Reader
}

// NewTail reads topic from the start when group is empty, otherwise as a
// member of group.
func NewTail(log *slog.Logger, brokers []string, topic, group string) *Tail {
	cfg := kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
		MaxWait: 500 * time.Millisecond,
	}
	if group == "" {
		cfg.StartOffset = kafka.FirstOffset
	}
	return &Tail{log: log, reader: kafka.NewReader(cfg)}
}

// Run hands each message to fn until ctx ends, fn fails, or the reader closes.
func (t *Tail) Run(ctx context.Context, fn func(Message) error) error {
	defer t.reader.Close()
	cfg := t.reader.Config()
	t.log.Info("tailing events", "topic", cfg.Topic, "group", cfg.GroupID)
	for {
		msg, err := t.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(decode(ctx, msg)); err != nil {
			return err
		}
	}
}

func decode(ctx context.Context, msg kafka.Message) Message {
	out := Message{
		Key:       string(msg.Key),
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Time:      msg.Time,
		Payload:   json.RawMessage(msg.Value),
	}
	for _, h := range msg.Headers {
		if h.Key == "event_type" {
			out.Type = string(h.Value)
		}
	}
	sc := trace.SpanContextFromContext(tracing.ExtractKafkaHeaders(ctx, msg.Headers))
	if sc.IsValid() {
		out.TraceID = sc.TraceID().String()
	}
	if !json.Valid(msg.Value) {
		out.Payload, _ = json.Marshal(string(msg.Value))
	}
	return out
}
