package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/pickup-orders/internal/events"
)

// Producer hands notification events to the email worker. Delivery is
// best-effort; callers log failures and move on.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer}
}

// Publish writes one event keyed by order id, so events for the same
// order stay ordered within a partition.
func (p *Producer) Publish(ctx context.Context, key string, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  ev.Timestamp,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
