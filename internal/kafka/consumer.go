package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// MessageHandler processes one consumed message. A handler error is
// logged and the message is not redelivered; notification loss is
// compensated elsewhere, never retried here.
type MessageHandler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader *kafka.Reader
	log    *logrus.Entry
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{
		reader: reader,
		log:    logrus.WithField("component", "kafka-consumer"),
	}
}

// Consume blocks reading messages until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.WithError(err).Error("read message")
			continue
		}

		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			c.log.WithError(err).WithField("key", string(msg.Key)).Warn("handle message")
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
