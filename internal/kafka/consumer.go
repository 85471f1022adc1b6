package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const handlerAttempts = 3

type Handler func(ctx context.Context, msg kafka.Message) error

// Consumer reads one topic as part of a consumer group. Offsets are committed
// explicitly after the handler succeeds, so a crash replays the message.
type Consumer struct {
	reader  *kafka.Reader
	topic   string
	log     *slog.Logger
	backoff time.Duration
}

func NewConsumer(brokers []string, groupID, topic string, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			StartOffset:       kafka.FirstOffset,
			MinBytes:          1,
			MaxBytes:          1 << 20,
			MaxWait:           time.Second,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		topic:   topic,
		log:     log.With(slog.String("topic", topic)),
		backoff: 500 * time.Millisecond,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume runs until ctx is cancelled, which is not an error. A message whose
// handler keeps failing stops the consumer without committing it.
func (c *Consumer) Consume(ctx context.Context, handle Handler) error {
	c.log.InfoContext(ctx, "consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch from %s: %w", c.topic, err)
		}

		if err := c.handleWithRetry(ctx, handle, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("handle %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit %s: %w", c.topic, err)
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, handle Handler, msg kafka.Message) error {
	var err error
	for attempt := 1; attempt <= handlerAttempts; attempt++ {
		if err = handle(ctx, msg); err == nil {
			return nil
		}
		c.log.WarnContext(ctx, "event handler failed",
			slog.Int("attempt", attempt), slog.Int64("offset", msg.Offset), slog.Any("error", err))
		if attempt == handlerAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	return err
}
