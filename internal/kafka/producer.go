package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const defaultPublishAttempts = 3

// PublishTimeout bounds how long a request waits on the broker after its
// write has committed.
const PublishTimeout = 2 * time.Second

// Producer publishes domain events as JSON. Messages are keyed by entity, and
// the hash balancer keeps one entity's events on one partition.
type Producer struct {
	brokers  []string
	writer   *kafka.Writer
	attempts int
	backoff  time.Duration
	log      *slog.Logger
}

func NewProducer(brokers []string, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	return &Producer{
		brokers: brokers,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			BatchTimeout:           50 * time.Millisecond,
			WriteTimeout:           5 * time.Second,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		attempts: defaultPublishAttempts,
		backoff:  200 * time.Millisecond,
		log:      log,
	}
}

// Publish retries transient write failures with a linear backoff and gives
// up early when ctx ends.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: data, Time: time.Now().UTC()}

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if lastErr = p.writer.WriteMessages(ctx, msg); lastErr == nil {
			p.log.DebugContext(ctx, "event published", slog.String("topic", topic), slog.String("key", key))
			return nil
		}
		p.log.WarnContext(ctx, "publish attempt failed",
			slog.String("topic", topic), slog.Int("attempt", attempt), slog.Any("error", lastErr))
		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * p.backoff):
		}
	}
	return fmt.Errorf("publish to %s after %d attempts: %w", topic, p.attempts, lastErr)
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// CheckConnection dials the first broker and lists the cluster.
func (p *Producer) CheckConnection(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka %s: %w", p.brokers[0], err)
	}
	defer conn.Close()

	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("list kafka brokers: %w", err)
	}
	return nil
}
