package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestHandleWithRetry(t *testing.T) {
	c := &Consumer{log: discard()}

	calls := 0
	err := c.handleWithRetry(context.Background(), func(context.Context, kafka.Message) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	}, kafka.Message{})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = c.handleWithRetry(context.Background(), func(context.Context, kafka.Message) error {
		calls++
		return errors.New("permanent")
	}, kafka.Message{})
	assert.EqualError(t, err, "permanent")
	assert.Equal(t, handlerAttempts, calls)
}

func TestHandleWithRetry_StopsOnCancel(t *testing.T) {
	c := &Consumer{log: discard(), backoff: 1 << 40}
	ctx, cancel := context.WithCancel(context.Background())

	err := c.handleWithRetry(ctx, func(context.Context, kafka.Message) error {
		cancel()
		return errors.New("fail")
	}, kafka.Message{})
	assert.ErrorIs(t, err, context.Canceled)
}
