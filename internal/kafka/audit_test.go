package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/repository/memory"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Append(context.Context, domain.EventLogEntry) error {
	return errors.New("db down")
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuditHandler_RecordsOncePerEvent(t *testing.T) {
	store := memory.New()
	handle := AuditHandler(store.EventLog(), discard())

	flightID := int64(4)
	ev := NewBookingEvent(BookingDeleted, domain.Booking{ID: 8, FlightID: &flightID, Seats: 1, SeatPrice: 90}, time.Now())
	value, err := json.Marshal(ev)
	require.NoError(t, err)
	msg := kafka.Message{Topic: "booking-events", Value: value}

	require.NoError(t, handle(context.Background(), msg))
	require.NoError(t, handle(context.Background(), msg))

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, BookingDeleted, events[0].Type)
	assert.Equal(t, int64(8), events[0].EntityID)
}

func TestAuditHandler_SkipsMalformed(t *testing.T) {
	store := memory.New()
	handle := AuditHandler(store.EventLog(), discard())

	require.NoError(t, handle(context.Background(), kafka.Message{Value: []byte("not json")}))
	assert.Empty(t, store.Events())
}

func TestAuditHandler_PropagatesStoreErrors(t *testing.T) {
	handle := AuditHandler(failingStore{}, discard())
	ev := NewFlightEvent(FlightCreated, domain.Flight{ID: 1, CompanyID: 2, Name: "F1", Capacity: 10}, time.Now())
	value, err := json.Marshal(ev)
	require.NoError(t, err)

	assert.Error(t, handle(context.Background(), kafka.Message{Value: value}))
}
