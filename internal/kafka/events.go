package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	BookingCreated = "booking_created"
	BookingUpdated = "booking_updated"
	BookingDeleted = "booking_deleted"
	FlightCreated  = "flight_created"
	FlightUpdated  = "flight_updated"
	FlightDeleted  = "flight_deleted"
)

// Header is shared by every event and is all the worker needs to file one.
type Header struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Entity     string    `json:"entity"`
	EntityID   int64     `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (h Header) Key() string {
	return fmt.Sprintf("%s:%d", h.Entity, h.EntityID)
}

type BookingEvent struct {
	Header
	FlightID  *int64 `json:"flight_id"`
	UserID    *int64 `json:"user_id"`
	Seats     int    `json:"no_of_seats"`
	SeatPrice int64  `json:"seat_price"`
}

func NewBookingEvent(eventType string, b domain.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Header: Header{
			ID:         uuid.NewString(),
			Type:       eventType,
			Entity:     "booking",
			EntityID:   b.ID,
			OccurredAt: at.UTC(),
		},
		FlightID:  b.FlightID,
		UserID:    b.UserID,
		Seats:     b.Seats,
		SeatPrice: b.SeatPrice,
	}
}

type FlightEvent struct {
	Header
	CompanyID int64     `json:"company_id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"no_of_seats"`
	DepartsAt time.Time `json:"departs_at"`
	ArrivesAt time.Time `json:"arrives_at"`
}

func NewFlightEvent(eventType string, f domain.Flight, at time.Time) FlightEvent {
	return FlightEvent{
		Header: Header{
			ID:         uuid.NewString(),
			Type:       eventType,
			Entity:     "flight",
			EntityID:   f.ID,
			OccurredAt: at.UTC(),
		},
		CompanyID: f.CompanyID,
		Name:      f.Name,
		Capacity:  f.Capacity,
		DepartsAt: f.DepartsAt,
		ArrivesAt: f.ArrivesAt,
	}
}

// DecodeEntry turns a consumed message into an event log row, keeping the raw
// payload.
func DecodeEntry(msg kafka.Message) (domain.EventLogEntry, error) {
	var h Header
	if err := json.Unmarshal(msg.Value, &h); err != nil {
		return domain.EventLogEntry{}, fmt.Errorf("decode event: %w", err)
	}
	if h.ID == "" || h.Type == "" {
		return domain.EventLogEntry{}, fmt.Errorf("decode event: missing id or type")
	}
	if _, err := uuid.Parse(h.ID); err != nil {
		return domain.EventLogEntry{}, fmt.Errorf("decode event: %w", err)
	}
	occurred := h.OccurredAt
	if occurred.IsZero() {
		occurred = msg.Time
	}
	return domain.EventLogEntry{
		ID:         h.ID,
		Type:       h.Type,
		Entity:     h.Entity,
		EntityID:   h.EntityID,
		Payload:    json.RawMessage(msg.Value),
		OccurredAt: occurred,
	}, nil
}
