package domain

import (
	"encoding/json"
	"time"
)

// EventLogEntry is one consumed domain event persisted by the worker.
type EventLogEntry struct {
	ID         string
	Type       string
	Entity     string
	EntityID   int64
	Payload    json.RawMessage
	OccurredAt time.Time
}
