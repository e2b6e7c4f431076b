package eventbus

import (
	"time"

	"github.com/fusshn/booking-notifier/internal/storage"
)

// Outcome event types published by the dispatch coordinator.
const (
	TypeDelivered  = "dispatch.delivered"
	TypeFailed     = "dispatch.failed"
	TypeDeadLetter = "dispatch.dead_letter"
)

// Event announces one recorded delivery outcome.
type Event struct {
	Type      string                  `json:"type"`
	Timestamp time.Time               `json:"timestamp"`
	Outcome   storage.DeliveryOutcome `json:"outcome"`
}

// Listener is a function that handles an outcome event.
type Listener func(Event)

// TypeForOutcome maps an outcome's status to its event type.
func TypeForOutcome(o storage.DeliveryOutcome) string {
	switch o.Status {
	case storage.StatusDelivered:
		return TypeDelivered
	case storage.StatusDeadLetter:
		return TypeDeadLetter
	default:
		return TypeFailed
	}
}
