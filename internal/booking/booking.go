// Package booking defines the core domain types for the booking
// notification pipeline: the change events flowing off the document
// store's feed and the booking record they carry.
package booking

import "time"

// ChangeKind classifies a document mutation reported by the change feed.
type ChangeKind int

const (
	// KindAdded marks a newly created document.
	KindAdded ChangeKind = iota
	// KindModified marks an update to an existing document.
	KindModified
	// KindRemoved marks a document deletion.
	KindRemoved
)

// String returns the lowercase name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindModified:
		return "modified"
	case KindRemoved:
		return "removed"
	}
	return "unknown"
}

// ChangeEvent is one document mutation as delivered by the feed. The feed
// is at-least-once: the same DocumentID may be redelivered, in particular
// after a fault-triggered reconnect.
type ChangeEvent struct {
	Kind       ChangeKind
	DocumentID string
	Payload    map[string]any
}

// TicketType is the ticket category attached to a booking.
type TicketType struct {
	Name  string
	Price float64
}

// Record is the subset of a booking document the notifier consumes.
type Record struct {
	ID               string
	UserEmail        string
	UserName         string
	CreatedAt        time.Time
	TicketType       TicketType
	TotalUserAllowed int
}

// TotalAmount is the price of the booking: unit price times ticket count.
func (r Record) TotalAmount() float64 {
	return r.TicketType.Price * float64(r.TotalUserAllowed)
}

// RecordFromPayload decodes a raw change-event payload into a Record.
// Decoding is tolerant: missing or mistyped fields are left at their zero
// value and rejected later by the renderer's validation, so one malformed
// document never takes down a batch.
func RecordFromPayload(documentID string, payload map[string]any) Record {
	r := Record{
		ID:               asString(payload["id"]),
		UserEmail:        asString(payload["userEmail"]),
		UserName:         asString(payload["userName"]),
		CreatedAt:        asTime(payload["createdAt"]),
		TotalUserAllowed: asInt(payload["totalUserAllowed"]),
	}
	if r.ID == "" {
		r.ID = documentID
	}
	if tt, ok := payload["ticketType"].(map[string]any); ok {
		r.TicketType = TicketType{
			Name:  asString(tt["name"]),
			Price: asFloat(tt["price"]),
		}
	}
	return r
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asFloat accepts the numeric shapes Firestore hands back for a number
// field depending on how the document was written.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
