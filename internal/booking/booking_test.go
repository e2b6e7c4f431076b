package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusshn/booking-notifier/internal/booking"
)

func TestRecordFromPayload(t *testing.T) {
	created := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

	rec := booking.RecordFromPayload("doc-1", map[string]any{
		"id":               "b1",
		"userEmail":        "a@x.com",
		"userName":         "Ann",
		"createdAt":        created,
		"totalUserAllowed": int64(2),
		"ticketType": map[string]any{
			"name":  "VIP",
			"price": int64(500),
		},
	})

	assert.Equal(t, "b1", rec.ID)
	assert.Equal(t, "a@x.com", rec.UserEmail)
	assert.Equal(t, "Ann", rec.UserName)
	assert.Equal(t, created, rec.CreatedAt)
	assert.Equal(t, 2, rec.TotalUserAllowed)
	assert.Equal(t, "VIP", rec.TicketType.Name)
	assert.InDelta(t, 500, rec.TicketType.Price, 0)
}

func TestRecordFromPayload_FallsBackToDocumentID(t *testing.T) {
	rec := booking.RecordFromPayload("doc-7", map[string]any{
		"userEmail": "a@x.com",
	})
	assert.Equal(t, "doc-7", rec.ID)
}

func TestRecordFromPayload_ToleratesMissingAndMistypedFields(t *testing.T) {
	rec := booking.RecordFromPayload("doc-2", map[string]any{
		"userEmail":        42, // wrong type
		"totalUserAllowed": "not a number",
		"ticketType":       "not a map",
	})

	assert.Empty(t, rec.UserEmail)
	assert.Zero(t, rec.TotalUserAllowed)
	assert.Zero(t, rec.TicketType.Price)
	assert.True(t, rec.CreatedAt.IsZero())
}

func TestRecordFromPayload_NumericShapes(t *testing.T) {
	cases := []struct {
		name  string
		price any
	}{
		{"int64", int64(500)},
		{"float64", float64(500)},
		{"int", int(500)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := booking.RecordFromPayload("d", map[string]any{
				"ticketType": map[string]any{"price": tc.price},
			})
			require.InDelta(t, 500, rec.TicketType.Price, 0)
		})
	}
}

func TestRecordFromPayload_CreatedAtAsRFC3339String(t *testing.T) {
	rec := booking.RecordFromPayload("d", map[string]any{
		"createdAt": "2026-03-14T19:30:00Z",
	})
	assert.Equal(t, time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC), rec.CreatedAt)
}

func TestTotalAmount(t *testing.T) {
	rec := booking.Record{
		TicketType:       booking.TicketType{Price: 500},
		TotalUserAllowed: 2,
	}
	assert.InDelta(t, 1000, rec.TotalAmount(), 0)
}

func TestChangeKindString(t *testing.T) {
	assert.Equal(t, "added", booking.KindAdded.String())
	assert.Equal(t, "modified", booking.KindModified.String())
	assert.Equal(t, "removed", booking.KindRemoved.String())
	assert.Equal(t, "unknown", booking.ChangeKind(99).String())
}
