package render_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusshn/booking-notifier/internal/booking"
	"github.com/fusshn/booking-notifier/internal/render"
)

func validRecord() booking.Record {
	return booking.Record{
		ID:               "b1",
		UserEmail:        "a@x.com",
		UserName:         "Ann",
		CreatedAt:        time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC),
		TicketType:       booking.TicketType{Name: "VIP", Price: 500},
		TotalUserAllowed: 2,
	}
}

func TestConfirmation(t *testing.T) {
	content, err := render.Confirmation(validRecord())
	require.NoError(t, err)

	assert.Equal(t, []string{"a@x.com"}, content.To)
	assert.Equal(t, "Booking Confirmation", content.Subject)
	assert.Contains(t, content.HTML, "Ann")
	assert.Contains(t, content.HTML, "1000")
	assert.Contains(t, content.HTML, "b1")
	assert.Contains(t, content.Text, "Ann")
	assert.Contains(t, content.Text, "1000")
}

func TestConfirmation_Deterministic(t *testing.T) {
	rec := validRecord()

	first, err := render.Confirmation(rec)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := render.Confirmation(rec)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestConfirmation_WholeAmountHasNoDecimalTail(t *testing.T) {
	content, err := render.Confirmation(validRecord())
	require.NoError(t, err)
	assert.Contains(t, content.HTML, "₹1000")
	assert.NotContains(t, content.HTML, "1000.00")
}

func TestConfirmation_ValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*booking.Record)
		field  string
	}{
		{"missing email", func(r *booking.Record) { r.UserEmail = "" }, "userEmail"},
		{"implausible email", func(r *booking.Record) { r.UserEmail = "not-an-address" }, "userEmail"},
		{"missing price", func(r *booking.Record) { r.TicketType.Price = 0 }, "ticketType.price"},
		{"negative price", func(r *booking.Record) { r.TicketType.Price = -100 }, "ticketType.price"},
		{"missing ticket count", func(r *booking.Record) { r.TotalUserAllowed = 0 }, "totalUserAllowed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord()
			tc.mutate(&rec)

			_, err := render.Confirmation(rec)
			require.Error(t, err)

			var verr *render.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestConfirmation_OmitsDateWhenCreatedAtMissing(t *testing.T) {
	rec := validRecord()
	rec.CreatedAt = time.Time{}

	content, err := render.Confirmation(rec)
	require.NoError(t, err)
	assert.NotContains(t, content.HTML, "<strong>Date:</strong>")
}

func TestConfirmation_EscapesHTMLInUserFields(t *testing.T) {
	rec := validRecord()
	rec.UserName = `<script>alert("x")</script>`

	content, err := render.Confirmation(rec)
	require.NoError(t, err)
	assert.NotContains(t, content.HTML, "<script>")
}
