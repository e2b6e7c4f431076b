// Package render turns a booking record into the notification content for
// its confirmation email. Rendering is pure: the same record always yields
// byte-identical content, and invalid records are rejected before any
// delivery attempt is made.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"net/mail"
	"strconv"

	"github.com/fusshn/booking-notifier/internal/booking"
)

// Subject is the subject line of every booking confirmation.
const Subject = "Booking Confirmation"

// dateLayout is the fixed layout for the event date shown in the email.
const dateLayout = "Monday, 2 January 2006 at 15:04 MST"

// Content is a rendered notification ready for a delivery provider.
type Content struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// ValidationError reports a booking record that cannot produce a
// notification. It is terminal for the event: retrying cannot fix the data.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid booking record: field %s %s", e.Field, e.Reason)
}

// validate rejects records missing the fields the confirmation depends on.
func validate(rec booking.Record) error {
	if rec.UserEmail == "" {
		return &ValidationError{Field: "userEmail", Reason: "is missing"}
	}
	if _, err := mail.ParseAddress(rec.UserEmail); err != nil {
		return &ValidationError{Field: "userEmail", Reason: "is not a valid address"}
	}
	if rec.TicketType.Price <= 0 {
		return &ValidationError{Field: "ticketType.price", Reason: "is missing or not a positive number"}
	}
	if rec.TotalUserAllowed <= 0 {
		return &ValidationError{Field: "totalUserAllowed", Reason: "is missing or not a positive count"}
	}
	return nil
}

// Confirmation renders the booking confirmation email for rec.
func Confirmation(rec booking.Record) (Content, error) {
	if err := validate(rec); err != nil {
		return Content{}, err
	}

	data := confirmationData{
		UserName:    rec.UserName,
		BookingID:   rec.ID,
		TicketCount: rec.TotalUserAllowed,
		TotalAmount: formatAmount(rec.TotalAmount()),
	}
	if !rec.CreatedAt.IsZero() {
		data.EventDate = rec.CreatedAt.UTC().Format(dateLayout)
	}

	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, data); err != nil {
		return Content{}, fmt.Errorf("rendering confirmation for booking %q: %w", rec.ID, err)
	}

	return Content{
		To:      []string{rec.UserEmail},
		Subject: Subject,
		HTML:    buf.String(),
		Text:    plainText(data),
	}, nil
}

type confirmationData struct {
	UserName    string
	BookingID   string
	EventDate   string
	TicketCount int
	TotalAmount string
}

// formatAmount prints whole-rupee amounts without a decimal tail, so a
// 500 x 2 booking reads "1000" rather than "1000.00".
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// plainText is the fallback body for clients that don't render HTML.
func plainText(d confirmationData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Hey %s, your booking is confirmed!\n\n", d.UserName)
	fmt.Fprintf(&buf, "Confirmation code: %s\n", d.BookingID)
	if d.EventDate != "" {
		fmt.Fprintf(&buf, "Date: %s\n", d.EventDate)
	}
	fmt.Fprintf(&buf, "Tickets: %d\n", d.TicketCount)
	fmt.Fprintf(&buf, "Total amount paid: ₹%s\n\n", d.TotalAmount)
	buf.WriteString("Thank you for booking with Fusshn!\nhttps://fusshn.in\n")
	return buf.String()
}

// confirmationTmpl is the branded HTML wrapper for confirmation emails.
// Fields are auto-escaped by html/template.
var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1.0">
  <title>Booking Confirmation</title>
</head>
<body style="margin:0;padding:0;background-color:#333;
     font-family:'Poppins',-apple-system,'Segoe UI',Roboto,Arial,sans-serif;color:#fff;">
  <table width="100%" cellpadding="0" cellspacing="0" role="presentation"
         style="background-color:#333;padding:40px 16px;">
    <tr>
      <td align="center">
        <table width="600" cellpadding="0" cellspacing="0" role="presentation"
               style="max-width:600px;width:100%;background-color:#444;border-radius:8px;">

          <tr>
            <td style="padding:28px 40px;text-align:center;border-bottom:2px solid #555;">
              <h1 style="margin:0;font-size:24px;color:rgb(48,185,77);">
                Hey {{.UserName}}, Your Booking is Confirmed!</h1>
              <p style="margin:8px 0 0;font-size:14px;color:#bbb;">
                Thank you for booking with Fusshn!</p>
            </td>
          </tr>

          <tr>
            <td style="padding:28px 40px;">
              <h2 style="margin:0 0 16px;font-size:18px;color:#fff;">Booking Details</h2>
              {{if .EventDate}}<p style="margin:0 0 8px;font-size:16px;color:#ccc;">
                <strong>Date:</strong> {{.EventDate}}</p>{{end}}
              <p style="margin:0 0 8px;font-size:16px;color:#ccc;">
                <strong>Tickets:</strong> {{.TicketCount}}</p>
              <p style="margin:16px 0 8px;font-size:16px;color:#ddd;">
                <strong>Your Confirmation Code:</strong>
                <span style="font-size:18px;font-weight:bold;color:rgb(48,185,77);">{{.BookingID}}</span></p>
              <p style="margin:0 0 8px;font-size:16px;color:#ddd;">
                <strong>Total Amount Paid:</strong> ₹{{.TotalAmount}}</p>
              <p style="margin:16px 0 0;font-size:14px;color:#ddd;">
                If you have any questions, feel free to reach out to our support team.</p>
            </td>
          </tr>

          <tr>
            <td style="padding:20px 40px;text-align:center;border-top:1px solid #555;">
              <p style="margin:0;font-size:12px;color:#bbb;">
                For more information, visit our website:
                <a href="https://fusshn.in" style="color:rgb(48,185,77);text-decoration:none;">fusshn.in</a></p>
              <p style="margin:8px 0 0;font-size:12px;color:#bbb;">
                You're receiving this email because you booked a ticket with
                <span style="font-weight:bold;color:rgb(48,185,77);">Fusshn</span>.</p>
            </td>
          </tr>

        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`))
