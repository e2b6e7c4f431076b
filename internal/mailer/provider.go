// Package mailer provides an abstraction for delivering notification
// emails and the concrete Resend and SMTP adapters behind it. Delivery
// failures are classified as transient or permanent so the dispatcher can
// decide what is worth retrying.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Message is the content handed to a delivery provider.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Provider is the interface for email delivery backends. Send returns the
// provider-assigned delivery identifier on success.
type Provider interface {
	// Name returns the provider identifier (e.g. "resend", "smtp").
	Name() string
	// Send delivers the message using the provider's transport.
	Send(ctx context.Context, msg Message) (string, error)
}

// SendError is a classified delivery failure.
type SendError struct {
	Provider string
	// StatusCode is the HTTP status for HTTP providers, 0 otherwise.
	StatusCode int
	// Transient marks failures worth retrying: rate limits, timeouts,
	// provider 5xx. Permanent failures (bad recipient, other 4xx) are not.
	Transient bool
	Err       error
}

func (e *SendError) Error() string {
	class := "permanent"
	if e.Transient {
		class = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s delivery failed (%s, status %d): %v", e.Provider, class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s delivery failed (%s): %v", e.Provider, class, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a delivery failure eligible for retry.
// Classified errors carry their own verdict; unclassified network-level
// errors (connection refused, timeouts) are treated as transient.
func IsTransient(err error) bool {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
