// Package feed maintains the live subscription to the document store's
// change feed. A Subscription wraps a Source with the reconnect policy:
// listener faults are surfaced and the stream is re-established with
// exponential backoff, retrying forever. After a reconnect the store may
// redeliver changes already seen; deduplication is the dispatcher's job.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fusshn/booking-notifier/internal/booking"
)

// BatchHandler receives one batch of change events in receipt order.
// The subscription waits for the handler to return before taking the
// next batch, which gives the pipeline batch-level backpressure.
type BatchHandler func(ctx context.Context, events []booking.ChangeEvent)

// FaultHandler is notified of every subscription-level fault.
type FaultHandler func(err error)

// Source is a live change stream. Listen blocks, delivering batches to
// handler until ctx is canceled or the stream fails.
type Source interface {
	Listen(ctx context.Context, handler BatchHandler) error
}

// Subscription runs a Source with fault handling and reconnect backoff.
type Subscription struct {
	source       Source
	handler      BatchHandler
	onFault      FaultHandler
	logger       *slog.Logger
	buildBackOff func() backoff.BackOff

	// gotBatch records whether the current connection delivered at least
	// one batch; a healthy connection resets the backoff schedule.
	gotBatch atomic.Bool
}

// Option customizes a Subscription.
type Option func(*Subscription)

// WithFaultHandler registers a callback invoked on every listener fault.
func WithFaultHandler(fn FaultHandler) Option {
	return func(s *Subscription) { s.onFault = fn }
}

// WithBackOffFactory overrides the reconnect backoff schedule. Used by tests.
func WithBackOffFactory(factory func() backoff.BackOff) Option {
	return func(s *Subscription) { s.buildBackOff = factory }
}

// NewSubscription wraps source with the reconnect policy.
func NewSubscription(source Source, handler BatchHandler, logger *slog.Logger, opts ...Option) *Subscription {
	s := &Subscription{
		source:  source,
		handler: handler,
		logger:  logger,
		buildBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = time.Minute
			b.MaxElapsedTime = 0 // retry forever
			return b
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run listens until ctx is canceled, reconnecting on fault. It returns nil
// on cancellation; no fault terminates the subscription.
func (s *Subscription) Run(ctx context.Context) error {
	b := s.buildBackOff()

	wrapped := func(ctx context.Context, events []booking.ChangeEvent) {
		s.gotBatch.Store(true)
		s.handler(ctx, events)
	}

	for {
		s.gotBatch.Store(false)
		err := s.source.Listen(ctx, wrapped)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("change feed stream ended unexpectedly")
		}

		if s.onFault != nil {
			s.onFault(err)
		}
		if s.gotBatch.Load() {
			b.Reset()
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			wait = time.Minute
		}
		s.logger.Error("change feed subscription fault, reconnecting",
			slog.Any("error", err),
			slog.Duration("retry_in", wait))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil
		}
	}
}
