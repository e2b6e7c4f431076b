package feed_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusshn/booking-notifier/internal/booking"
	"github.com/fusshn/booking-notifier/internal/feed"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// constantBackOff avoids real exponential waits in tests.
func constantBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

// scriptedSource plays a sequence of Listen outcomes. Each session either
// delivers its batches then fails with err, or blocks until ctx cancels.
type scriptedSource struct {
	mu       sync.Mutex
	sessions []sourceSession
	calls    int
}

type sourceSession struct {
	batches [][]booking.ChangeEvent
	err     error
	block   bool
}

func (s *scriptedSource) Listen(ctx context.Context, handler feed.BatchHandler) error {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()

	if idx >= len(s.sessions) {
		<-ctx.Done()
		return ctx.Err()
	}

	session := s.sessions[idx]
	for _, batch := range session.batches {
		handler(ctx, batch)
	}
	if session.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return session.err
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func addedEvent(id string) booking.ChangeEvent {
	return booking.ChangeEvent{Kind: booking.KindAdded, DocumentID: id, Payload: map[string]any{}}
}

func TestRun_DeliversBatchesInOrder(t *testing.T) {
	source := &scriptedSource{sessions: []sourceSession{
		{
			batches: [][]booking.ChangeEvent{
				{addedEvent("b1"), addedEvent("b2")},
				{addedEvent("b3")},
			},
			block: true,
		},
	}}

	var mu sync.Mutex
	var seen []string
	handler := func(_ context.Context, events []booking.ChangeEvent) {
		mu.Lock()
		for _, e := range events {
			seen = append(seen, e.DocumentID)
		}
		mu.Unlock()
	}

	sub := feed.NewSubscription(source, handler, discardLogger(),
		feed.WithBackOffFactory(constantBackOff))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"b1", "b2", "b3"}, seen)
}

func TestRun_ReconnectsAfterFault(t *testing.T) {
	source := &scriptedSource{sessions: []sourceSession{
		{
			batches: [][]booking.ChangeEvent{{addedEvent("b1")}},
			err:     errors.New("connection reset"),
		},
		{
			// Redelivery of b1 after reconnect, then the new event.
			batches: [][]booking.ChangeEvent{{addedEvent("b1"), addedEvent("b2")}},
			block:   true,
		},
	}}

	var mu sync.Mutex
	var seen []string
	handler := func(_ context.Context, events []booking.ChangeEvent) {
		mu.Lock()
		for _, e := range events {
			seen = append(seen, e.DocumentID)
		}
		mu.Unlock()
	}

	var faults []error
	sub := feed.NewSubscription(source, handler, discardLogger(),
		feed.WithBackOffFactory(constantBackOff),
		feed.WithFaultHandler(func(err error) {
			mu.Lock()
			faults = append(faults, err)
			mu.Unlock()
		}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 2, source.callCount())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, faults, 1)
	assert.ErrorContains(t, faults[0], "connection reset")
}

func TestRun_SurvivesRepeatedFaults(t *testing.T) {
	source := &scriptedSource{sessions: []sourceSession{
		{err: errors.New("fault 1")},
		{err: errors.New("fault 2")},
		{err: errors.New("fault 3")},
		{block: true},
	}}

	sub := feed.NewSubscription(source, func(context.Context, []booking.ChangeEvent) {}, discardLogger(),
		feed.WithBackOffFactory(constantBackOff))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool {
		return source.callCount() == 4
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_ReturnsNilOnCancel(t *testing.T) {
	source := &scriptedSource{} // blocks immediately

	sub := feed.NewSubscription(source, func(context.Context, []booking.ChangeEvent) {}, discardLogger(),
		feed.WithBackOffFactory(constantBackOff))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop on cancel")
	}
}
