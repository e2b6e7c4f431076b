// Package eventbus provides an in-memory, asynchronous bus for delivery
// outcome events. Outcomes are enqueued on a buffered channel and fanned
// out to subscribers (metrics, audit logging) by a worker pool, keeping
// observers off the dispatch path.
package eventbus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fusshn/booking-notifier/internal/storage"
)

const (
	defaultWorkers    = 2
	defaultBufferSize = 256
)

// Bus distributes outcome events to subscribers.
type Bus interface {
	// Publish enqueues the outcome. It never blocks: if the buffer is
	// full, the event is dropped and a warning is logged.
	Publish(outcome storage.DeliveryOutcome)

	// Subscribe registers a listener that will be called for every
	// published event. All listeners see each event (broadcast).
	// Subscribe must be called before the first Publish.
	Subscribe(listener Listener)

	// Close stops accepting new events and waits for pending ones to drain.
	Close()
}

// inMemoryBus is the default Bus implementation.
type inMemoryBus struct {
	ch        chan Event
	listeners []Listener
	mu        sync.RWMutex
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// New creates an in-memory Bus with the specified number of worker
// goroutines. If workers is <= 0, a small default is used.
func New(workers int, logger *slog.Logger) Bus {
	if workers <= 0 {
		workers = defaultWorkers
	}
	b := &inMemoryBus{
		ch:     make(chan Event, defaultBufferSize),
		logger: logger,
	}
	b.startWorkers(workers)
	return b
}

func (b *inMemoryBus) startWorkers(workers int) {
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for e := range b.ch {
				b.dispatch(e)
			}
		}()
	}
}

// dispatch calls all registered listeners for the given event. Each
// listener is invoked with panic recovery so one bad observer cannot
// affect the others.
func (b *inMemoryBus) dispatch(e Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("eventbus listener panicked",
						slog.String("event_type", e.Type),
						slog.Any("panic", r))
				}
			}()
			l(e)
		}()
	}
}

// Publish enqueues an outcome event. If the buffer is full it is dropped.
func (b *inMemoryBus) Publish(outcome storage.DeliveryOutcome) {
	e := Event{
		Type:      TypeForOutcome(outcome),
		Timestamp: time.Now(),
		Outcome:   outcome,
	}

	select {
	case b.ch <- e:
	default:
		b.logger.Warn("eventbus buffer full, dropping event",
			slog.String("event_type", e.Type),
			slog.String("document_id", outcome.DocumentID))
	}
}

// Subscribe adds a listener to receive all future events.
func (b *inMemoryBus) Subscribe(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

// Close drains and closes the event channel, then waits for the workers.
func (b *inMemoryBus) Close() {
	close(b.ch)
	b.wg.Wait()
}
