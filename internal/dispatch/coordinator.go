// Package dispatch contains the coordinator that turns change-feed batches
// into booking confirmation emails. It filters for creation events, checks
// the idempotency store, renders and delivers the notification, and records
// one outcome per attempt. The feed is at-least-once; the coordinator's
// contract is at most one successful delivery per booking document.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fusshn/booking-notifier/internal/booking"
	"github.com/fusshn/booking-notifier/internal/eventbus"
	"github.com/fusshn/booking-notifier/internal/mailer"
	"github.com/fusshn/booking-notifier/internal/render"
	"github.com/fusshn/booking-notifier/internal/storage"
)

const (
	defaultWorkers      = 4
	defaultMaxAttempts  = 5
	defaultSendAttempts = 3
	defaultSendTimeout  = 30 * time.Second
)

// Config tunes a Coordinator.
type Config struct {
	// From is the sender address for all notifications.
	From string
	// Workers bounds concurrent dispatches within a batch.
	Workers int
	// MaxAttempts bounds recorded attempts per document across feed
	// redeliveries; once reached the outcome becomes a dead letter.
	MaxAttempts int
	// SendAttempts bounds in-process provider calls per dispatch;
	// only transient failures are re-sent.
	SendAttempts uint
	// SendTimeout bounds one dispatch's provider interaction. An
	// in-flight send is not canceled at the batch boundary; it runs to
	// completion or this timeout.
	SendTimeout time.Duration
}

// Coordinator dispatches one notification per created booking document.
type Coordinator struct {
	store    storage.OutcomeStore
	provider mailer.Provider
	bus      eventbus.Bus
	logger   *slog.Logger
	cfg      Config
	locks    keyedMutex
}

// New creates a Coordinator. Zero Config fields take defaults.
func New(store storage.OutcomeStore, provider mailer.Provider, bus eventbus.Bus, logger *slog.Logger, cfg Config) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.SendAttempts == 0 {
		cfg.SendAttempts = defaultSendAttempts
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	return &Coordinator{
		store:    store,
		provider: provider,
		bus:      bus,
		logger:   logger,
		cfg:      cfg,
	}
}

// HandleBatch dispatches every event in the batch and returns once all of
// them settled. Distinct documents run concurrently up to the worker
// bound; dispatches for the same document are serialized.
func (c *Coordinator) HandleBatch(ctx context.Context, events []booking.ChangeEvent) {
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Workers)
	for _, ev := range events {
		g.Go(func() error {
			c.dispatch(ctx, ev)
			return nil
		})
	}
	_ = g.Wait()
}

// dispatch processes one change event end to end. Every failure path ends
// in a log record plus a recorded outcome or a deferral; nothing escapes.
func (c *Coordinator) dispatch(ctx context.Context, ev booking.ChangeEvent) {
	if ev.Kind != booking.KindAdded {
		c.logger.Debug("ignoring non-creation event",
			slog.String("document_id", ev.DocumentID),
			slog.String("kind", ev.Kind.String()))
		return
	}

	unlock := c.locks.lock(ev.DocumentID)
	defer unlock()

	prior, err := c.store.Get(ctx, ev.DocumentID)
	if err != nil {
		// Treat the event as unknown: defer rather than send
		// speculatively. The feed will redeliver it.
		c.logger.Warn("idempotency store fault, deferring event",
			slog.String("document_id", ev.DocumentID),
			slog.Any("error", err))
		return
	}

	attempts := 0
	if prior != nil {
		if prior.Terminal() {
			c.logger.Debug("skipping already-settled document",
				slog.String("document_id", ev.DocumentID),
				slog.String("status", string(prior.Status)))
			return
		}
		attempts = prior.Attempts
		if attempts >= c.cfg.MaxAttempts {
			dead := *prior
			dead.Status = storage.StatusDeadLetter
			c.record(ctx, dead)
			return
		}
	}

	rec := booking.RecordFromPayload(ev.DocumentID, ev.Payload)
	content, err := render.Confirmation(rec)
	if err != nil {
		reason := storage.ReasonPermanent
		var verr *render.ValidationError
		if errors.As(err, &verr) {
			reason = storage.ReasonValidation
		}
		c.record(ctx, storage.DeliveryOutcome{
			DocumentID: ev.DocumentID,
			AttemptID:  uuid.NewString(),
			Status:     storage.StatusFailed,
			Reason:     reason,
			Attempts:   attempts + 1,
			LastError:  err.Error(),
		})
		return
	}

	outcome := c.send(ctx, ev.DocumentID, content, attempts)
	c.record(ctx, outcome)
}

// send delivers content, retrying transient provider failures in-process,
// and builds the outcome for this attempt.
func (c *Coordinator) send(ctx context.Context, documentID string, content render.Content, priorAttempts int) storage.DeliveryOutcome {
	// Detach from the batch context: an in-flight send runs to completion
	// or provider timeout even while the subscription is shutting down.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.SendTimeout)
	defer cancel()

	msg := mailer.Message{
		From:    c.cfg.From,
		To:      content.To,
		Subject: content.Subject,
		HTML:    content.HTML,
		Text:    content.Text,
	}

	var providerID string
	err := retry.Do(
		func() error {
			id, sendErr := c.provider.Send(sendCtx, msg)
			if sendErr != nil {
				return sendErr
			}
			providerID = id
			return nil
		},
		retry.Attempts(c.cfg.SendAttempts),
		retry.RetryIf(mailer.IsTransient),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(sendCtx),
	)

	outcome := storage.DeliveryOutcome{
		DocumentID: documentID,
		AttemptID:  uuid.NewString(),
		Attempts:   priorAttempts + 1,
	}
	switch {
	case err == nil:
		outcome.Status = storage.StatusDelivered
		outcome.ProviderID = providerID
	case mailer.IsTransient(err):
		outcome.Status = storage.StatusFailed
		outcome.Reason = storage.ReasonTransient
		outcome.LastError = err.Error()
		if outcome.Attempts >= c.cfg.MaxAttempts {
			outcome.Status = storage.StatusDeadLetter
		}
	default:
		outcome.Status = storage.StatusFailed
		outcome.Reason = storage.ReasonPermanent
		outcome.LastError = err.Error()
	}
	return outcome
}

// record persists the outcome and announces it on the bus. A store write
// failure is logged; the feed's redelivery covers the lost record.
func (c *Coordinator) record(ctx context.Context, outcome storage.DeliveryOutcome) {
	if err := c.store.Record(ctx, outcome); err != nil {
		c.logger.Error("failed to record delivery outcome",
			slog.String("document_id", outcome.DocumentID),
			slog.Any("error", err))
	}

	attrs := []any{
		slog.String("document_id", outcome.DocumentID),
		slog.String("attempt_id", outcome.AttemptID),
		slog.Int("attempts", outcome.Attempts),
	}
	switch outcome.Status {
	case storage.StatusDelivered:
		c.logger.Info("booking confirmation delivered",
			append(attrs, slog.String("provider_id", outcome.ProviderID))...)
	case storage.StatusDeadLetter:
		c.logger.Error("booking confirmation dead-lettered",
			append(attrs, slog.String("last_error", outcome.LastError))...)
	default:
		c.logger.Warn("booking confirmation failed",
			append(attrs,
				slog.String("reason", string(outcome.Reason)),
				slog.String("last_error", outcome.LastError))...)
	}

	c.bus.Publish(outcome)
}
