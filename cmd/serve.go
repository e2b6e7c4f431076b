package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/fusshn/booking-notifier/internal/booking"
	"github.com/fusshn/booking-notifier/internal/config"
	"github.com/fusshn/booking-notifier/internal/dispatch"
	"github.com/fusshn/booking-notifier/internal/eventbus"
	"github.com/fusshn/booking-notifier/internal/feed"
	"github.com/fusshn/booking-notifier/internal/logger"
	"github.com/fusshn/booking-notifier/internal/mailer"
	"github.com/fusshn/booking-notifier/internal/metrics"
	"github.com/fusshn/booking-notifier/internal/server"
	"github.com/fusshn/booking-notifier/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dispatcher and HTTP server",
	Long:  "Subscribe to the bookings change feed and dispatch confirmation emails until terminated.",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogDir(), cfg.SlogLevel())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := storage.NewSQLiteDB(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening outcome database: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Warn("closing outcome database", slog.Any("error", cerr))
		}
	}()
	outcomes := storage.NewSQLiteOutcomeStore(db)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	bus := eventbus.New(0, log)
	bus.Subscribe(m.OutcomeListener())

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	coordinator := dispatch.New(outcomes, provider, bus, log, dispatch.Config{
		From:         cfg.MailFrom,
		Workers:      cfg.DispatchWorkers,
		MaxAttempts:  cfg.DispatchMaxAttempts,
		SendAttempts: cfg.SendRetryAttempts,
		SendTimeout:  cfg.SendTimeout,
	})

	fsClient, err := newFirestoreClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating firestore client: %w", err)
	}
	defer func() {
		if cerr := fsClient.Close(); cerr != nil {
			log.Warn("closing firestore client", slog.Any("error", cerr))
		}
	}()

	source := feed.NewFirestoreSource(fsClient, cfg.BookingsCollection)
	sub := feed.NewSubscription(source, func(ctx context.Context, events []booking.ChangeEvent) {
		for _, ev := range events {
			m.ObserveEvent(ev.Kind.String())
		}
		coordinator.HandleBatch(ctx, events)
	}, log, feed.WithFaultHandler(func(error) { m.ObserveFault() }))

	srv := server.New(outcomes, reg, cfg.Port, log)

	log.Info("booking notifier running",
		slog.Int("port", cfg.Port),
		slog.String("collection", cfg.BookingsCollection),
		slog.String("provider", provider.Name()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return sub.Run(gctx) })
	err = g.Wait()

	// The subscription finished its in-flight batch before returning;
	// give the outcome bus a bounded window to drain its observers.
	drained := make(chan struct{})
	go func() {
		bus.Close()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(cfg.ShutdownGrace):
		log.Warn("shutdown grace elapsed before outcome bus drained")
	}

	return err
}

// newProvider builds the delivery backend selected by MAIL_PROVIDER.
func newProvider(cfg *config.Config) (mailer.Provider, error) {
	switch cfg.MailProvider {
	case config.ProviderResend:
		return mailer.NewResendProvider(cfg.ResendAPIKey), nil
	case config.ProviderSMTP:
		return mailer.NewSMTPProvider(mailer.SMTPConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
			Encryption: cfg.SMTPEncryption,
		}), nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
}

// newFirestoreClient authenticates with either a credentials file or the
// service-account fields assembled from the environment.
func newFirestoreClient(ctx context.Context, cfg *config.Config) (*firestore.Client, error) {
	if cfg.GoogleCredentialsFile != "" {
		return firestore.NewClient(ctx, cfg.FirebaseProjectID,
			option.WithCredentialsFile(cfg.GoogleCredentialsFile))
	}
	creds, err := cfg.ServiceAccountJSON()
	if err != nil {
		return nil, err
	}
	return firestore.NewClient(ctx, cfg.FirebaseProjectID, option.WithCredentialsJSON(creds))
}
