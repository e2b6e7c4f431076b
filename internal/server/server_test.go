package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusshn/booking-notifier/internal/metrics"
	"github.com/fusshn/booking-notifier/internal/server"
	"github.com/fusshn/booking-notifier/internal/storage"
)

type stubOutcomes struct {
	outcomes []storage.DeliveryOutcome
	err      error

	gotStatus storage.OutcomeStatus
	gotLimit  int
}

func (s *stubOutcomes) Get(context.Context, string) (*storage.DeliveryOutcome, error) {
	return nil, nil
}

func (s *stubOutcomes) Record(context.Context, storage.DeliveryOutcome) error { return nil }

func (s *stubOutcomes) List(_ context.Context, status storage.OutcomeStatus, limit int) ([]storage.DeliveryOutcome, error) {
	s.gotStatus = status
	s.gotLimit = limit
	return s.outcomes, s.err
}

func newTestServer(t *testing.T, outcomes *stubOutcomes) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	metrics.New(reg).ObserveEvent("added")
	return server.New(outcomes, reg, 0, logger).Handler()
}

func TestWelcomeRoute(t *testing.T) {
	h := newTestServer(t, &stubOutcomes{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Fusshn Server", rec.Body.String())
}

func TestHealthRoute(t *testing.T) {
	h := newTestServer(t, &stubOutcomes{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsRoute(t *testing.T) {
	h := newTestServer(t, &stubOutcomes{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "booking_notifier_feed_events_total")
}

func TestListOutcomes(t *testing.T) {
	outcomes := &stubOutcomes{outcomes: []storage.DeliveryOutcome{
		{DocumentID: "b1", Status: storage.StatusDeadLetter, Attempts: 5},
	}}
	h := newTestServer(t, outcomes)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/outcomes?status=dead_letter&limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, storage.StatusDeadLetter, outcomes.gotStatus)
	assert.Equal(t, 10, outcomes.gotLimit)

	var got []storage.DeliveryOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].DocumentID)
}

func TestListOutcomes_EmptyIsJSONArray(t *testing.T) {
	h := newTestServer(t, &stubOutcomes{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/outcomes", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListOutcomes_BadParams(t *testing.T) {
	h := newTestServer(t, &stubOutcomes{})

	for _, path := range []string{"/outcomes?status=bogus", "/outcomes?limit=zero", "/outcomes?limit=-1"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestListOutcomes_StoreError(t *testing.T) {
	h := newTestServer(t, &stubOutcomes{err: errors.New("db closed")})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/outcomes", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
