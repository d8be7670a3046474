package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/meridian/internal/modules/portfolio"
	"github.com/aristath/meridian/internal/modules/signals"
)

type fakeService struct {
	rows []signals.Row
	err  error
}

func (f *fakeService) PortfolioSignals(portfolioID string) ([]signals.Row, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func newTestRouter(svc signalService) *chi.Mux {
	h := NewHandler(svc, zerolog.Nop())
	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	return r
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sampleRows() []signals.Row {
	return []signals.Row{
		{Ticker: "WINNER", CompositeScore: 80, Signal: signals.SignalBuy},
		{Ticker: "STEADY", CompositeScore: 62, Signal: signals.SignalHold},
		{Ticker: "LOSER", CompositeScore: 40, Signal: signals.SignalSell},
	}
}

func TestHandleGetPortfolioSignals(t *testing.T) {
	router := newTestRouter(&fakeService{rows: sampleRows()})

	rec := get(t, router, "/api/signals/portfolio/p1")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			Signals []signals.Row  `json:"signals"`
			Counts  map[string]int `json:"counts"`
		} `json:"data"`
		Metadata map[string]string `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))

	require.Len(t, envelope.Data.Signals, 3)
	assert.Equal(t, "WINNER", envelope.Data.Signals[0].Ticker)
	assert.Equal(t, 1, envelope.Data.Counts["buy"])
	assert.Equal(t, 1, envelope.Data.Counts["hold"])
	assert.Equal(t, 1, envelope.Data.Counts["sell"])
	assert.NotEmpty(t, envelope.Metadata["timestamp"])
}

func TestHandleGetPortfolioSignalsFiltered(t *testing.T) {
	router := newTestRouter(&fakeService{rows: sampleRows()})

	rec := get(t, router, "/api/signals/portfolio/p1?signal=BUY")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			Signals []signals.Row `json:"signals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Signals, 1)
	assert.Equal(t, "WINNER", envelope.Data.Signals[0].Ticker)
}

func TestHandleGetPortfolioSignalsUnknownFilter(t *testing.T) {
	router := newTestRouter(&fakeService{rows: sampleRows()})

	rec := get(t, router, "/api/signals/portfolio/p1?signal=SHORT")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetPortfolioSignalsNotFound(t *testing.T) {
	router := newTestRouter(&fakeService{err: fmt.Errorf("portfolio p1: %w", portfolio.ErrNotFound)})

	rec := get(t, router, "/api/signals/portfolio/p1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
