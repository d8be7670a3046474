// Package handlers provides HTTP handlers for trade signals.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/meridian/internal/modules/portfolio"
	"github.com/aristath/meridian/internal/modules/signals"
)

// signalService is the slice of the analytics pipeline the handlers need.
type signalService interface {
	PortfolioSignals(portfolioID string) ([]signals.Row, error)
}

// Handler handles signal HTTP requests.
type Handler struct {
	svc signalService
	log zerolog.Logger
}

// NewHandler creates a signals handler.
func NewHandler(svc signalService, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With().Str("handler", "signals").Logger(),
	}
}

// HandleGetPortfolioSignals handles GET /api/signals/portfolio/{id}:
// BUY / HOLD / SELL classification for every holding, best first. The
// optional signal query parameter filters to one bucket.
func (h *Handler) HandleGetPortfolioSignals(w http.ResponseWriter, r *http.Request, portfolioID string) {
	rows, err := h.svc.PortfolioSignals(portfolioID)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			http.Error(w, "Portfolio not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Signal computation failed")
		http.Error(w, "Signal computation failed", http.StatusInternalServerError)
		return
	}

	if filter := r.URL.Query().Get("signal"); filter != "" {
		want := signals.Signal(filter)
		if want != signals.SignalBuy && want != signals.SignalHold && want != signals.SignalSell {
			http.Error(w, "Unknown signal filter", http.StatusBadRequest)
			return
		}
		filtered := make([]signals.Row, 0, len(rows))
		for _, row := range rows {
			if row.Signal == want {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	counts := map[signals.Signal]int{}
	for _, row := range rows {
		counts[row.Signal]++
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"signals": rows,
			"counts": map[string]int{
				"buy":  counts[signals.SignalBuy],
				"hold": counts[signals.SignalHold],
				"sell": counts[signals.SignalSell],
			},
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
