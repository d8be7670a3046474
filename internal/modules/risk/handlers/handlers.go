// Package handlers provides HTTP handlers for risk analytics.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/meridian/internal/modules/analytics"
	"github.com/aristath/meridian/internal/modules/portfolio"
	"github.com/aristath/meridian/internal/modules/risk"
)

// riskService is the slice of the analytics pipeline the handlers need.
type riskService interface {
	PortfolioRisk(portfolioID string) (risk.RiskMetrics, error)
}

// snapshotSource reads persisted risk snapshots.
type snapshotSource interface {
	LatestRisk(portfolioID string) (portfolio.RiskSnapshot, error)
}

// Handler handles risk HTTP requests.
type Handler struct {
	calc      *risk.Calculator
	svc       riskService
	snapshots snapshotSource
	log       zerolog.Logger
}

// NewHandler creates a risk handler.
func NewHandler(calc *risk.Calculator, svc riskService, snapshots snapshotSource, log zerolog.Logger) *Handler {
	return &Handler{
		calc:      calc,
		svc:       svc,
		snapshots: snapshots,
		log:       log.With().Str("handler", "risk").Logger(),
	}
}

// varRequest is the body of POST /api/risk/var.
type varRequest struct {
	Returns    []float64 `json:"returns"`
	Method     string    `json:"method"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// HandleCalculateVaR handles POST /api/risk/var: Value at Risk over a
// caller-supplied return series. Method defaults to historical; an explicit
// confidence adds a var_at_confidence figure next to the standard result.
func (h *Handler) HandleCalculateVaR(w http.ResponseWriter, r *http.Request) {
	var req varRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	methodStr := req.Method
	if methodStr == "" {
		methodStr = string(risk.MethodHistorical)
	}
	method, err := risk.ParseMethod(methodStr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.calc.VaR(req.Returns, method)
	if err != nil {
		h.log.Warn().Err(err).Msg("VaR calculation rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := map[string]interface{}{
		"var":        result,
		"confidence": h.calc.Confidence(),
	}

	if req.Confidence != nil {
		atConfidence, err := h.calc.VaRAtConfidence(req.Returns, *req.Confidence)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data["var_at_confidence"] = atConfidence
		data["requested_confidence"] = *req.Confidence
	}

	h.writeJSON(w, http.StatusOK, envelope(data))
}

// HandleGetPortfolioRisk handles GET /api/risk/portfolio/{id}: recomputes
// comprehensive risk metrics from stored price history and persists a
// snapshot.
func (h *Handler) HandleGetPortfolioRisk(w http.ResponseWriter, r *http.Request, portfolioID string) {
	metrics, err := h.svc.PortfolioRisk(portfolioID)
	if err != nil {
		h.respondServiceError(w, portfolioID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(metrics))
}

// HandleGetRiskSnapshot handles GET /api/risk/portfolio/{id}/snapshot: the
// most recent persisted risk snapshot, without recomputing.
func (h *Handler) HandleGetRiskSnapshot(w http.ResponseWriter, r *http.Request, portfolioID string) {
	snap, err := h.snapshots.LatestRisk(portfolioID)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			http.Error(w, "No risk snapshot for portfolio", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to load risk snapshot")
		http.Error(w, "Failed to load risk snapshot", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(snap))
}

func (h *Handler) respondServiceError(w http.ResponseWriter, portfolioID string, err error) {
	switch {
	case errors.Is(err, portfolio.ErrNotFound):
		http.Error(w, "Portfolio not found", http.StatusNotFound)
	case errors.Is(err, analytics.ErrInsufficientHistory):
		http.Error(w, "Not enough price history to compute risk", http.StatusConflict)
	default:
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Risk calculation failed")
		http.Error(w, "Risk calculation failed", http.StatusInternalServerError)
	}
}

// envelope wraps response data with request metadata.
func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
