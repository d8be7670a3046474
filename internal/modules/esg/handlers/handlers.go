// Package handlers provides HTTP handlers for ESG scoring.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/meridian/internal/modules/esg"
	"github.com/aristath/meridian/internal/modules/portfolio"
)

// esgService is the slice of the analytics pipeline the handlers need.
type esgService interface {
	ScoreCompany(ticker, sector string) (esg.Result, error)
	PortfolioESG(portfolioID string) (esg.PortfolioResult, error)
}

// companySource reads stored company ESG records.
type companySource interface {
	GetByTicker(ticker string) (portfolio.CompanyESG, error)
}

// snapshotSource reads persisted ESG snapshots.
type snapshotSource interface {
	LatestESG(portfolioID string) (portfolio.ESGSnapshot, error)
}

// Handler handles ESG HTTP requests.
type Handler struct {
	calc      *esg.Calculator
	svc       esgService
	companies companySource
	snapshots snapshotSource
	log       zerolog.Logger
}

// NewHandler creates an ESG handler.
func NewHandler(calc *esg.Calculator, svc esgService, companies companySource, snapshots snapshotSource, log zerolog.Logger) *Handler {
	return &Handler{
		calc:      calc,
		svc:       svc,
		companies: companies,
		snapshots: snapshots,
		log:       log.With().Str("handler", "esg").Logger(),
	}
}

// scoreRequest is the body of POST /api/esg/score.
type scoreRequest struct {
	Sector  string           `json:"sector"`
	Metrics esg.CompanyInput `json:"metrics"`
}

// HandleScore handles POST /api/esg/score: a stateless scoring run over
// caller-supplied metrics. Nothing is persisted.
func (h *Handler) HandleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := h.calc.Score(req.Metrics, req.Sector)
	h.writeJSON(w, http.StatusOK, envelope(result))
}

// HandleGetCompany handles GET /api/esg/companies/{ticker}: the stored ESG
// record. A company not yet scored is scored on the fly; the sector query
// parameter seeds sector weights for first-time scoring.
func (h *Handler) HandleGetCompany(w http.ResponseWriter, r *http.Request, ticker string) {
	company, err := h.companies.GetByTicker(ticker)
	if errors.Is(err, portfolio.ErrNotFound) {
		if _, err := h.svc.ScoreCompany(ticker, r.URL.Query().Get("sector")); err != nil {
			h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to score company")
			http.Error(w, "Failed to score company", http.StatusInternalServerError)
			return
		}
		company, err = h.companies.GetByTicker(ticker)
		if err != nil {
			http.Error(w, "Failed to load company", http.StatusInternalServerError)
			return
		}
	} else if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to load company")
		http.Error(w, "Failed to load company", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(company))
}

// HandleGetCompanyRisk handles GET /api/esg/companies/{ticker}/risk: the
// ESG risk decomposition for a stored company.
func (h *Handler) HandleGetCompanyRisk(w http.ResponseWriter, r *http.Request, ticker string) {
	company, err := h.companies.GetByTicker(ticker)
	if errors.Is(err, portfolio.ErrNotFound) {
		http.Error(w, "Company not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to load company")
		http.Error(w, "Failed to load company", http.StatusInternalServerError)
		return
	}

	score := 50.0
	if company.ESGScore != nil {
		score = *company.ESGScore
	}
	assessment := h.calc.Risk(score, company.Controversies)
	h.writeJSON(w, http.StatusOK, envelope(assessment))
}

// HandleGetPortfolioESG handles GET /api/esg/portfolio/{id}: recomputes the
// value-weighted portfolio aggregate and persists a snapshot.
func (h *Handler) HandleGetPortfolioESG(w http.ResponseWriter, r *http.Request, portfolioID string) {
	result, err := h.svc.PortfolioESG(portfolioID)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			http.Error(w, "Portfolio not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Portfolio ESG calculation failed")
		http.Error(w, "Portfolio ESG calculation failed", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(result))
}

// HandleGetESGSnapshot handles GET /api/esg/portfolio/{id}/snapshot: the
// most recent persisted aggregate, without recomputing.
func (h *Handler) HandleGetESGSnapshot(w http.ResponseWriter, r *http.Request, portfolioID string) {
	snap, err := h.snapshots.LatestESG(portfolioID)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			http.Error(w, "No ESG snapshot for portfolio", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to load ESG snapshot")
		http.Error(w, "Failed to load ESG snapshot", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(snap))
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
