// Package handlers provides HTTP handlers for portfolio and holding
// management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/meridian/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests.
type Handler struct {
	portfolios *portfolio.PortfolioRepository
	holdings   *portfolio.HoldingRepository
	log        zerolog.Logger
}

// NewHandler creates a portfolio handler.
func NewHandler(portfolios *portfolio.PortfolioRepository, holdings *portfolio.HoldingRepository, log zerolog.Logger) *Handler {
	return &Handler{
		portfolios: portfolios,
		holdings:   holdings,
		log:        log.With().Str("handler", "portfolio").Logger(),
	}
}

// createPortfolioRequest is the body of POST /api/portfolio.
type createPortfolioRequest struct {
	Name string `json:"name"`
}

// HandleCreatePortfolio handles POST /api/portfolio.
func (h *Handler) HandleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req createPortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "Portfolio name is required", http.StatusBadRequest)
		return
	}

	created, err := h.portfolios.Create(strings.TrimSpace(req.Name))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create portfolio")
		http.Error(w, "Failed to create portfolio", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(created))
}

// HandleListPortfolios handles GET /api/portfolio.
func (h *Handler) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	all, err := h.portfolios.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list portfolios")
		http.Error(w, "Failed to list portfolios", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(all))
}

// HandleGetPortfolio handles GET /api/portfolio/{id}: the portfolio with
// its holdings.
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request, portfolioID string) {
	p, err := h.portfolios.GetByID(portfolioID)
	if errors.Is(err, portfolio.ErrNotFound) {
		http.Error(w, "Portfolio not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to get portfolio")
		http.Error(w, "Failed to get portfolio", http.StatusInternalServerError)
		return
	}

	holdings, err := h.holdings.GetByPortfolio(portfolioID)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to get holdings")
		http.Error(w, "Failed to get holdings", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"portfolio": p,
		"holdings":  holdings,
	}))
}

// HandleDeletePortfolio handles DELETE /api/portfolio/{id}. Holdings go
// with it via the foreign key cascade.
func (h *Handler) HandleDeletePortfolio(w http.ResponseWriter, r *http.Request, portfolioID string) {
	err := h.portfolios.Delete(portfolioID)
	if errors.Is(err, portfolio.ErrNotFound) {
		http.Error(w, "Portfolio not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to delete portfolio")
		http.Error(w, "Failed to delete portfolio", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// upsertHoldingRequest is the body of POST /api/portfolio/{id}/holdings.
type upsertHoldingRequest struct {
	Ticker        string  `json:"ticker"`
	Quantity      float64 `json:"quantity"`
	PurchasePrice float64 `json:"purchase_price"`
	PurchaseDate  string  `json:"purchase_date,omitempty"` // YYYY-MM-DD
	Sector        string  `json:"sector,omitempty"`
}

// HandleUpsertHolding handles POST /api/portfolio/{id}/holdings: adds a
// position or replaces quantity and cost basis of an existing one.
func (h *Handler) HandleUpsertHolding(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if _, err := h.portfolios.GetByID(portfolioID); err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			http.Error(w, "Portfolio not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get portfolio", http.StatusInternalServerError)
		return
	}

	var req upsertHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if req.Ticker == "" {
		http.Error(w, "Ticker is required", http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		http.Error(w, "Quantity must be positive", http.StatusBadRequest)
		return
	}
	if req.PurchasePrice <= 0 {
		http.Error(w, "Purchase price must be positive", http.StatusBadRequest)
		return
	}

	var purchaseDate time.Time
	if req.PurchaseDate != "" {
		parsed, err := time.Parse("2006-01-02", req.PurchaseDate)
		if err != nil {
			http.Error(w, "Purchase date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		purchaseDate = parsed
	}

	holding, err := h.holdings.Upsert(portfolio.Holding{
		PortfolioID:   portfolioID,
		Ticker:        req.Ticker,
		Quantity:      req.Quantity,
		PurchasePrice: req.PurchasePrice,
		PurchaseDate:  purchaseDate,
		Sector:        req.Sector,
	})
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to upsert holding")
		http.Error(w, "Failed to save holding", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(holding))
}

// HandleListHoldings handles GET /api/portfolio/{id}/holdings.
func (h *Handler) HandleListHoldings(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if _, err := h.portfolios.GetByID(portfolioID); err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			http.Error(w, "Portfolio not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get portfolio", http.StatusInternalServerError)
		return
	}

	holdings, err := h.holdings.GetByPortfolio(portfolioID)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to get holdings")
		http.Error(w, "Failed to get holdings", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(holdings))
}

// HandleDeleteHolding handles DELETE /api/portfolio/{id}/holdings/{ticker}.
func (h *Handler) HandleDeleteHolding(w http.ResponseWriter, r *http.Request, portfolioID, ticker string) {
	err := h.holdings.Delete(portfolioID, strings.ToUpper(ticker))
	if errors.Is(err, portfolio.ErrNotFound) {
		http.Error(w, "Holding not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Str("ticker", ticker).Msg("Failed to delete holding")
		http.Error(w, "Failed to delete holding", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
