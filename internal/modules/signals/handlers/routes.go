package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all signal routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/signals", func(r chi.Router) {
		r.Get("/portfolio/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetPortfolioSignals(w, r, chi.URLParam(r, "id"))
		})
	})
}
