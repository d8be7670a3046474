package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Post("/var", h.HandleCalculateVaR)

		r.Route("/portfolio/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetPortfolioRisk(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/snapshot", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetRiskSnapshot(w, r, chi.URLParam(r, "id"))
			})
		})
	})
}
