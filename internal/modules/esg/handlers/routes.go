package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ESG routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/esg", func(r chi.Router) {
		r.Post("/score", h.HandleScore)

		r.Route("/companies/{ticker}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetCompany(w, r, chi.URLParam(r, "ticker"))
			})
			r.Get("/risk", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetCompanyRisk(w, r, chi.URLParam(r, "ticker"))
			})
		})

		r.Route("/portfolio/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetPortfolioESG(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/snapshot", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetESGSnapshot(w, r, chi.URLParam(r, "id"))
			})
		})
	})
}
