package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Post("/", h.HandleCreatePortfolio)
		r.Get("/", h.HandleListPortfolios)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetPortfolio(w, r, chi.URLParam(r, "id"))
			})
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleDeletePortfolio(w, r, chi.URLParam(r, "id"))
			})

			r.Route("/holdings", func(r chi.Router) {
				r.Post("/", func(w http.ResponseWriter, r *http.Request) {
					h.HandleUpsertHolding(w, r, chi.URLParam(r, "id"))
				})
				r.Get("/", func(w http.ResponseWriter, r *http.Request) {
					h.HandleListHoldings(w, r, chi.URLParam(r, "id"))
				})
				r.Delete("/{ticker}", func(w http.ResponseWriter, r *http.Request) {
					h.HandleDeleteHolding(w, r, chi.URLParam(r, "id"), chi.URLParam(r, "ticker"))
				})
			})
		})
	})
}
