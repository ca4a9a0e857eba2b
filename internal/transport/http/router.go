package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authmw "custodia/pkg/platform/middleware/auth"
)

// NewRouter wires all endpoints. The auth middleware establishes caller
// identity; operator-only routes add a role gate on top. Business logic stays
// in the services.
func NewRouter(h *Handler, validator authmw.TokenValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(validator, h.logger))

		r.Post("/verifications", h.handleSubmit)
		r.Get("/verifications/{id}", h.handleGetVerification)

		r.Put("/consents/{purpose}", h.handleSetConsent)
		r.Get("/consents", h.handleListConsents)

		r.Get("/me/export", h.handleExport)
		r.Post("/me/anonymize", h.handleAnonymize)
		r.Delete("/me", h.handleHardDelete)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireRole(authmw.RoleOperator))

			r.Post("/verifications/{id}/review", h.handleReview)
			r.Post("/verifications/review-batch", h.handleReviewBatch)
			r.Post("/admin/retention/sweep", h.handleSweep)
		})
	})

	return r
}
