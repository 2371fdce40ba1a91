package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers HTTP routes and the middleware stack. Centralizing
// routes here keeps auth and error behavior consistent across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(metricsMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/models", handler.listModels)

		// Public description and health of a published endpoint.
		r.Get("/services/{service_id}/info", handler.serviceInfo)
		r.Get("/services/{service_id}/health", handler.serviceHealth)

		// Token-guarded inference gateway.
		r.Post("/services/{service_id}/detect", handler.gatewayDetect)

		// Owner management API.
		r.Group(func(r chi.Router) {
			r.Use(handler.ownerAuthMiddleware)

			r.Post("/tasks", handler.submitTask)
			r.Get("/tasks", handler.listTasks)
			r.Get("/tasks/{task_id}", handler.getTask)
			r.Delete("/tasks/{task_id}", handler.cancelTask)

			r.Post("/services", handler.createService)
			r.Get("/services", handler.listServices)
			r.Get("/services/{service_id}", handler.getService)
			r.Put("/services/{service_id}", handler.updateService)
			r.Patch("/services/{service_id}/status", handler.setServiceStatus)
			r.Delete("/services/{service_id}", handler.deleteService)

			r.Post("/services/{service_id}/tokens", handler.issueToken)
			r.Get("/services/{service_id}/tokens", handler.listTokens)
			r.Post("/services/{service_id}/tokens/{token_id}/activate", handler.activateToken)
			r.Post("/services/{service_id}/tokens/{token_id}/deactivate", handler.deactivateToken)
			r.Delete("/services/{service_id}/tokens/{token_id}", handler.revokeToken)

			r.Get("/services/{service_id}/usage", handler.usageSummary)
			r.Get("/services/{service_id}/usage/daily", handler.dailyStats)
		})
	})

	return r
}
