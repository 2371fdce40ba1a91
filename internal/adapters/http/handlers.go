package http

import (
	"context"
	"net/http"

	"github.com/justinzzc/vision-box/internal/application"
	"github.com/justinzzc/vision-box/internal/contracts"
	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
)

// Handler is the HTTP adapter entrypoint. Only the application service and
// the owner-token signer live here, keeping adapter boundaries clean.
type Handler struct {
	service *application.Service
	signer  ports.OwnerTokenSigner
	ready   func(ctx context.Context) error
}

// NewHandler constructs an HTTP handler. The ready probe reports backend
// health for readiness checks; a nil probe means always ready.
func NewHandler(service *application.Service, signer ports.OwnerTokenSigner, ready func(ctx context.Context) error) *Handler {
	return &Handler{service: service, signer: signer, ready: ready}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) listModels(w http.ResponseWriter, _ *http.Request) {
	models := make([]contracts.ModelInfo, 0, len(domain.KnownModels))
	for _, name := range domain.KnownModels {
		models = append(models, contracts.ModelInfo{
			Name:    name,
			Default: name == domain.DefaultModel,
		})
	}
	writeSuccess(w, http.StatusOK, map[string]any{"models": models})
}
