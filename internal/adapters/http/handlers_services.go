package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/justinzzc/vision-box/internal/application"
	"github.com/justinzzc/vision-box/internal/contracts"
	"github.com/justinzzc/vision-box/internal/domain"
)

func serviceInputFromRequest(req contracts.CreateServiceRequest) application.CreateServiceInput {
	return application.CreateServiceInput{
		ServiceName:         req.ServiceName,
		Description:         req.Description,
		ModelName:           req.ModelName,
		ConfidenceThreshold: req.ConfidenceThreshold,
		ClassFilter:         req.ClassFilter,
		RateLimitPerMinute:  req.RateLimitPerMinute,
		MaxPayloadBytes:     req.MaxPayloadBytes,
		AllowedFormats:      req.AllowedFormats,
	}
}

func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "create_service")
		return
	}
	var req contracts.CreateServiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_service", err)
		return
	}
	svc, err := h.service.CreateService(r.Context(), actor, serviceInputFromRequest(req))
	if err != nil {
		writeMappedError(r.Context(), w, "create_service", err)
		return
	}
	writeSuccess(w, http.StatusCreated, svc)
}

func (h *Handler) getService(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "get_service")
		return
	}
	svc, err := h.service.GetService(r.Context(), actor, chi.URLParam(r, "service_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "get_service", err)
		return
	}
	writeSuccess(w, http.StatusOK, svc)
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "list_services")
		return
	}
	page := parseIntDefault(r.URL.Query().Get("page"), 1)
	pageSize := parseIntDefault(r.URL.Query().Get("page_size"), 20)
	status := domain.ServiceStatus(r.URL.Query().Get("status"))

	services, total, err := h.service.ListServices(r.Context(), actor, status, page, pageSize)
	if err != nil {
		writeMappedError(r.Context(), w, "list_services", err)
		return
	}
	writePage(w, http.StatusOK, services, total, page, pageSize)
}

func (h *Handler) updateService(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "update_service")
		return
	}
	var req contracts.CreateServiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "update_service", err)
		return
	}
	svc, err := h.service.UpdateService(r.Context(), actor, chi.URLParam(r, "service_id"), serviceInputFromRequest(req))
	if err != nil {
		writeMappedError(r.Context(), w, "update_service", err)
		return
	}
	writeSuccess(w, http.StatusOK, svc)
}

func (h *Handler) setServiceStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "set_service_status")
		return
	}
	var req contracts.SetServiceStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "set_service_status", err)
		return
	}
	if err := h.service.SetServiceStatus(r.Context(), actor, chi.URLParam(r, "service_id"), req.Status); err != nil {
		writeMappedError(r.Context(), w, "set_service_status", err)
		return
	}
	writeMessage(w, http.StatusOK, "Service status updated")
}

func (h *Handler) deleteService(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "delete_service")
		return
	}
	if err := h.service.DeleteService(r.Context(), actor, chi.URLParam(r, "service_id")); err != nil {
		writeMappedError(r.Context(), w, "delete_service", err)
		return
	}
	writeMessage(w, http.StatusOK, "Service deleted")
}

// serviceInfo is the unauthenticated endpoint description callers probe
// before integrating.
func (h *Handler) serviceInfo(w http.ResponseWriter, r *http.Request) {
	svc, err := h.service.GetServiceInfo(r.Context(), chi.URLParam(r, "service_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "service_info", err)
		return
	}
	writeSuccess(w, http.StatusOK, contracts.ServiceInfoResponse{
		ServiceID:          svc.ServiceID,
		ServiceName:        svc.ServiceName,
		Description:        svc.Description,
		ModelName:          svc.ModelName,
		RateLimitPerMinute: svc.RateLimitPerMinute,
		MaxPayloadBytes:    svc.MaxPayloadBytes,
		AllowedFormats:     svc.AllowedFormats,
		Status:             string(svc.Status),
	})
}

// serviceHealth lets unauthenticated callers check whether an endpoint is
// accepting traffic without leaking its configuration.
func (h *Handler) serviceHealth(w http.ResponseWriter, r *http.Request) {
	svc, err := h.service.GetServiceInfo(r.Context(), chi.URLParam(r, "service_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "service_health", err)
		return
	}
	writeSuccess(w, http.StatusOK, contracts.ServiceHealthResponse{
		ServiceID:    svc.ServiceID,
		Status:       "healthy",
		ModelName:    svc.ModelName,
		LastCalledAt: svc.LastCalledAt,
	})
}
