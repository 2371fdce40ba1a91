package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/justinzzc/vision-box/internal/application"
	"github.com/justinzzc/vision-box/internal/contracts"
)

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "issue_token")
		return
	}
	var req contracts.IssueTokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "issue_token", err)
		return
	}
	issued, err := h.service.IssueToken(r.Context(), actor, application.IssueTokenInput{
		ServiceID:   chi.URLParam(r, "service_id"),
		DisplayName: req.DisplayName,
		ExpiresIn:   time.Duration(req.ExpiresInDays) * 24 * time.Hour,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "issue_token", err)
		return
	}
	writeSuccess(w, http.StatusCreated, contracts.IssueTokenResponse{
		TokenID:     issued.Token.TokenID,
		DisplayName: issued.Token.DisplayName,
		Secret:      issued.RawSecret,
		TokenPrefix: issued.Token.TokenPrefix,
		ExpiresAt:   issued.Token.ExpiresAt,
		CreatedAt:   issued.Token.CreatedAt,
	})
}

func (h *Handler) listTokens(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "list_tokens")
		return
	}
	tokens, err := h.service.ListTokens(r.Context(), actor, chi.URLParam(r, "service_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "list_tokens", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (h *Handler) activateToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "activate_token")
		return
	}
	if err := h.service.ActivateToken(r.Context(), actor, chi.URLParam(r, "service_id"), chi.URLParam(r, "token_id")); err != nil {
		writeMappedError(r.Context(), w, "activate_token", err)
		return
	}
	writeMessage(w, http.StatusOK, "Token activated")
}

func (h *Handler) deactivateToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "deactivate_token")
		return
	}
	if err := h.service.DeactivateToken(r.Context(), actor, chi.URLParam(r, "service_id"), chi.URLParam(r, "token_id")); err != nil {
		writeMappedError(r.Context(), w, "deactivate_token", err)
		return
	}
	writeMessage(w, http.StatusOK, "Token deactivated")
}

func (h *Handler) revokeToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "revoke_token")
		return
	}
	if err := h.service.RevokeToken(r.Context(), actor, chi.URLParam(r, "service_id"), chi.URLParam(r, "token_id")); err != nil {
		writeMappedError(r.Context(), w, "revoke_token", err)
		return
	}
	writeMessage(w, http.StatusOK, "Token revoked")
}

func (h *Handler) usageSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "usage_summary")
		return
	}
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeValidationError(r.Context(), w, "usage_summary", err)
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeValidationError(r.Context(), w, "usage_summary", err)
			return
		}
		to = parsed
	}
	summary, err := h.service.GetUsageSummary(r.Context(), actor, chi.URLParam(r, "service_id"), from, to)
	if err != nil {
		writeMappedError(r.Context(), w, "usage_summary", err)
		return
	}
	writeSuccess(w, http.StatusOK, summary)
}

func (h *Handler) dailyStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "daily_stats")
		return
	}
	days := parseIntDefault(r.URL.Query().Get("days"), 7)
	stats, err := h.service.GetDailyStats(r.Context(), actor, chi.URLParam(r, "service_id"), days)
	if err != nil {
		writeMappedError(r.Context(), w, "daily_stats", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"daily": stats})
}
