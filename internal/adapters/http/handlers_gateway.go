package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/justinzzc/vision-box/internal/application"
	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
)

// gatewayDetect is the token-authenticated inference endpoint. The payload
// arrives as multipart form data under the "file" field.
func (h *Handler) gatewayDetect(w http.ResponseWriter, r *http.Request) {
	rawSecret, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeMissingBearerError(r.Context(), w, "gateway_detect")
		return
	}

	// Bound the multipart read before any parsing happens; the service
	// enforces the per-service limit again from its own config.
	r.Body = http.MaxBytesReader(w, r.Body, 256<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidationError(r.Context(), w, "gateway_detect", errors.New("multipart field 'file' is required"))
		return
	}
	defer file.Close()

	result, err := h.service.ExecuteGatewayCall(r.Context(), application.GatewayCallInput{
		ServiceID:     chi.URLParam(r, "service_id"),
		RawSecret:     rawSecret,
		RequestID:     requestIDFromContext(r.Context()),
		ClientAddress: readIP(r),
		HTTPMethod:    r.Method,
		FileName:      header.Filename,
		ContentType:   header.Header.Get("Content-Type"),
		PayloadSize:   header.Size,
		Payload:       file,
	})
	writeRateHeaders(w, result.Rate)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			w.Header().Set("Retry-After", strconv.Itoa(result.Rate.ResetSeconds))
		}
		writeMappedError(r.Context(), w, "gateway_detect", err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

func writeRateHeaders(w http.ResponseWriter, rate ports.RateDecision) {
	if rate.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rate.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rate.Remaining))
	if rate.ResetSeconds > 0 {
		w.Header().Set("X-RateLimit-Reset", strconv.Itoa(rate.ResetSeconds))
	}
}
