package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
)

// GatewayCallInput is one inbound inference request, already authenticated
// at the transport edge only to the extent of having a bearer secret.
type GatewayCallInput struct {
	ServiceID     string
	RawSecret     string
	RequestID     string
	ClientAddress string
	HTTPMethod    string

	FileName    string
	ContentType string
	PayloadSize int64
	Payload     io.Reader
}

// GatewayCallResult is the synchronous inference response plus the rate
// headers the transport must surface even on success.
type GatewayCallResult struct {
	RequestID string                 `json:"request_id"`
	ServiceID string                 `json:"service_id"`
	Result    domain.DetectionResult `json:"result"`
	Rate      ports.RateDecision     `json:"-"`
}

// ExecuteGatewayCall drives one call through the full admission pipeline:
// authenticate, admit (size, format, rate), execute, record. Rejections
// after authentication are logged to the usage trail; rejections before it
// are not, since no service can be attributed.
func (s *Service) ExecuteGatewayCall(ctx context.Context, input GatewayCallInput) (GatewayCallResult, error) {
	token, svc, err := s.ValidateSecret(ctx, input.RawSecret)
	if err != nil {
		return GatewayCallResult{}, err
	}
	if token.ServiceID != strings.TrimSpace(input.ServiceID) {
		return GatewayCallResult{}, domain.ErrUnauthorized
	}
	if input.RequestID == "" {
		input.RequestID = uuid.NewString()
	}

	rate, err := s.limiter.Allow(ctx, svc.ServiceID, svc.RateLimitPerMinute)
	if err != nil {
		// A broken limiter backend fails open; availability over strictness.
		slog.Default().WarnContext(ctx, "rate limiter unavailable, admitting call",
			"operation", "gateway_call", "service_id", svc.ServiceID, "error", err)
		rate = ports.RateDecision{Allowed: true, Limit: svc.RateLimitPerMinute}
	}
	if !rate.Allowed {
		s.recordRejected(ctx, svc, token, input, http.StatusTooManyRequests, "RATE_LIMITED")
		return GatewayCallResult{Rate: rate}, domain.ErrRateLimited
	}

	if input.PayloadSize > svc.MaxPayloadBytes {
		s.recordRejected(ctx, svc, token, input, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE")
		return GatewayCallResult{Rate: rate}, fmt.Errorf("%w: payload exceeds %d bytes", domain.ErrPayloadTooLarge, svc.MaxPayloadBytes)
	}
	ext := filepath.Ext(input.FileName)
	if !svc.FormatAllowed(ext) {
		s.recordRejected(ctx, svc, token, input, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT")
		return GatewayCallResult{Rate: rate}, fmt.Errorf("%w: %q not in allowed formats", domain.ErrUnsupportedFormat, ext)
	}

	// From here the call is admitted: failures count against the token as
	// well as the service, unlike the admission rejections above.
	started := s.nowFn()
	fileRef, err := s.files.Store(ctx, input.FileName, input.ContentType, input.PayloadSize, input.Payload)
	if err != nil {
		s.recordFailure(ctx, svc, token, input, started, "STORAGE_FAILED")
		return GatewayCallResult{Rate: rate}, fmt.Errorf("%w: storing payload: %v", domain.ErrDetectionFailed, err)
	}

	result, err := s.runDetection(ctx, domain.DetectionTask{
		FileReference:       fileRef,
		ModelName:           svc.ModelName,
		ConfidenceThreshold: svc.ConfidenceThreshold,
		IoUThreshold:        domain.DefaultIoUThreshold,
		MaxDetections:       domain.DefaultMaxDetections,
		ClassFilter:         svc.ClassFilter,
	})
	if err != nil {
		code := "DETECTION_FAILED"
		if errors.Is(err, context.DeadlineExceeded) {
			code = "DETECTION_TIMEOUT"
		}
		s.recordFailure(ctx, svc, token, input, started, code)
		return GatewayCallResult{Rate: rate}, fmt.Errorf("%w: %v", domain.ErrDetectionFailed, err)
	}

	elapsed := s.nowFn().Sub(started).Seconds()
	if result.ProcessingSeconds == 0 {
		result.ProcessingSeconds = elapsed
	}
	s.recordUsage(ctx, usageOutcome{
		record: domain.UsageRecord{
			RecordID:          uuid.NewString(),
			ServiceID:         svc.ServiceID,
			TokenID:           token.TokenID,
			RequestID:         input.RequestID,
			OccurredAt:        started,
			HTTPMethod:        input.HTTPMethod,
			StatusCode:        http.StatusOK,
			ClientAddress:     input.ClientAddress,
			ProcessingSeconds: elapsed,
			DetectionCount:    len(result.Detections),
			Success:           true,
		},
		bumpToken: true,
	})

	return GatewayCallResult{
		RequestID: input.RequestID,
		ServiceID: svc.ServiceID,
		Result:    result,
		Rate:      rate,
	}, nil
}

func (s *Service) recordRejected(ctx context.Context, svc domain.PublishedService, token domain.ServiceToken, input GatewayCallInput, status int, code string) {
	s.recordUsage(ctx, usageOutcome{
		record: domain.UsageRecord{
			RecordID:      uuid.NewString(),
			ServiceID:     svc.ServiceID,
			TokenID:       token.TokenID,
			RequestID:     input.RequestID,
			OccurredAt:    s.nowFn(),
			HTTPMethod:    input.HTTPMethod,
			StatusCode:    status,
			ClientAddress: input.ClientAddress,
			Success:       false,
			ErrorCode:     code,
		},
		bumpToken: false,
	})
}

// recordFailure logs an admitted call whose execution failed. The token was
// valid, so its usage counter is bumped alongside the service counters.
func (s *Service) recordFailure(ctx context.Context, svc domain.PublishedService, token domain.ServiceToken, input GatewayCallInput, started time.Time, code string) {
	s.recordUsage(ctx, usageOutcome{
		record: domain.UsageRecord{
			RecordID:          uuid.NewString(),
			ServiceID:         svc.ServiceID,
			TokenID:           token.TokenID,
			RequestID:         input.RequestID,
			OccurredAt:        started,
			HTTPMethod:        input.HTTPMethod,
			StatusCode:        http.StatusBadGateway,
			ClientAddress:     input.ClientAddress,
			ProcessingSeconds: s.nowFn().Sub(started).Seconds(),
			Success:           false,
			ErrorCode:         code,
		},
		bumpToken: true,
	})
}
