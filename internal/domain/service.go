package domain

import (
	"fmt"
	"strings"
	"time"
)

type ServiceStatus string

const (
	ServiceStatusActive    ServiceStatus = "active"
	ServiceStatusDisabled  ServiceStatus = "disabled"
	ServiceStatusSuspended ServiceStatus = "suspended"
)

const (
	DefaultRateLimitPerMinute = 100
	DefaultMaxPayloadBytes    = 10 << 20 // 10 MiB
)

// DefaultAllowedFormats covers the media types the detector accepts out of
// the box: still images plus the common video containers.
var DefaultAllowedFormats = []string{"jpg", "jpeg", "png", "bmp", "webp", "mp4", "avi", "mov"}

// PublishedService exposes one stored detection configuration as a
// token-guarded API endpoint.
type PublishedService struct {
	ServiceID           string        `json:"service_id"`
	OwnerID             string        `json:"owner_id"`
	ServiceName         string        `json:"service_name"`
	Description         string        `json:"description,omitempty"`
	ModelName           string        `json:"model_name"`
	ConfidenceThreshold float64       `json:"confidence_threshold"`
	ClassFilter         []int         `json:"class_filter,omitempty"`
	RateLimitPerMinute  int           `json:"rate_limit_per_minute"`
	MaxPayloadBytes     int64         `json:"max_payload_bytes"`
	AllowedFormats      []string      `json:"allowed_formats"`
	Status              ServiceStatus `json:"status"`
	TotalCalls          int64         `json:"total_calls"`
	SuccessfulCalls     int64         `json:"successful_calls"`
	FailedCalls         int64         `json:"failed_calls"`
	LastCalledAt        *time.Time    `json:"last_called_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

type ServiceInput struct {
	ServiceName         string
	Description         string
	ModelName           string
	ConfidenceThreshold float64
	ClassFilter         []int
	RateLimitPerMinute  int
	MaxPayloadBytes     int64
	AllowedFormats      []string
}

func ValidateServiceInput(input ServiceInput) error {
	if strings.TrimSpace(input.ServiceName) == "" {
		return fmt.Errorf("%w: service name is required", ErrInvalidParameters)
	}
	if !IsKnownModel(input.ModelName) {
		return fmt.Errorf("%w: unknown model %q", ErrInvalidParameters, input.ModelName)
	}
	if input.ConfidenceThreshold <= 0 || input.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold must be in (0, 1]", ErrInvalidParameters)
	}
	if input.RateLimitPerMinute <= 0 {
		return fmt.Errorf("%w: rate limit per minute must be positive", ErrInvalidParameters)
	}
	if input.MaxPayloadBytes <= 0 {
		return fmt.Errorf("%w: max payload bytes must be positive", ErrInvalidParameters)
	}
	if len(input.AllowedFormats) == 0 {
		return fmt.Errorf("%w: allowed formats must not be empty", ErrInvalidParameters)
	}
	for _, classID := range input.ClassFilter {
		if !IsKnownClass(classID) {
			return fmt.Errorf("%w: unknown class id %d", ErrInvalidParameters, classID)
		}
	}
	return nil
}

func NormalizeServiceStatus(raw string) (ServiceStatus, error) {
	status := ServiceStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case ServiceStatusActive, ServiceStatusDisabled, ServiceStatusSuspended:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown service status %q", ErrInvalidParameters, raw)
	}
}

// FormatAllowed checks a file extension (with or without leading dot)
// against the service's allow list.
func (s PublishedService) FormatAllowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range s.AllowedFormats {
		if strings.ToLower(strings.TrimPrefix(allowed, ".")) == ext {
			return true
		}
	}
	return false
}
