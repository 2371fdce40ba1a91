package domain

import "errors"

var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrDetectionFailed   = errors.New("detection failed")
)

// Terminal failure reasons written into a task's failure_reason field.
const (
	ReasonCancelled     = "Cancelled"
	ReasonTimeout       = "Timeout"
	ReasonUnrecoverable = "Unrecoverable"
)
