package contracts

import "time"

type SubmitTaskRequest struct {
	TaskName            string  `json:"task_name,omitempty"`
	FileReference       string  `json:"file_reference"`
	ModelName           string  `json:"model_name,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	IoUThreshold        float64 `json:"iou_threshold,omitempty"`
	MaxDetections       int     `json:"max_detections,omitempty"`
	ClassFilter         []int   `json:"class_filter,omitempty"`
}

type CreateServiceRequest struct {
	ServiceName         string   `json:"service_name"`
	Description         string   `json:"description,omitempty"`
	ModelName           string   `json:"model_name,omitempty"`
	ConfidenceThreshold float64  `json:"confidence_threshold,omitempty"`
	ClassFilter         []int    `json:"class_filter,omitempty"`
	RateLimitPerMinute  int      `json:"rate_limit_per_minute,omitempty"`
	MaxPayloadBytes     int64    `json:"max_payload_bytes,omitempty"`
	AllowedFormats      []string `json:"allowed_formats,omitempty"`
}

type SetServiceStatusRequest struct {
	Status string `json:"status"`
}

type IssueTokenRequest struct {
	DisplayName   string `json:"display_name"`
	ExpiresInDays int    `json:"expires_in_days,omitempty"`
}

// IssueTokenResponse is the only place the raw secret ever leaves the
// system.
type IssueTokenResponse struct {
	TokenID     string     `json:"token_id"`
	DisplayName string     `json:"display_name"`
	Secret      string     `json:"secret"`
	TokenPrefix string     `json:"token_prefix"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ServiceInfoResponse is the public description of a gateway endpoint. It
// deliberately omits owner identity and rolling counters.
type ServiceInfoResponse struct {
	ServiceID          string   `json:"service_id"`
	ServiceName        string   `json:"service_name"`
	Description        string   `json:"description,omitempty"`
	ModelName          string   `json:"model_name"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute"`
	MaxPayloadBytes    int64    `json:"max_payload_bytes"`
	AllowedFormats     []string `json:"allowed_formats"`
	Status             string   `json:"status"`
}

// ServiceHealthResponse reports whether a published endpoint accepts
// traffic. Disabled and suspended services answer 404, same as unknown ids.
type ServiceHealthResponse struct {
	ServiceID    string     `json:"service_id"`
	Status       string     `json:"status"`
	ModelName    string     `json:"model_name"`
	LastCalledAt *time.Time `json:"last_called_at,omitempty"`
}

type ModelInfo struct {
	Name    string `json:"name"`
	Default bool   `json:"default,omitempty"`
}
