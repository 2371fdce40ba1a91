package postgres

import (
	"time"
)

type taskModel struct {
	TaskID              string     `gorm:"column:task_id;type:uuid;primaryKey"`
	OwnerID             string     `gorm:"column:owner_id"`
	TaskName            string     `gorm:"column:task_name"`
	FileReference       string     `gorm:"column:file_reference"`
	ModelName           string     `gorm:"column:model_name"`
	ConfidenceThreshold float64    `gorm:"column:confidence_threshold"`
	IoUThreshold        float64    `gorm:"column:iou_threshold"`
	MaxDetections       int        `gorm:"column:max_detections"`
	ClassFilter         string     `gorm:"column:class_filter;type:jsonb"`
	Status              string     `gorm:"column:status"`
	RetryCount          int        `gorm:"column:retry_count"`
	MaxRetries          int        `gorm:"column:max_retries"`
	Result              *string    `gorm:"column:result;type:jsonb"`
	FailureReason       string     `gorm:"column:failure_reason"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	StartedAt           *time.Time `gorm:"column:started_at"`
	CompletedAt         *time.Time `gorm:"column:completed_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

func (taskModel) TableName() string { return "detection_tasks" }

type serviceModel struct {
	ServiceID           string     `gorm:"column:service_id;type:uuid;primaryKey"`
	OwnerID             string     `gorm:"column:owner_id"`
	ServiceName         string     `gorm:"column:service_name"`
	Description         string     `gorm:"column:description"`
	ModelName           string     `gorm:"column:model_name"`
	ConfidenceThreshold float64    `gorm:"column:confidence_threshold"`
	ClassFilter         string     `gorm:"column:class_filter;type:jsonb"`
	RateLimitPerMinute  int        `gorm:"column:rate_limit_per_minute"`
	MaxPayloadBytes     int64      `gorm:"column:max_payload_bytes"`
	AllowedFormats      string     `gorm:"column:allowed_formats;type:jsonb"`
	Status              string     `gorm:"column:status"`
	TotalCalls          int64      `gorm:"column:total_calls"`
	SuccessfulCalls     int64      `gorm:"column:successful_calls"`
	FailedCalls         int64      `gorm:"column:failed_calls"`
	LastCalledAt        *time.Time `gorm:"column:last_called_at"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

func (serviceModel) TableName() string { return "published_services" }

type tokenModel struct {
	TokenID     string     `gorm:"column:token_id;type:uuid;primaryKey"`
	ServiceID   string     `gorm:"column:service_id"`
	DisplayName string     `gorm:"column:display_name"`
	SecretHash  string     `gorm:"column:secret_hash;uniqueIndex"`
	TokenPrefix string     `gorm:"column:token_prefix"`
	IsActive    bool       `gorm:"column:is_active"`
	IsRevoked   bool       `gorm:"column:is_revoked"`
	UsageCount  int64      `gorm:"column:usage_count"`
	LastUsedAt  *time.Time `gorm:"column:last_used_at"`
	LastUsedIP  *string    `gorm:"column:last_used_ip"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (tokenModel) TableName() string { return "service_tokens" }

type usageModel struct {
	RecordID          string    `gorm:"column:record_id;type:uuid;primaryKey"`
	ServiceID         string    `gorm:"column:service_id"`
	TokenID           *string   `gorm:"column:token_id"`
	RequestID         string    `gorm:"column:request_id"`
	OccurredAt        time.Time `gorm:"column:occurred_at"`
	HTTPMethod        string    `gorm:"column:http_method"`
	StatusCode        int       `gorm:"column:status_code"`
	ClientAddress     string    `gorm:"column:client_address"`
	ProcessingSeconds float64   `gorm:"column:processing_seconds"`
	DetectionCount    int       `gorm:"column:detection_count"`
	Success           bool      `gorm:"column:success"`
	ErrorCode         string    `gorm:"column:error_code"`
}

func (usageModel) TableName() string { return "service_usage_log" }
