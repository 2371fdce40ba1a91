package domain

import "time"

// UsageRecord is one append-only gateway call log entry. Records are never
// mutated or deleted individually; service deletion cascades.
type UsageRecord struct {
	RecordID          string    `json:"record_id"`
	ServiceID         string    `json:"service_id"`
	TokenID           string    `json:"token_id,omitempty"`
	RequestID         string    `json:"request_id"`
	OccurredAt        time.Time `json:"occurred_at"`
	HTTPMethod        string    `json:"http_method"`
	StatusCode        int       `json:"status_code"`
	ClientAddress     string    `json:"client_address"`
	ProcessingSeconds float64   `json:"processing_time"`
	DetectionCount    int       `json:"detection_count"`
	Success           bool      `json:"success"`
	ErrorCode         string    `json:"error_code,omitempty"`
}

type UsageSummary struct {
	ServiceID       string    `json:"service_id"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	TotalCalls      int64     `json:"total_calls"`
	SuccessfulCalls int64     `json:"successful_calls"`
	FailedCalls     int64     `json:"failed_calls"`
	SuccessRate     float64   `json:"success_rate"`
	AvgLatency      float64   `json:"avg_latency"`
	UniqueCallers   int64     `json:"unique_callers"`
	TotalDetections int64     `json:"total_detections"`
}

// DailyStat is one zero-filled day in a rolling usage series. Days with no
// traffic are present with zero counts so charting never sees gaps.
type DailyStat struct {
	Date            string  `json:"date"`
	TotalCalls      int64   `json:"total_calls"`
	SuccessfulCalls int64   `json:"successful_calls"`
	FailedCalls     int64   `json:"failed_calls"`
	AvgLatency      float64 `json:"avg_latency"`
	TotalDetections int64   `json:"total_detections"`
}
