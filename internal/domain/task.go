package domain

import (
	"fmt"
	"time"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

const (
	DefaultIoUThreshold  = 0.5
	DefaultMaxDetections = 100
	MaxTaskRetries       = 3
)

type DetectionTask struct {
	TaskID              string           `json:"task_id"`
	OwnerID             string           `json:"owner_id,omitempty"`
	TaskName            string           `json:"task_name,omitempty"`
	FileReference       string           `json:"file_reference"`
	ModelName           string           `json:"model_name"`
	ConfidenceThreshold float64          `json:"confidence_threshold"`
	IoUThreshold        float64          `json:"iou_threshold"`
	MaxDetections       int              `json:"max_detections"`
	ClassFilter         []int            `json:"class_filter,omitempty"`
	Status              TaskStatus       `json:"status"`
	RetryCount          int              `json:"retry_count"`
	MaxRetries          int              `json:"max_retries"`
	Result              *DetectionResult `json:"result,omitempty"`
	FailureReason       string           `json:"failure_reason,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	StartedAt           *time.Time       `json:"started_at,omitempty"`
	CompletedAt         *time.Time       `json:"completed_at,omitempty"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

type Detection struct {
	ClassID    int        `json:"class_id"`
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

type DetectionStats struct {
	TotalDetections int            `json:"total_detections"`
	ClassCounts     map[string]int `json:"class_counts"`
	MeanConfidence  float64        `json:"mean_confidence"`
	MaxConfidence   float64        `json:"max_confidence"`
}

type DetectionResult struct {
	Detections         []Detection    `json:"detections"`
	Stats              DetectionStats `json:"stats"`
	AnnotatedReference string         `json:"annotated_reference,omitempty"`
	ModelUsed          string         `json:"model_used"`
	ProcessingSeconds  float64        `json:"processing_time"`
}

type TaskInput struct {
	TaskName            string
	FileReference       string
	ModelName           string
	ConfidenceThreshold float64
	IoUThreshold        float64
	MaxDetections       int
	ClassFilter         []int
}

func ValidateTaskInput(input TaskInput) error {
	if input.FileReference == "" {
		return fmt.Errorf("%w: file reference is required", ErrInvalidParameters)
	}
	if !IsKnownModel(input.ModelName) {
		return fmt.Errorf("%w: unknown model %q", ErrInvalidParameters, input.ModelName)
	}
	if input.ConfidenceThreshold <= 0 || input.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold must be in (0, 1]", ErrInvalidParameters)
	}
	if input.IoUThreshold < 0 || input.IoUThreshold > 1 {
		return fmt.Errorf("%w: iou threshold must be in [0, 1]", ErrInvalidParameters)
	}
	if input.MaxDetections < 0 {
		return fmt.Errorf("%w: max detections must be positive", ErrInvalidParameters)
	}
	for _, classID := range input.ClassFilter {
		if !IsKnownClass(classID) {
			return fmt.Errorf("%w: unknown class id %d", ErrInvalidParameters, classID)
		}
	}
	return nil
}

func IsTerminalTaskStatus(status TaskStatus) bool {
	return status == TaskStatusCompleted || status == TaskStatusFailed
}

// CanTransitionTask encodes the monotonic task lifecycle. The only backward
// edge, processing to pending, belongs to the staleness sweep.
func CanTransitionTask(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusProcessing || to == TaskStatusFailed
	case TaskStatusProcessing:
		return to == TaskStatusCompleted || to == TaskStatusFailed || to == TaskStatusPending
	default:
		return false
	}
}

// BuildStats derives aggregate counters from an ordered detection list.
func BuildStats(detections []Detection) DetectionStats {
	stats := DetectionStats{
		TotalDetections: len(detections),
		ClassCounts:     make(map[string]int, len(detections)),
	}
	if len(detections) == 0 {
		return stats
	}
	var sum float64
	for _, det := range detections {
		stats.ClassCounts[det.ClassName]++
		sum += det.Confidence
		if det.Confidence > stats.MaxConfidence {
			stats.MaxConfidence = det.Confidence
		}
	}
	stats.MeanConfidence = sum / float64(len(detections))
	return stats
}
