package ports

import (
	"context"
	"time"

	"github.com/justinzzc/vision-box/internal/domain"
)

type TaskFilter struct {
	OwnerID  string
	Status   domain.TaskStatus
	Page     int
	PageSize int
}

// TaskRepository owns all task state transitions. Claim and the terminal
// writes are conditional updates so the monotonic lifecycle holds under
// concurrent workers and across processes.
type TaskRepository interface {
	Create(ctx context.Context, task domain.DetectionTask) error
	GetByID(ctx context.Context, taskID string) (domain.DetectionTask, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.DetectionTask, int64, error)

	// Claim transitions pending -> processing. Exactly one concurrent caller
	// wins; the rest get domain.ErrConflict.
	Claim(ctx context.Context, taskID string, startedAt time.Time) (domain.DetectionTask, error)

	// Complete writes the result only while the task is still processing;
	// a task cancelled mid-flight stays failed and the write reports
	// domain.ErrConflict.
	Complete(ctx context.Context, taskID string, result domain.DetectionResult, completedAt time.Time) error

	// Fail moves a pending or processing task to failed with a reason.
	Fail(ctx context.Context, taskID, reason string, failedAt time.Time) error

	// ListStaleProcessing returns tasks stuck in processing since before the
	// cutoff, for the staleness sweep.
	ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]domain.DetectionTask, error)

	// ListAgedPending returns pending tasks untouched since before the
	// cutoff, oldest first, so re-dispatch reaches lost enqueues even when
	// the pending backlog is deep.
	ListAgedPending(ctx context.Context, cutoff time.Time) ([]domain.DetectionTask, error)

	// Requeue moves a stale processing task back to pending and bumps its
	// retry count. Only the sweep uses this edge.
	Requeue(ctx context.Context, taskID string, requeuedAt time.Time) error
}

type ServiceFilter struct {
	OwnerID  string
	Status   domain.ServiceStatus
	Page     int
	PageSize int
}

type ServiceRepository interface {
	Create(ctx context.Context, svc domain.PublishedService) error
	GetByID(ctx context.Context, serviceID string) (domain.PublishedService, error)
	List(ctx context.Context, filter ServiceFilter) ([]domain.PublishedService, int64, error)
	Update(ctx context.Context, svc domain.PublishedService) error
	SetStatus(ctx context.Context, serviceID string, status domain.ServiceStatus, at time.Time) error

	// Delete removes the service and, in the same transaction, every token
	// and usage record that references it.
	Delete(ctx context.Context, serviceID string) error

	// RecordCall bumps the rolling call counters on the service row.
	RecordCall(ctx context.Context, serviceID string, success bool, at time.Time) error
}

type TokenRepository interface {
	Create(ctx context.Context, token domain.ServiceToken) error
	GetByID(ctx context.Context, tokenID string) (domain.ServiceToken, error)
	GetBySecretHash(ctx context.Context, secretHash string) (domain.ServiceToken, error)
	ListByService(ctx context.Context, serviceID string) ([]domain.ServiceToken, error)
	SetActive(ctx context.Context, tokenID string, active bool, at time.Time) error

	// Revoke is terminal; it also clears is_active so listings read sanely.
	Revoke(ctx context.Context, tokenID string, at time.Time) error

	// RecordUse bumps usage_count and the last-used fields.
	RecordUse(ctx context.Context, tokenID, clientIP string, at time.Time) error
}

type UsageRepository interface {
	Append(ctx context.Context, record domain.UsageRecord) error
	Summarize(ctx context.Context, serviceID string, from, to time.Time) (domain.UsageSummary, error)

	// DailyTotals returns per-day aggregates for days that have traffic;
	// the application layer zero-fills the gaps.
	DailyTotals(ctx context.Context, serviceID string, from, to time.Time) (map[string]domain.DailyStat, error)
}
