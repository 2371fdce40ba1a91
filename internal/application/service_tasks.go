package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
)

// SubmitTask validates the request, persists a pending task, and schedules
// it. It returns before any detector work happens.
func (s *Service) SubmitTask(ctx context.Context, actor Actor, input SubmitTaskInput) (domain.DetectionTask, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.DetectionTask{}, domain.ErrUnauthorized
	}
	candidate := domain.TaskInput{
		TaskName:            strings.TrimSpace(input.TaskName),
		FileReference:       strings.TrimSpace(input.FileReference),
		ModelName:           strings.TrimSpace(input.ModelName),
		ConfidenceThreshold: input.ConfidenceThreshold,
		IoUThreshold:        input.IoUThreshold,
		MaxDetections:       input.MaxDetections,
		ClassFilter:         input.ClassFilter,
	}
	if candidate.IoUThreshold == 0 {
		candidate.IoUThreshold = domain.DefaultIoUThreshold
	}
	if candidate.MaxDetections == 0 {
		candidate.MaxDetections = domain.DefaultMaxDetections
	}
	if err := domain.ValidateTaskInput(candidate); err != nil {
		return domain.DetectionTask{}, err
	}

	now := s.nowFn()
	task := domain.DetectionTask{
		TaskID:              uuid.NewString(),
		OwnerID:             actor.SubjectID,
		TaskName:            candidate.TaskName,
		FileReference:       candidate.FileReference,
		ModelName:           candidate.ModelName,
		ConfidenceThreshold: candidate.ConfidenceThreshold,
		IoUThreshold:        candidate.IoUThreshold,
		MaxDetections:       candidate.MaxDetections,
		ClassFilter:         candidate.ClassFilter,
		Status:              domain.TaskStatusPending,
		MaxRetries:          s.cfg.MaxTaskRetries,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return domain.DetectionTask{}, err
	}
	// A lost enqueue is tolerable: the sweep re-enqueues aged pending tasks.
	if err := s.queue.Enqueue(ctx, task.TaskID); err != nil {
		slog.Default().WarnContext(ctx, "task enqueue failed, sweep will retry",
			"operation", "submit_task", "task_id", task.TaskID, "error", err)
	}
	return task, nil
}

// GetTask is the poll read path. It never touches the detector or the queue.
func (s *Service) GetTask(ctx context.Context, actor Actor, taskID string) (domain.DetectionTask, error) {
	task, err := s.tasks.GetByID(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return domain.DetectionTask{}, err
	}
	if err := s.requireTaskAccess(actor, task); err != nil {
		return domain.DetectionTask{}, err
	}
	return task, nil
}

func (s *Service) ListTasks(ctx context.Context, actor Actor, status domain.TaskStatus, page, pageSize int) ([]domain.DetectionTask, int64, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, 0, domain.ErrUnauthorized
	}
	filter := ports.TaskFilter{Status: status, Page: page, PageSize: pageSize}
	if !actor.isAdmin() {
		filter.OwnerID = actor.SubjectID
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.tasks.List(ctx, filter)
}

// CancelTask is best effort: a pending task fails immediately; a processing
// task keeps its in-flight detector call, whose result is then discarded by
// the conditional terminal write.
func (s *Service) CancelTask(ctx context.Context, actor Actor, taskID string) error {
	task, err := s.tasks.GetByID(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return err
	}
	if err := s.requireTaskAccess(actor, task); err != nil {
		return err
	}
	if domain.IsTerminalTaskStatus(task.Status) {
		return domain.ErrConflict
	}
	return s.tasks.Fail(ctx, task.TaskID, domain.ReasonCancelled, s.nowFn())
}

// ProcessNextTask runs one unit of worker work: dequeue, claim, detect,
// write the terminal state. Queue entries are hints; the claim on the task
// store is what grants execution rights, so duplicates are harmless.
func (s *Service) ProcessNextTask(ctx context.Context) error {
	taskID, err := s.queue.Dequeue(ctx)
	if err != nil {
		return err
	}
	task, err := s.tasks.Claim(ctx, taskID, s.nowFn())
	if err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	result, runErr := s.runDetection(ctx, task)
	if runErr != nil {
		reason := runErr.Error()
		if errors.Is(runErr, context.DeadlineExceeded) {
			reason = domain.ReasonTimeout
		}
		if err := s.tasks.Fail(ctx, task.TaskID, reason, s.nowFn()); err != nil && !errors.Is(err, domain.ErrConflict) {
			return err
		}
		return nil
	}

	if err := s.tasks.Complete(ctx, task.TaskID, result, s.nowFn()); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Cancelled while the detector was running; the result is dropped.
			slog.Default().InfoContext(ctx, "discarding result for externally finished task",
				"operation", "process_task", "task_id", task.TaskID)
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) runDetection(ctx context.Context, task domain.DetectionTask) (domain.DetectionResult, error) {
	if s.cfg.DetectionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DetectionTimeout)
		defer cancel()
	}
	return s.detector.Run(ctx, ports.DetectionRequest{
		FileReference:       task.FileReference,
		ModelName:           task.ModelName,
		ConfidenceThreshold: task.ConfidenceThreshold,
		IoUThreshold:        task.IoUThreshold,
		MaxDetections:       task.MaxDetections,
		ClassFilter:         task.ClassFilter,
	})
}

// SweepStaleTasks requeues tasks stuck in processing past the staleness
// threshold and force-fails the ones that exhausted their retry budget.
// This is the only automatic retry in the system.
func (s *Service) SweepStaleTasks(ctx context.Context) error {
	cutoff := s.nowFn().Add(-s.cfg.StaleAfter)
	stale, err := s.tasks.ListStaleProcessing(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, task := range stale {
		if task.RetryCount >= task.MaxRetries {
			if err := s.tasks.Fail(ctx, task.TaskID, domain.ReasonUnrecoverable, s.nowFn()); err != nil && !errors.Is(err, domain.ErrConflict) {
				return err
			}
			continue
		}
		if err := s.tasks.Requeue(ctx, task.TaskID, s.nowFn()); err != nil {
			if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return err
		}
		if err := s.queue.Enqueue(ctx, task.TaskID); err != nil {
			slog.Default().WarnContext(ctx, "requeued task enqueue failed",
				"operation", "sweep_stale_tasks", "task_id", task.TaskID, "error", err)
		}
	}
	// Re-dispatch pending tasks that aged past the threshold, covering
	// enqueues lost to queue outages. Oldest first, so a deep backlog cannot
	// starve them; claiming dedups double deliveries.
	aged, err := s.tasks.ListAgedPending(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, task := range aged {
		if err := s.queue.Enqueue(ctx, task.TaskID); err != nil {
			slog.Default().WarnContext(ctx, "pending task re-enqueue failed",
				"operation", "sweep_stale_tasks", "task_id", task.TaskID, "error", err)
		}
	}
	return nil
}

func (s *Service) requireTaskAccess(actor Actor, task domain.DetectionTask) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	if actor.isAdmin() || task.OwnerID == "" || task.OwnerID == actor.SubjectID {
		return nil
	}
	return domain.ErrForbidden
}

// IsIdleQueue reports the sentinel used by queue adapters for "nothing to
// do right now".
func IsIdleQueue(err error) bool {
	return errors.Is(err, io.EOF)
}
