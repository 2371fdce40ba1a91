package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
	"gorm.io/gorm"
)

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) ports.TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task domain.DetectionTask) error {
	rec := toTaskModel(task)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, taskID string) (domain.DetectionTask, error) {
	var rec taskModel
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DetectionTask{}, domain.ErrNotFound
		}
		return domain.DetectionTask{}, err
	}
	return toDomainTask(rec), nil
}

func (r *taskRepository) List(ctx context.Context, filter ports.TaskFilter) ([]domain.DetectionTask, int64, error) {
	query := r.db.WithContext(ctx).Model(&taskModel{})
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []taskModel
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("created_at DESC").Limit(filter.PageSize).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	tasks := make([]domain.DetectionTask, 0, len(rows))
	for _, item := range rows {
		tasks = append(tasks, toDomainTask(item))
	}
	return tasks, total, nil
}

// Claim is the worker's compare-and-set: the conditional WHERE guarantees at
// most one concurrent caller moves the row out of pending.
func (r *taskRepository) Claim(ctx context.Context, taskID string, startedAt time.Time) (domain.DetectionTask, error) {
	res := r.db.WithContext(ctx).
		Model(&taskModel{}).
		Where("task_id = ?", taskID).
		Where("status = ?", string(domain.TaskStatusPending)).
		Updates(map[string]any{
			"status":     string(domain.TaskStatusProcessing),
			"started_at": startedAt,
			"updated_at": startedAt,
		})
	if res.Error != nil {
		return domain.DetectionTask{}, res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&taskModel{}).Where("task_id = ?", taskID).Count(&exists).Error; err != nil {
			return domain.DetectionTask{}, err
		}
		if exists == 0 {
			return domain.DetectionTask{}, domain.ErrNotFound
		}
		return domain.DetectionTask{}, domain.ErrConflict
	}
	return r.GetByID(ctx, taskID)
}

func (r *taskRepository) Complete(ctx context.Context, taskID string, result domain.DetectionResult, completedAt time.Time) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&taskModel{}).
		Where("task_id = ?", taskID).
		Where("status = ?", string(domain.TaskStatusProcessing)).
		Updates(map[string]any{
			"status":       string(domain.TaskStatusCompleted),
			"result":       string(raw),
			"completed_at": completedAt,
			"updated_at":   completedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *taskRepository) Fail(ctx context.Context, taskID, reason string, failedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&taskModel{}).
		Where("task_id = ?", taskID).
		Where("status IN ?", []string{string(domain.TaskStatusPending), string(domain.TaskStatusProcessing)}).
		Updates(map[string]any{
			"status":         string(domain.TaskStatusFailed),
			"failure_reason": reason,
			"completed_at":   failedAt,
			"updated_at":     failedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&taskModel{}).Where("task_id = ?", taskID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

func (r *taskRepository) ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]domain.DetectionTask, error) {
	var rows []taskModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.TaskStatusProcessing)).
		Where("started_at < ?", cutoff).
		Order("started_at ASC").
		Limit(100).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.DetectionTask, 0, len(rows))
	for _, item := range rows {
		tasks = append(tasks, toDomainTask(item))
	}
	return tasks, nil
}

// ListAgedPending orders oldest first so repeated sweeps always reach the
// tasks a lost enqueue stranded, no matter how deep the backlog is.
func (r *taskRepository) ListAgedPending(ctx context.Context, cutoff time.Time) ([]domain.DetectionTask, error) {
	var rows []taskModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.TaskStatusPending)).
		Where("updated_at <= ?", cutoff).
		Order("updated_at ASC").
		Limit(500).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.DetectionTask, 0, len(rows))
	for _, item := range rows {
		tasks = append(tasks, toDomainTask(item))
	}
	return tasks, nil
}

func (r *taskRepository) Requeue(ctx context.Context, taskID string, requeuedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&taskModel{}).
		Where("task_id = ?", taskID).
		Where("status = ?", string(domain.TaskStatusProcessing)).
		Updates(map[string]any{
			"status":      string(domain.TaskStatusPending),
			"retry_count": gorm.Expr("retry_count + 1"),
			"started_at":  nil,
			"updated_at":  requeuedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&taskModel{}).Where("task_id = ?", taskID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}
