package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
)

// Repositories bundles in-memory implementations of every store port. They
// back unit tests and single-process dev runs; the locking mirrors the
// row-level guarantees the Postgres adapters get from conditional updates.
type Repositories struct {
	Tasks    *TaskRepository
	Services *ServiceRepository
	Tokens   *TokenRepository
	Usage    *UsageRepository
}

func NewRepositories() *Repositories {
	usage := NewUsageRepository()
	tokens := NewTokenRepository()
	services := NewServiceRepository(usage)
	services.AttachTokens(tokens)
	return &Repositories{
		Tasks:    NewTaskRepository(),
		Services: services,
		Tokens:   tokens,
		Usage:    usage,
	}
}

type TaskRepository struct {
	mu    sync.Mutex
	tasks map[string]domain.DetectionTask
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{tasks: make(map[string]domain.DetectionTask)}
}

func (r *TaskRepository) Create(_ context.Context, task domain.DetectionTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[task.TaskID]; exists {
		return domain.ErrConflict
	}
	r.tasks[task.TaskID] = task
	return nil
}

func (r *TaskRepository) GetByID(_ context.Context, taskID string) (domain.DetectionTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.DetectionTask{}, domain.ErrNotFound
	}
	return task, nil
}

func (r *TaskRepository) List(_ context.Context, filter ports.TaskFilter) ([]domain.DetectionTask, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]domain.DetectionTask, 0, len(r.tasks))
	for _, task := range r.tasks {
		if filter.OwnerID != "" && task.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		matched = append(matched, task)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *TaskRepository) Claim(_ context.Context, taskID string, startedAt time.Time) (domain.DetectionTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.DetectionTask{}, domain.ErrNotFound
	}
	if task.Status != domain.TaskStatusPending {
		return domain.DetectionTask{}, domain.ErrConflict
	}
	task.Status = domain.TaskStatusProcessing
	task.StartedAt = &startedAt
	task.UpdatedAt = startedAt
	r.tasks[taskID] = task
	return task, nil
}

func (r *TaskRepository) Complete(_ context.Context, taskID string, result domain.DetectionResult, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	if task.Status != domain.TaskStatusProcessing {
		return domain.ErrConflict
	}
	task.Status = domain.TaskStatusCompleted
	task.Result = &result
	task.CompletedAt = &completedAt
	task.UpdatedAt = completedAt
	r.tasks[taskID] = task
	return nil
}

func (r *TaskRepository) Fail(_ context.Context, taskID, reason string, failedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	if domain.IsTerminalTaskStatus(task.Status) {
		return domain.ErrConflict
	}
	task.Status = domain.TaskStatusFailed
	task.FailureReason = reason
	task.CompletedAt = &failedAt
	task.UpdatedAt = failedAt
	r.tasks[taskID] = task
	return nil
}

func (r *TaskRepository) ListStaleProcessing(_ context.Context, cutoff time.Time) ([]domain.DetectionTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []domain.DetectionTask
	for _, task := range r.tasks {
		if task.Status != domain.TaskStatusProcessing {
			continue
		}
		if task.StartedAt != nil && task.StartedAt.Before(cutoff) {
			stale = append(stale, task)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].StartedAt.Before(*stale[j].StartedAt)
	})
	return stale, nil
}

func (r *TaskRepository) ListAgedPending(_ context.Context, cutoff time.Time) ([]domain.DetectionTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var aged []domain.DetectionTask
	for _, task := range r.tasks {
		if task.Status != domain.TaskStatusPending {
			continue
		}
		if task.UpdatedAt.After(cutoff) {
			continue
		}
		aged = append(aged, task)
	}
	sort.Slice(aged, func(i, j int) bool {
		return aged[i].UpdatedAt.Before(aged[j].UpdatedAt)
	})
	return aged, nil
}

func (r *TaskRepository) Requeue(_ context.Context, taskID string, requeuedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	if task.Status != domain.TaskStatusProcessing {
		return domain.ErrConflict
	}
	task.Status = domain.TaskStatusPending
	task.RetryCount++
	task.StartedAt = nil
	task.UpdatedAt = requeuedAt
	r.tasks[taskID] = task
	return nil
}

type ServiceRepository struct {
	mu       sync.Mutex
	services map[string]domain.PublishedService
	tokens   *TokenRepository
	usage    *UsageRepository
}

func NewServiceRepository(usage *UsageRepository) *ServiceRepository {
	return &ServiceRepository{services: make(map[string]domain.PublishedService), usage: usage}
}

// AttachTokens wires the token store used for cascade deletes.
func (r *ServiceRepository) AttachTokens(tokens *TokenRepository) {
	r.tokens = tokens
}

func (r *ServiceRepository) Create(_ context.Context, svc domain.PublishedService) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[svc.ServiceID]; exists {
		return domain.ErrConflict
	}
	r.services[svc.ServiceID] = svc
	return nil
}

func (r *ServiceRepository) GetByID(_ context.Context, serviceID string) (domain.PublishedService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[serviceID]
	if !ok {
		return domain.PublishedService{}, domain.ErrNotFound
	}
	return svc, nil
}

func (r *ServiceRepository) List(_ context.Context, filter ports.ServiceFilter) ([]domain.PublishedService, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]domain.PublishedService, 0, len(r.services))
	for _, svc := range r.services {
		if filter.OwnerID != "" && svc.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && svc.Status != filter.Status {
			continue
		}
		matched = append(matched, svc)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *ServiceRepository) Update(_ context.Context, svc domain.PublishedService) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.services[svc.ServiceID]
	if !ok {
		return domain.ErrNotFound
	}
	svc.TotalCalls = current.TotalCalls
	svc.SuccessfulCalls = current.SuccessfulCalls
	svc.FailedCalls = current.FailedCalls
	svc.LastCalledAt = current.LastCalledAt
	r.services[svc.ServiceID] = svc
	return nil
}

func (r *ServiceRepository) SetStatus(_ context.Context, serviceID string, status domain.ServiceStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[serviceID]
	if !ok {
		return domain.ErrNotFound
	}
	svc.Status = status
	svc.UpdatedAt = at
	r.services[serviceID] = svc
	return nil
}

func (r *ServiceRepository) Delete(ctx context.Context, serviceID string) error {
	r.mu.Lock()
	if _, ok := r.services[serviceID]; !ok {
		r.mu.Unlock()
		return domain.ErrNotFound
	}
	delete(r.services, serviceID)
	r.mu.Unlock()

	if r.tokens != nil {
		r.tokens.deleteByService(serviceID)
	}
	if r.usage != nil {
		r.usage.deleteByService(serviceID)
	}
	_ = ctx
	return nil
}

func (r *ServiceRepository) RecordCall(_ context.Context, serviceID string, success bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[serviceID]
	if !ok {
		return domain.ErrNotFound
	}
	svc.TotalCalls++
	if success {
		svc.SuccessfulCalls++
	} else {
		svc.FailedCalls++
	}
	svc.LastCalledAt = &at
	svc.UpdatedAt = at
	r.services[serviceID] = svc
	return nil
}

type TokenRepository struct {
	mu     sync.Mutex
	tokens map[string]domain.ServiceToken
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{tokens: make(map[string]domain.ServiceToken)}
}

func (r *TokenRepository) Create(_ context.Context, token domain.ServiceToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tokens[token.TokenID]; exists {
		return domain.ErrConflict
	}
	for _, existing := range r.tokens {
		if existing.SecretHash == token.SecretHash {
			return domain.ErrConflict
		}
	}
	r.tokens[token.TokenID] = token
	return nil
}

func (r *TokenRepository) GetByID(_ context.Context, tokenID string) (domain.ServiceToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenID]
	if !ok {
		return domain.ServiceToken{}, domain.ErrNotFound
	}
	return token, nil
}

func (r *TokenRepository) GetBySecretHash(_ context.Context, secretHash string) (domain.ServiceToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.SecretHash == secretHash {
			return token, nil
		}
	}
	return domain.ServiceToken{}, domain.ErrNotFound
}

func (r *TokenRepository) ListByService(_ context.Context, serviceID string) ([]domain.ServiceToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var tokens []domain.ServiceToken
	for _, token := range r.tokens {
		if token.ServiceID == serviceID {
			tokens = append(tokens, token)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
	})
	return tokens, nil
}

func (r *TokenRepository) SetActive(_ context.Context, tokenID string, active bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenID]
	if !ok {
		return domain.ErrNotFound
	}
	if token.IsRevoked {
		return domain.ErrConflict
	}
	token.IsActive = active
	token.UpdatedAt = at
	r.tokens[tokenID] = token
	return nil
}

func (r *TokenRepository) Revoke(_ context.Context, tokenID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenID]
	if !ok {
		return domain.ErrNotFound
	}
	token.IsRevoked = true
	token.IsActive = false
	token.UpdatedAt = at
	r.tokens[tokenID] = token
	return nil
}

func (r *TokenRepository) RecordUse(_ context.Context, tokenID, clientIP string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenID]
	if !ok {
		return domain.ErrNotFound
	}
	token.UsageCount++
	token.LastUsedAt = &at
	token.LastUsedIP = clientIP
	token.UpdatedAt = at
	r.tokens[tokenID] = token
	return nil
}

func (r *TokenRepository) deleteByService(serviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, token := range r.tokens {
		if token.ServiceID == serviceID {
			delete(r.tokens, id)
		}
	}
}

type UsageRepository struct {
	mu      sync.Mutex
	records []domain.UsageRecord
}

func NewUsageRepository() *UsageRepository {
	return &UsageRepository{}
}

func (r *UsageRepository) Append(_ context.Context, record domain.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *UsageRepository) Summarize(_ context.Context, serviceID string, from, to time.Time) (domain.UsageSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	summary := domain.UsageSummary{ServiceID: serviceID}
	callers := make(map[string]bool)
	var latencySum float64
	for _, rec := range r.records {
		if rec.ServiceID != serviceID || rec.OccurredAt.Before(from) || !rec.OccurredAt.Before(to) {
			continue
		}
		summary.TotalCalls++
		if rec.Success {
			summary.SuccessfulCalls++
		} else {
			summary.FailedCalls++
		}
		summary.TotalDetections += int64(rec.DetectionCount)
		latencySum += rec.ProcessingSeconds
		callers[rec.ClientAddress] = true
	}
	summary.UniqueCallers = int64(len(callers))
	if summary.TotalCalls > 0 {
		summary.AvgLatency = latencySum / float64(summary.TotalCalls)
	}
	return summary, nil
}

func (r *UsageRepository) DailyTotals(_ context.Context, serviceID string, from, to time.Time) (map[string]domain.DailyStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := make(map[string]domain.DailyStat)
	latencySums := make(map[string]float64)
	for _, rec := range r.records {
		if rec.ServiceID != serviceID || rec.OccurredAt.Before(from) || !rec.OccurredAt.Before(to) {
			continue
		}
		key := rec.OccurredAt.UTC().Format("2006-01-02")
		stat := totals[key]
		stat.Date = key
		stat.TotalCalls++
		if rec.Success {
			stat.SuccessfulCalls++
		} else {
			stat.FailedCalls++
		}
		stat.TotalDetections += int64(rec.DetectionCount)
		latencySums[key] += rec.ProcessingSeconds
		totals[key] = stat
	}
	for key, stat := range totals {
		stat.AvgLatency = latencySums[key] / float64(stat.TotalCalls)
		totals[key] = stat
	}
	return totals, nil
}

// Len reports the number of stored records; tests use it to assert the
// drain goroutine flushed.
func (r *UsageRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *UsageRepository) deleteByService(serviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.ServiceID != serviceID {
			kept = append(kept, rec)
		}
	}
	r.records = kept
}
