package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/justinzzc/vision-box/internal/adapters/detector"
	"github.com/justinzzc/vision-box/internal/adapters/memory"
	"github.com/justinzzc/vision-box/internal/adapters/security"
	"github.com/justinzzc/vision-box/internal/adapters/storage"
	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
)

type funcDetector struct {
	fn func(ctx context.Context, req ports.DetectionRequest) (domain.DetectionResult, error)
}

func (d *funcDetector) Run(ctx context.Context, req ports.DetectionRequest) (domain.DetectionResult, error) {
	return d.fn(ctx, req)
}

type testDeps struct {
	service *Service
	repos   *memory.Repositories
	queue   *memory.TaskQueue
	limiter *memory.RateLimiter
}

func newTestService(t *testing.T, det ports.Detector) testDeps {
	t.Helper()
	if det == nil {
		det = detector.NewStubDetector()
	}
	repos := memory.NewRepositories()
	queue := memory.NewTaskQueue()
	limiter := memory.NewRateLimiter()
	vault, err := security.NewHMACVault("test-pepper")
	if err != nil {
		t.Fatalf("init vault: %v", err)
	}
	service := NewService(Dependencies{
		Config:   Config{ServiceName: "vision-box-test"},
		Tasks:    repos.Tasks,
		Services: repos.Services,
		Tokens:   repos.Tokens,
		Usage:    repos.Usage,
		Queue:    queue,
		Detector: det,
		Files:    storage.NewMemoryStore(),
		Limiter:  limiter,
		Vault:    vault,
	})
	return testDeps{service: service, repos: repos, queue: queue, limiter: limiter}
}

var ownerActor = Actor{SubjectID: "owner-1", Role: "user"}

func submitTask(t *testing.T, svc *Service) domain.DetectionTask {
	t.Helper()
	task, err := svc.SubmitTask(context.Background(), ownerActor, SubmitTaskInput{
		FileReference:       "2026/08/01/clip.jpg",
		ModelName:           domain.DefaultModel,
		ConfidenceThreshold: 0.5,
	})
	if err != nil {
		t.Fatalf("submit task: %v", err)
	}
	return task
}

func TestSubmitTaskStartsPending(t *testing.T) {
	deps := newTestService(t, nil)
	task := submitTask(t, deps.service)
	if task.Status != domain.TaskStatusPending {
		t.Fatalf("expected pending, got %s", task.Status)
	}
	if task.IoUThreshold != domain.DefaultIoUThreshold {
		t.Fatalf("expected default iou threshold, got %f", task.IoUThreshold)
	}
	if task.MaxDetections != domain.DefaultMaxDetections {
		t.Fatalf("expected default max detections, got %d", task.MaxDetections)
	}
	if deps.queue.Len() != 1 {
		t.Fatalf("expected one queued id, got %d", deps.queue.Len())
	}
}

func TestSubmitTaskRejectsUnknownModel(t *testing.T) {
	deps := newTestService(t, nil)
	_, err := deps.service.SubmitTask(context.Background(), ownerActor, SubmitTaskInput{
		FileReference:       "clip.jpg",
		ModelName:           "yolov99",
		ConfidenceThreshold: 0.5,
	})
	if !errors.Is(err, domain.ErrInvalidParameters) {
		t.Fatalf("expected invalid parameters, got %v", err)
	}
}

func TestProcessNextTaskCompletes(t *testing.T) {
	deps := newTestService(t, nil)
	task := submitTask(t, deps.service)

	if err := deps.service.ProcessNextTask(context.Background()); err != nil {
		t.Fatalf("process task: %v", err)
	}

	got, err := deps.service.GetTask(context.Background(), ownerActor, task.TaskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.FailureReason)
	}
	if got.Result == nil || len(got.Result.Detections) == 0 {
		t.Fatalf("expected detections on the result")
	}
	if got.CompletedAt == nil || got.StartedAt == nil {
		t.Fatalf("expected timestamps to be set")
	}
}

func TestProcessNextTaskIdleQueue(t *testing.T) {
	deps := newTestService(t, nil)
	err := deps.service.ProcessNextTask(context.Background())
	if !IsIdleQueue(err) {
		t.Fatalf("expected idle queue sentinel, got %v", err)
	}
}

func TestProcessNextTaskRecordsFailure(t *testing.T) {
	deps := newTestService(t, &funcDetector{fn: func(context.Context, ports.DetectionRequest) (domain.DetectionResult, error) {
		return domain.DetectionResult{}, errors.New("model weights missing")
	}})
	task := submitTask(t, deps.service)

	if err := deps.service.ProcessNextTask(context.Background()); err != nil {
		t.Fatalf("process task: %v", err)
	}
	got, _ := deps.service.GetTask(context.Background(), ownerActor, task.TaskID)
	if got.Status != domain.TaskStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.FailureReason != "model weights missing" {
		t.Fatalf("unexpected failure reason: %q", got.FailureReason)
	}
}

func TestCancelPendingTask(t *testing.T) {
	deps := newTestService(t, nil)
	task := submitTask(t, deps.service)

	if err := deps.service.CancelTask(context.Background(), ownerActor, task.TaskID); err != nil {
		t.Fatalf("cancel task: %v", err)
	}
	got, _ := deps.service.GetTask(context.Background(), ownerActor, task.TaskID)
	if got.Status != domain.TaskStatusFailed || got.FailureReason != domain.ReasonCancelled {
		t.Fatalf("expected failed/Cancelled, got %s/%q", got.Status, got.FailureReason)
	}

	// The queued id is now a stale hint; processing it must be a no-op.
	if err := deps.service.ProcessNextTask(context.Background()); err != nil {
		t.Fatalf("process after cancel: %v", err)
	}
	got, _ = deps.service.GetTask(context.Background(), ownerActor, task.TaskID)
	if got.Status != domain.TaskStatusFailed {
		t.Fatalf("cancelled task must stay failed, got %s", got.Status)
	}
}

func TestCancelTerminalTaskConflicts(t *testing.T) {
	deps := newTestService(t, nil)
	task := submitTask(t, deps.service)
	if err := deps.service.ProcessNextTask(context.Background()); err != nil {
		t.Fatalf("process task: %v", err)
	}
	if err := deps.service.CancelTask(context.Background(), ownerActor, task.TaskID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict cancelling a completed task, got %v", err)
	}
}

func TestLateResultDiscardedAfterCancel(t *testing.T) {
	var deps testDeps
	deps = newTestService(t, &funcDetector{fn: func(context.Context, ports.DetectionRequest) (domain.DetectionResult, error) {
		// Cancel arrives while the detector is still running.
		tasks, _, err := deps.repos.Tasks.List(context.Background(), ports.TaskFilter{Page: 1, PageSize: 10})
		if err != nil || len(tasks) != 1 {
			t.Fatalf("list mid-flight: %v (%d tasks)", err, len(tasks))
		}
		if err := deps.service.CancelTask(context.Background(), ownerActor, tasks[0].TaskID); err != nil {
			t.Fatalf("cancel mid-flight: %v", err)
		}
		return domain.DetectionResult{Detections: []domain.Detection{{ClassName: "person", Confidence: 0.9}}}, nil
	}})

	task := submitTask(t, deps.service)
	if err := deps.service.ProcessNextTask(context.Background()); err != nil {
		t.Fatalf("process task: %v", err)
	}
	got, _ := deps.service.GetTask(context.Background(), ownerActor, task.TaskID)
	if got.Status != domain.TaskStatusFailed || got.FailureReason != domain.ReasonCancelled {
		t.Fatalf("late result must be discarded, got %s/%q", got.Status, got.FailureReason)
	}
	if got.Result != nil {
		t.Fatalf("cancelled task must not carry a result")
	}
}

func TestClaimIsExclusive(t *testing.T) {
	deps := newTestService(t, nil)
	task := submitTask(t, deps.service)

	const workers = 16
	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := deps.repos.Tasks.Claim(context.Background(), task.TaskID, time.Now().UTC())
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrConflict) {
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", wins)
	}
}

func TestSweepRequeuesStaleProcessing(t *testing.T) {
	deps := newTestService(t, nil)
	task := submitTask(t, deps.service)

	// Drain the queue hint, then claim so the task sits in processing.
	if _, err := deps.queue.Dequeue(context.Background()); err != nil {
		t.Fatalf("drain queue: %v", err)
	}
	started := time.Now().UTC().Add(-time.Hour)
	if _, err := deps.repos.Tasks.Claim(context.Background(), task.TaskID, started); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := deps.service.SweepStaleTasks(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	got, _ := deps.service.GetTask(context.Background(), ownerActor, task.TaskID)
	if got.Status != domain.TaskStatusPending {
		t.Fatalf("expected stale task back to pending, got %s", got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", got.RetryCount)
	}
	if deps.queue.Len() == 0 {
		t.Fatalf("expected the task to be re-enqueued")
	}
}

func TestSweepFailsTaskAfterRetryBudget(t *testing.T) {
	deps := newTestService(t, nil)
	task := submitTask(t, deps.service)
	if _, err := deps.queue.Dequeue(context.Background()); err != nil {
		t.Fatalf("drain queue: %v", err)
	}

	started := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < domain.MaxTaskRetries; i++ {
		if _, err := deps.repos.Tasks.Claim(context.Background(), task.TaskID, started); err != nil {
			t.Fatalf("claim round %d: %v", i, err)
		}
		if err := deps.service.SweepStaleTasks(context.Background()); err != nil {
			t.Fatalf("sweep round %d: %v", i, err)
		}
	}

	// Retry budget is now exhausted; one more stale round must fail it.
	if _, err := deps.repos.Tasks.Claim(context.Background(), task.TaskID, started); err != nil {
		t.Fatalf("final claim: %v", err)
	}
	if err := deps.service.SweepStaleTasks(context.Background()); err != nil {
		t.Fatalf("final sweep: %v", err)
	}
	got, _ := deps.service.GetTask(context.Background(), ownerActor, task.TaskID)
	if got.Status != domain.TaskStatusFailed || got.FailureReason != domain.ReasonUnrecoverable {
		t.Fatalf("expected failed/Unrecoverable, got %s/%q", got.Status, got.FailureReason)
	}
}

func TestSweepRedispatchesDeepPendingBacklog(t *testing.T) {
	deps := newTestService(t, nil)

	// A backlog of hour-old pending tasks whose enqueues were all lost.
	const backlog = 150
	created := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < backlog; i++ {
		at := created.Add(time.Duration(i) * time.Second)
		task := domain.DetectionTask{
			TaskID:              fmt.Sprintf("task-%03d", i),
			OwnerID:             ownerActor.SubjectID,
			FileReference:       "clip.jpg",
			ModelName:           domain.DefaultModel,
			ConfidenceThreshold: 0.5,
			Status:              domain.TaskStatusPending,
			MaxRetries:          domain.MaxTaskRetries,
			CreatedAt:           at,
			UpdatedAt:           at,
		}
		if err := deps.repos.Tasks.Create(context.Background(), task); err != nil {
			t.Fatalf("create task %d: %v", i, err)
		}
	}

	if err := deps.service.SweepStaleTasks(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deps.queue.Len() != backlog {
		t.Fatalf("expected %d re-enqueued ids, got %d", backlog, deps.queue.Len())
	}
	// Oldest first: the most stranded task leads the queue.
	first, err := deps.queue.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if first != "task-000" {
		t.Fatalf("expected the oldest pending task first, got %s", first)
	}
}

func TestTaskAccessIsOwnerScoped(t *testing.T) {
	deps := newTestService(t, nil)
	task := submitTask(t, deps.service)

	if _, err := deps.service.GetTask(context.Background(), Actor{SubjectID: "intruder"}, task.TaskID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for foreign owner, got %v", err)
	}
	if _, err := deps.service.GetTask(context.Background(), Actor{SubjectID: "admin-1", Role: "admin"}, task.TaskID); err != nil {
		t.Fatalf("admin must read any task: %v", err)
	}
}
