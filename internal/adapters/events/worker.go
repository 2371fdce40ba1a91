package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/justinzzc/vision-box/internal/application"
)

// Worker drains the task queue with a pool of goroutines and runs the
// staleness sweep on its own ticker.
type Worker struct {
	logger        *slog.Logger
	service       *application.Service
	workerCount   int
	pollInterval  time.Duration
	sweepInterval time.Duration
}

func NewWorker(logger *slog.Logger, service *application.Service, workerCount int, pollInterval, sweepInterval time.Duration) *Worker {
	if workerCount <= 0 {
		workerCount = 2
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Worker{
		logger:        logger,
		service:       service,
		workerCount:   workerCount,
		pollInterval:  pollInterval,
		sweepInterval: sweepInterval,
	}
}

// Run blocks until ctx is cancelled, then waits for in-flight tasks to
// settle before returning.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.runLoop(ctx, workerID)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.runSweep(ctx)
	}()

	wg.Wait()
	return nil
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.service.ProcessNextTask(ctx); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
					continue
				}
				w.logger.ErrorContext(ctx, "task processing failed",
					"operation", "process_task", "worker_id", workerID, "error", err)
			}
		}
	}
}

func (w *Worker) runSweep(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.service.SweepStaleTasks(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.ErrorContext(ctx, "stale task sweep failed",
					"operation", "sweep_stale_tasks", "error", err)
			}
		}
	}
}
