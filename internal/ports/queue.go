package ports

import "context"

// TaskQueue dispatches task ids to the worker pool. Delivery is a hint:
// workers still claim tasks through the task store, so a duplicate or lost
// queue entry never breaks the at-most-one-execution invariant.
type TaskQueue interface {
	Enqueue(ctx context.Context, taskID string) error

	// Dequeue blocks up to the adapter's poll timeout and returns io.EOF
	// when no task is available.
	Dequeue(ctx context.Context) (string, error)
}
