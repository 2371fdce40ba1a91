package memory

import (
	"context"
	"io"
	"sync"
)

// TaskQueue is a process-local FIFO. Dequeue never blocks; it returns io.EOF
// when the queue is empty, matching the queue port's idle sentinel.
type TaskQueue struct {
	mu  sync.Mutex
	ids []string
}

func NewTaskQueue() *TaskQueue {
	return &TaskQueue{}
}

func (q *TaskQueue) Enqueue(_ context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, taskID)
	return nil
}

func (q *TaskQueue) Dequeue(_ context.Context) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", io.EOF
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, nil
}

// Len reports the number of queued ids.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}
