package cache

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const taskQueueKey = "visionbox:tasks:queue"

// RedisTaskQueue dispatches task ids through a Redis list. BRPOP gives
// workers blocking pickup without a poll loop hammering the server.
type RedisTaskQueue struct {
	client      *redis.Client
	pollTimeout time.Duration
}

func NewRedisTaskQueue(client *redis.Client, pollTimeout time.Duration) *RedisTaskQueue {
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &RedisTaskQueue{client: client, pollTimeout: pollTimeout}
}

func (q *RedisTaskQueue) Enqueue(ctx context.Context, taskID string) error {
	return q.client.LPush(ctx, taskQueueKey, taskID).Err()
}

func (q *RedisTaskQueue) Dequeue(ctx context.Context) (string, error) {
	values, err := q.client.BRPop(ctx, q.pollTimeout, taskQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", io.EOF
		}
		return "", err
	}
	// BRPOP returns [key, value].
	if len(values) != 2 {
		return "", io.EOF
	}
	return values[1], nil
}
