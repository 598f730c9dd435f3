// Package queue is the campaign hand-off between the API and the workers:
// a single Redis list of campaign ids.
package queue

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type RedisQueue struct {
	rdb       *redis.Client
	queueName string
}

func NewRedisQueue(rdb *redis.Client, queueName string) *RedisQueue {
	return &RedisQueue{rdb: rdb, queueName: queueName}
}

// Push enqueues a campaign id for generation. Enqueueing the same id twice
// is harmless: the second worker loses the campaign lock and skips.
func (q *RedisQueue) Push(ctx context.Context, campaignID string) error {
	return q.rdb.LPush(ctx, q.queueName, campaignID).Err()
}

// Pop blocks until an id is available (BRPOP). Callers bound the wait with
// the context.
func (q *RedisQueue) Pop(ctx context.Context) (string, error) {
	res, err := q.rdb.BRPop(ctx, 0, q.queueName).Result()
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

// Len reports the number of campaigns waiting.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.queueName).Result()
}
