package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	basecache "github.com/traveldata/hotel-exporter/internal/cache"
	"github.com/traveldata/hotel-exporter/internal/errors"
	"github.com/traveldata/hotel-exporter/internal/model"
)

const (
	taskQueueKey = "hotel_exporter:export_tasks"
	popTimeout   = 2 * time.Second
)

// RedisQueue is the Redis-backed task queue. maxDepth <= 0 disables the
// bound.
type RedisQueue struct {
	client   *redis.Client
	maxDepth int64
}

func NewRedisQueue(addr, password string, db int, maxDepth int64) (*RedisQueue, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Ping Redis to check the connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cannot connect to Redis at %s: %w", addr, err)
	}

	return &RedisQueue{client: rdb, maxDepth: maxDepth}, nil
}

func (r *RedisQueue) PushExportTask(task model.ExportTask) error {
	ctx := context.Background()
	if r.maxDepth > 0 {
		depth, err := r.client.LLen(ctx, taskQueueKey).Result()
		if err != nil {
			return err
		}
		if depth >= r.maxDepth {
			return basecache.ErrQueueFull
		}
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return r.client.LPush(ctx, taskQueueKey, payload).Err()
}

func (r *RedisQueue) PopExportTask() (model.ExportTask, error) {
	var task model.ExportTask
	res, err := r.client.BRPop(context.Background(), popTimeout, taskQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return task, basecache.ErrQueueEmpty
		}
		return task, err
	}
	// BRPop returns [key, value]
	if len(res) != 2 {
		return task, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
	}
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return task, fmt.Errorf("corrupt task payload: %w", err)
	}
	return task, nil
}

func (r *RedisQueue) Len() (int64, error) {
	return r.client.LLen(context.Background(), taskQueueKey).Result()
}

func (r *RedisQueue) Clear() error {
	return r.client.Del(context.Background(), taskQueueKey).Err()
}
