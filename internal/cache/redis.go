package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aka1453/promin-sched/internal/config"
	"github.com/aka1453/promin-sched/internal/metrics"
	"github.com/aka1453/promin-sched/pkg/schedule"
	"github.com/redis/go-redis/v9"
)

// RedisCache caches schedule-state and progress reads with a bounded TTL.
// Mutating service paths invalidate the affected keys explicitly, the TTL
// only covers writers outside this process.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisCache{
		client: client,
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
	}
}

// Ping verifies connectivity at startup.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func stateKey(taskID int64) string {
	return fmt.Sprintf("sched:task:%d:state", taskID)
}

func progressKey(milestoneID int64) string {
	return fmt.Sprintf("sched:milestone:%d:progress", milestoneID)
}

func (c *RedisCache) GetState(ctx context.Context, taskID int64) (schedule.ScheduleState, bool, error) {
	val, err := c.client.Get(ctx, stateKey(taskID)).Result()
	if err == redis.Nil {
		metrics.ObserveCacheRead("state", false)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	metrics.ObserveCacheRead("state", true)
	return schedule.ScheduleState(val), true, nil
}

func (c *RedisCache) SetState(ctx context.Context, taskID int64, state schedule.ScheduleState) error {
	return c.client.Set(ctx, stateKey(taskID), string(state), c.ttl).Err()
}

func (c *RedisCache) GetProgress(ctx context.Context, milestoneID int64) (float64, bool, error) {
	val, err := c.client.Get(ctx, progressKey(milestoneID)).Result()
	if err == redis.Nil {
		metrics.ObserveCacheRead("progress", false)
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	progress, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt progress cache entry for milestone %d: %w", milestoneID, err)
	}
	metrics.ObserveCacheRead("progress", true)
	return progress, true, nil
}

func (c *RedisCache) SetProgress(ctx context.Context, milestoneID int64, progress float64) error {
	return c.client.Set(ctx, progressKey(milestoneID), strconv.FormatFloat(progress, 'f', -1, 64), c.ttl).Err()
}

func (c *RedisCache) InvalidateTasks(ctx context.Context, taskIDs ...int64) error {
	if len(taskIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(taskIDs))
	for _, id := range taskIDs {
		keys = append(keys, stateKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) InvalidateMilestones(ctx context.Context, milestoneIDs ...int64) error {
	if len(milestoneIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(milestoneIDs))
	for _, id := range milestoneIDs {
		keys = append(keys, progressKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}
