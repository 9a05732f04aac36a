package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/cache"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
)

const defaultTTL = 7 * 24 * time.Hour

// releaseScript deletes the lock only if it is still held by owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

var _ cache.Cache = (*RedisCache)(nil)

func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Ping Redis to check the connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cannot connect to Redis at %s: %w", addr, err)
	}

	return &RedisCache{client: rdb, ttl: defaultTTL, now: time.Now}, nil
}

// SetTTL changes how long task state is kept.
func (r *RedisCache) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		r.ttl = ttl
	}
}

func (r *RedisCache) Close() error { return r.client.Close() }

func (r *RedisCache) AcquireRunLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, lockKey(key), owner, ttl).Result()
}

func (r *RedisCache) ReleaseRunLock(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, r.client, []string{lockKey(key)}, owner).Err()
}

func (r *RedisCache) PutDatasetTask(ctx context.Context, task model.DatasetTask) error {
	id := cache.TaskID(task.RunID, task.Dataset)
	fields := map[string]any{
		"run_id":     task.RunID,
		"dataset":    task.Dataset,
		"month":      task.Month,
		"status":     string(task.Status),
		"rows":       task.Rows,
		"restarts":   task.Restarts,
		"polls":      task.Polls,
		"error":      task.Error,
		"updated_at": r.now().UnixMilli(),
	}
	if task.ExportState != "" {
		fields["export_state"] = task.ExportState
	}
	if task.Progress != nil {
		fields["progress"] = *task.Progress
	}
	if task.Handle != "" {
		fields["handle"] = task.Handle
	}
	if task.SourceURL != "" {
		fields["source_url"] = task.SourceURL
	}
	if task.HistoryID != 0 {
		fields["history_id"] = task.HistoryID
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, taskKey(id), fields)
	pipe.Expire(ctx, taskKey(id), r.ttl)
	pipe.SAdd(ctx, runKey(task.RunID), task.Dataset)
	pipe.Expire(ctx, runKey(task.RunID), r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisCache) GetDatasetTask(ctx context.Context, taskID string) (model.DatasetTask, error) {
	m, err := r.client.HGetAll(ctx, taskKey(taskID)).Result()
	if err != nil {
		return model.DatasetTask{}, err
	}
	if len(m) == 0 {
		return model.DatasetTask{}, fmt.Errorf("%w: task %s", cache.ErrNotFound, taskID)
	}
	return decodeTask(m), nil
}

func (r *RedisCache) ListDatasetTasks(ctx context.Context, runID string) ([]model.DatasetTask, error) {
	datasets, err := r.client.SMembers(ctx, runKey(runID)).Result()
	if err != nil {
		return nil, err
	}
	tasks := make([]model.DatasetTask, 0, len(datasets))
	for _, d := range datasets {
		t, err := r.GetDatasetTask(ctx, cache.TaskID(runID, d))
		if errors.Is(err, cache.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *RedisCache) Exists(ctx context.Context, taskID string) (bool, error) {
	count, err := r.client.Exists(ctx, taskKey(taskID)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RedisCache) SetExportStatus(ctx context.Context, taskID, status string) error {
	return r.setFields(ctx, taskID, map[string]any{"status": status})
}

func (r *RedisCache) GetExportStatus(ctx context.Context, taskID string) (string, error) {
	return r.getField(ctx, taskID, "status")
}

func (r *RedisCache) SetExportProgress(ctx context.Context, taskID, state string, progress *float64, restarts, polls int) error {
	fields := map[string]any{
		"export_state": state,
		"restarts":     restarts,
		"polls":        polls,
	}
	if progress != nil {
		fields["progress"] = *progress
	}
	return r.setFields(ctx, taskID, fields)
}

func (r *RedisCache) SetExportURL(ctx context.Context, taskID, url string) error {
	return r.setFields(ctx, taskID, map[string]any{"source_url": url})
}

func (r *RedisCache) GetExportURL(ctx context.Context, taskID string) (string, error) {
	return r.getField(ctx, taskID, "source_url")
}

func (r *RedisCache) SetExportHistoryID(ctx context.Context, taskID string, historyID int64) error {
	return r.setFields(ctx, taskID, map[string]any{"history_id": historyID})
}

func (r *RedisCache) GetExportHistoryID(ctx context.Context, taskID string) (int64, error) {
	v, err := r.getField(ctx, taskID, "history_id")
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (r *RedisCache) ClearExportTask(ctx context.Context, taskID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, taskKey(taskID))
	if runID, dataset, ok := strings.Cut(taskID, ":"); ok {
		pipe.SRem(ctx, runKey(runID), dataset)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisCache) setFields(ctx context.Context, taskID string, fields map[string]any) error {
	fields["updated_at"] = r.now().UnixMilli()
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, taskKey(taskID), fields)
	pipe.Expire(ctx, taskKey(taskID), r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisCache) getField(ctx context.Context, taskID, field string) (string, error) {
	v, err := r.client.HGet(ctx, taskKey(taskID), field).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s of task %s", cache.ErrNotFound, field, taskID)
	}
	return v, err
}

func decodeTask(m map[string]string) model.DatasetTask {
	t := model.DatasetTask{
		RunID:       m["run_id"],
		Dataset:     m["dataset"],
		Month:       m["month"],
		Status:      model.ExportStatus(m["status"]),
		ExportState: m["export_state"],
		Handle:      m["handle"],
		SourceURL:   m["source_url"],
		Error:       m["error"],
	}
	t.Rows, _ = strconv.Atoi(m["rows"])
	t.Restarts, _ = strconv.Atoi(m["restarts"])
	t.Polls, _ = strconv.Atoi(m["polls"])
	t.HistoryID, _ = strconv.ParseInt(m["history_id"], 10, 64)
	t.UpdatedAt, _ = strconv.ParseInt(m["updated_at"], 10, 64)
	if p, err := strconv.ParseFloat(m["progress"], 64); err == nil {
		t.Progress = &p
	}
	return t
}

// helpers to standardize keys
func taskKey(taskID string) string { return "vision_report:task:" + taskID }
func runKey(runID string) string   { return "vision_report:run:" + runID }
func lockKey(key string) string    { return "vision_report:lock:" + key }
