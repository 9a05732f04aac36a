package cache

import (
	"context"
	"errors"
	"time"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
)

// ErrNotFound is returned for unknown task ids.
var ErrNotFound = errors.New("cache: not found")

// Cache keeps live run state for operators and guards against two runs
// of the same client and month. Task ids are TaskID(runID, dataset).
type Cache interface {
	AcquireRunLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseRunLock(ctx context.Context, key, owner string) error

	PutDatasetTask(ctx context.Context, task model.DatasetTask) error
	GetDatasetTask(ctx context.Context, taskID string) (model.DatasetTask, error)
	ListDatasetTasks(ctx context.Context, runID string) ([]model.DatasetTask, error)

	Exists(ctx context.Context, taskID string) (bool, error)
	SetExportStatus(ctx context.Context, taskID, status string) error
	GetExportStatus(ctx context.Context, taskID string) (string, error)
	SetExportProgress(ctx context.Context, taskID, state string, progress *float64, restarts, polls int) error
	SetExportURL(ctx context.Context, taskID, url string) error
	GetExportURL(ctx context.Context, taskID string) (string, error)
	SetExportHistoryID(ctx context.Context, taskID string, historyID int64) error
	GetExportHistoryID(ctx context.Context, taskID string) (int64, error)
	ClearExportTask(ctx context.Context, taskID string) error

	Close() error
}

// TaskID names one dataset of one run.
func TaskID(runID, dataset string) string {
	return runID + ":" + dataset
}
