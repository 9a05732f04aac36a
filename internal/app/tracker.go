package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/cache"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/export"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/store"
)

// tracker mirrors dataset status into the cache and the export history.
// Both sinks are optional and their failures never fail a dataset.
type tracker struct {
	cache   cache.Cache
	history store.HistoryStore
	now     func() time.Time

	runID  string
	client string
	month  string

	mu    sync.Mutex
	tasks map[string]*model.DatasetTask
}

func newTracker(c cache.Cache, h store.HistoryStore, now func() time.Time, runID, client, month string) *tracker {
	return &tracker{
		cache:   c,
		history: h,
		now:     now,
		runID:   runID,
		client:  client,
		month:   month,
		tasks:   make(map[string]*model.DatasetTask),
	}
}

// begin registers a dataset as pending.
func (t *tracker) begin(ctx context.Context, dataset string) {
	task := &model.DatasetTask{
		RunID:   t.runID,
		Dataset: dataset,
		Month:   t.month,
		Status:  model.ExportStatusPending,
	}

	if t.history != nil {
		id, err := t.history.InsertExportHistory(ctx, &model.NewExportHistory{
			RunID:     t.runID,
			Client:    t.client,
			Dataset:   dataset,
			Month:     t.month,
			Status:    model.ExportStatusPending,
			StartedAt: t.now().UnixMilli(),
		})
		if err != nil {
			slog.WarnContext(ctx, "vision_report.history.insert_failed",
				slog.String("dataset", dataset), slog.String("error", err.Error()))
		}
		task.HistoryID = id
	}

	t.mu.Lock()
	t.tasks[dataset] = task
	snapshot := *task
	t.mu.Unlock()

	if t.cache == nil {
		return
	}
	t.cacheErr(ctx, dataset, "put", t.cache.PutDatasetTask(ctx, snapshot))
	if snapshot.HistoryID != 0 {
		t.cacheErr(ctx, dataset, "history_id", t.cache.SetExportHistoryID(ctx, t.taskID(dataset), snapshot.HistoryID))
	}
}

func (t *tracker) processing(ctx context.Context, dataset string) {
	t.update(dataset, func(task *model.DatasetTask) { task.Status = model.ExportStatusProcessing })
	if t.cache != nil {
		t.cacheErr(ctx, dataset, "status", t.cache.SetExportStatus(ctx, t.taskID(dataset), string(model.ExportStatusProcessing)))
	}
	t.setHistory(ctx, dataset)
}

// finish records the final outcome of a dataset.
func (t *tracker) finish(ctx context.Context, d model.DatasetSummary) {
	ctx = context.WithoutCancel(ctx)
	task := t.update(d.Name, func(task *model.DatasetTask) {
		task.Status = d.Status
		task.Rows = d.Rows
		task.Restarts = d.Restarts
		task.Polls = d.Polls
		task.Error = d.Error
	})
	if t.cache != nil && task != nil {
		t.cacheErr(ctx, d.Name, "put", t.cache.PutDatasetTask(ctx, *task))
	}
	t.setHistory(ctx, d.Name)
}

// observer feeds orchestrator events of dataset into the cache.
func (t *tracker) observer(dataset string) export.Observer {
	return export.ObserverFunc(func(ctx context.Context, e export.Event) {
		switch e.Kind {
		case export.EventSubmitted:
			task := t.update(dataset, func(task *model.DatasetTask) {
				task.Handle = string(e.Handle)
				task.Restarts = e.Restarts
			})
			if t.cache != nil && task != nil {
				t.cacheErr(ctx, dataset, "put", t.cache.PutDatasetTask(ctx, *task))
			}
		case export.EventPolled:
			snap := e.Snapshot
			t.update(dataset, func(task *model.DatasetTask) {
				task.ExportState = snap.RawState
				task.Progress = snap.Progress
				task.Restarts = e.Restarts
				task.Polls = e.Polls
				if snap.DownloadLocation != "" {
					task.SourceURL = snap.DownloadLocation
				}
			})
			if t.cache == nil {
				return
			}
			t.cacheErr(ctx, dataset, "progress",
				t.cache.SetExportProgress(ctx, t.taskID(dataset), snap.RawState, snap.Progress, e.Restarts, e.Polls))
			if snap.DownloadLocation != "" {
				t.cacheErr(ctx, dataset, "url", t.cache.SetExportURL(ctx, t.taskID(dataset), snap.DownloadLocation))
			}
		}
	})
}

// task returns a copy of the tracked state of dataset.
func (t *tracker) task(dataset string) (model.DatasetTask, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[dataset]
	if !ok {
		return model.DatasetTask{}, false
	}
	return *task, true
}

func (t *tracker) update(dataset string, fn func(*model.DatasetTask)) *model.DatasetTask {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[dataset]
	if !ok {
		return nil
	}
	fn(task)
	task.UpdatedAt = t.now().UnixMilli()
	cp := *task
	return &cp
}

func (t *tracker) setHistory(ctx context.Context, dataset string) {
	task, ok := t.task(dataset)
	if t.history == nil || !ok || task.HistoryID == 0 {
		return
	}
	var errText *string
	if task.Error != "" {
		errText = &task.Error
	}
	err := t.history.UpdateExportStatus(ctx, &model.UpdateExportStatus{
		ID:       task.HistoryID,
		Status:   task.Status,
		Rows:     int64(task.Rows),
		Restarts: int32(task.Restarts),
		Error:    errText,
	})
	if err != nil {
		slog.WarnContext(ctx, "vision_report.history.update_failed",
			slog.String("dataset", dataset), slog.String("error", err.Error()))
	}
}

func (t *tracker) taskID(dataset string) string { return cache.TaskID(t.runID, dataset) }

func (t *tracker) cacheErr(ctx context.Context, dataset, op string, err error) {
	if err != nil {
		slog.WarnContext(ctx, "vision_report.cache.write_failed",
			slog.String("dataset", dataset), slog.String("op", op), slog.String("error", err.Error()))
	}
}
