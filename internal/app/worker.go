package app

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/export"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
)

// exportJob is one orchestrated dataset.
type exportJob struct {
	dataset string
	sheet   string
	path    string
	decode  func([]byte) (*model.Table, error)
}

type exportOutcome struct {
	job    exportJob
	table  *model.Table
	result *export.Result
	err    error
}

// workerCount bounds the configured number of export workers by the
// available CPU cores.
func workerCount(configured, jobs int) int {
	n := configured
	if n <= 0 {
		n = 2
	}
	if maxWorkers := runtime.NumCPU() * 2; n > maxWorkers {
		n = maxWorkers
	}
	if jobs > 0 && n > jobs {
		n = jobs
	}
	return n
}

// runExports runs jobs concurrently and returns their outcomes in job
// order. A failed job never cancels the others.
func (app *App) runExports(ctx context.Context, jobs []exportJob, t *tracker) []exportOutcome {
	out := make([]exportOutcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(workerCount(app.Config.Export.Workers, len(jobs)))
	slog.InfoContext(ctx, "vision_report.export.workers_started",
		slog.Int("jobs", len(jobs)), slog.Int("workers", workerCount(app.Config.Export.Workers, len(jobs))))

	for i, job := range jobs {
		g.Go(func() error {
			out[i] = app.runExport(ctx, job, t)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (app *App) runExport(ctx context.Context, job exportJob, t *tracker) exportOutcome {
	t.processing(ctx, job.dataset)

	orch := app.vision.Orchestrator(
		export.WithClock(app.clock),
		export.WithObserver(export.Observers(app.observer, t.observer(job.dataset))),
	)
	res, err := orch.Run(ctx, app.vision.ExportRequest(job.dataset, job.path, app.Config.Export.Policy))
	if err != nil {
		return exportOutcome{job: job, err: err}
	}

	table, err := job.decode(res.Data)
	return exportOutcome{job: job, table: table, result: res, err: err}
}
