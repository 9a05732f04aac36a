package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/decode"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/errors"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/sheet"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/store"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/util/pdf/maroto"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/visionone"
)

const (
	SheetComplianceSWP   = "Compliance SWP"
	SheetComplianceSEP   = "Compliance SEP"
	SheetIndices         = "Indices"
	SheetAlerts          = "Alertas WB"
	SheetInventory       = "endpoint inventory"
	SheetVulnerabilities = "vulnerabilidades"
)

// Sheets is the workbook layout, in order.
var Sheets = []string{
	SheetComplianceSWP,
	SheetComplianceSEP,
	SheetIndices,
	SheetAlerts,
	SheetInventory,
	SheetVulnerabilities,
}

// RefColumn is prepended to every appended table.
const RefColumn = "ano_mes_ref"

const (
	securityArchive = "*Security*Configuration*.zip"
	runLockTTL      = 6 * time.Hour
)

// localDataset is collected from archives on disk or a plain API listing.
type localDataset struct {
	name    string
	sheet   string
	collect func(ctx context.Context) (*model.Table, error)
}

// produced is a collected dataset waiting to be appended.
type produced struct {
	name    string
	sheet   string
	table   *model.Table
	elapsed time.Duration
	err     error
}

// RunReport builds the workbook for the previous month. A failing dataset
// is logged and recorded in the summary; it never stops the others.
func (app *App) RunReport(ctx context.Context) (*model.RunSummary, error) {
	rc := app.Config.Report
	started := app.clock.Now()
	ref := ReferenceMonth(started)
	month := ref.Format(RefLayout)
	runID := uuid.NewString()

	log := slog.With(slog.String("run_id", runID), slog.String("client", rc.Client), slog.String("month", month))
	log.InfoContext(ctx, "vision_report.run.started")

	release, err := app.lockRun(ctx, rc.Client+":"+ref.Format("2006-01"), runID)
	if err != nil {
		return nil, err
	}
	defer release()

	output := rc.Output
	if output == "" {
		output = "."
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		return nil, errors.New("create output directory", errors.WithCause(err), errors.WithID("app.report.output"))
	}
	wb, err := sheet.Create(filepath.Join(output, sheet.FileName(rc.Client, ref)), Sheets)
	if err != nil {
		return nil, errors.New("create workbook", errors.WithCause(err), errors.WithID("app.report.workbook"))
	}
	defer wb.Close()
	log.InfoContext(ctx, "vision_report.run.workbook_created", slog.String("path", wb.Path()))

	t := newTracker(app.Cache, app.history(), app.clock.Now, runID, rc.Client, month)
	locals := app.localDatasets(rc.Folder, started)
	jobs := exportJobs()
	for _, d := range locals {
		t.begin(ctx, d.name)
	}
	for _, j := range jobs {
		t.begin(ctx, j.dataset)
	}

	var results []produced
	for _, d := range locals {
		t.processing(ctx, d.name)
		begin := app.clock.Now()
		table, err := d.collect(ctx)
		results = append(results, produced{
			name:    d.name,
			sheet:   d.sheet,
			table:   table,
			elapsed: app.clock.Now().Sub(begin),
			err:     err,
		})
	}
	for _, o := range app.runExports(ctx, jobs, t) {
		p := produced{name: o.job.dataset, sheet: o.job.sheet, table: o.table, err: o.err}
		if o.result != nil {
			p.elapsed = o.result.Elapsed
		}
		results = append(results, p)
	}

	summary := &model.RunSummary{
		RunID:     runID,
		Client:    rc.Client,
		Month:     month,
		Workbook:  wb.Path(),
		StartedAt: started,
	}
	for _, p := range results {
		ds := app.appendDataset(ctx, wb, t, month, p)
		t.finish(ctx, ds)
		summary.Datasets = append(summary.Datasets, ds)
	}

	if err := wb.Save(); err != nil {
		return summary, errors.New("save workbook", errors.WithCause(err), errors.WithID("app.report.save"))
	}
	summary.FinishedAt = app.clock.Now()

	files := []string{wb.Path()}
	if pdf, err := writeSummary(summary); err != nil {
		log.ErrorContext(ctx, "vision_report.run.summary_failed", slog.String("error", err.Error()))
	} else {
		files = append(files, pdf)
	}
	app.publishFiles(ctx, files)

	log.InfoContext(ctx, "vision_report.run.finished",
		slog.Int("datasets", len(summary.Datasets)),
		slog.Int("failed", summary.Failed()),
		slog.Duration("elapsed", summary.FinishedAt.Sub(started)))

	if err := ctx.Err(); err != nil {
		return summary, errors.New("report run cancelled", errors.WithCause(err), errors.WithCode(errors.CodeCanceled))
	}
	return summary, nil
}

// localDatasets lists the sequential datasets in append order. The
// indices consume the archives the compliance sheets read.
func (app *App) localDatasets(folder string, now time.Time) []localDataset {
	from, to := AlertWindow(now)
	return []localDataset{
		{name: "compliance_swp", sheet: SheetComplianceSWP, collect: func(context.Context) (*model.Table, error) {
			return compliance(folder, decode.ProductServerWorkload)
		}},
		{name: "compliance_sep", sheet: SheetComplianceSEP, collect: func(context.Context) (*model.Table, error) {
			return compliance(folder, decode.ProductStandardEndpoint)
		}},
		{name: "indices", sheet: SheetIndices, collect: func(ctx context.Context) (*model.Table, error) {
			return collectIndices(ctx, folder), nil
		}},
		{name: "workbench_alerts", sheet: SheetAlerts, collect: func(ctx context.Context) (*model.Table, error) {
			return app.workbench(ctx, from, to)
		}},
	}
}

func exportJobs() []exportJob {
	return []exportJob{
		{dataset: "endpoint_inventory", sheet: SheetInventory, path: visionone.EndpointInventoryExport, decode: decode.Inventory},
		{dataset: "vulnerabilities", sheet: SheetVulnerabilities, path: visionone.VulnerableDevicesExport, decode: decode.Vulnerabilities},
	}
}

func compliance(folder, product string) (*model.Table, error) {
	path, err := decode.FindArchive(folder, securityArchive)
	if err != nil {
		return nil, err
	}
	return decode.Compliance(path, product)
}

// workbench keeps the alerts collected before a failed page.
func (app *App) workbench(ctx context.Context, from, to time.Time) (*model.Table, error) {
	items, err := app.vision.Alerts(ctx, from, to)
	if err != nil {
		var pe *visionone.PageError
		if !errors.As(err, &pe) || len(items) == 0 {
			return nil, err
		}
		slog.WarnContext(ctx, "vision_report.workbench.partial",
			slog.Int("items", len(items)), slog.String("error", err.Error()))
	}
	return decode.Alerts(items)
}

func (app *App) appendDataset(ctx context.Context, wb *sheet.Workbook, t *tracker, month string, p produced) model.DatasetSummary {
	ds := model.DatasetSummary{Name: p.name, Sheet: p.sheet, Elapsed: p.elapsed, Status: model.ExportStatusDone}
	if task, ok := t.task(p.name); ok {
		ds.Restarts = task.Restarts
		ds.Polls = task.Polls
	}

	err := p.err
	if err == nil {
		p.table.Prepend(RefColumn, month)
		ds.Rows, err = wb.Append(p.sheet, p.table)
	}
	if err != nil {
		ds.Status = model.ExportStatusFailed
		ds.Error = err.Error()
		slog.ErrorContext(ctx, "vision_report.dataset.failed",
			slog.String("dataset", p.name), slog.String("error", err.Error()))
		return ds
	}

	slog.InfoContext(ctx, "vision_report.dataset.appended",
		slog.String("dataset", p.name), slog.String("sheet", p.sheet), slog.Int("rows", ds.Rows))
	return ds
}

// lockRun takes the per-month run lock when a cache is configured.
func (app *App) lockRun(ctx context.Context, key, owner string) (func(), error) {
	if app.Cache == nil {
		return func() {}, nil
	}
	ok, err := app.Cache.AcquireRunLock(ctx, key, owner, runLockTTL)
	if err != nil {
		return nil, errors.New("acquire run lock", errors.WithCause(err), errors.WithCode(errors.CodeUnavailable))
	}
	if !ok {
		return nil, errors.New("report already running for "+key,
			errors.WithCode(errors.CodeAlreadyExists), errors.WithID("app.report.locked"))
	}
	return func() {
		if err := app.Cache.ReleaseRunLock(context.WithoutCancel(ctx), key, owner); err != nil {
			slog.WarnContext(ctx, "vision_report.run.unlock_failed", slog.String("error", err.Error()))
		}
	}, nil
}

func (app *App) history() store.HistoryStore {
	if app.Store == nil {
		return nil
	}
	return app.Store.History()
}

// writeSummary renders the run summary next to the workbook.
func writeSummary(s *model.RunSummary) (string, error) {
	data, err := maroto.GenerateSummary(s)
	if err != nil {
		return "", err
	}
	path := strings.TrimSuffix(s.Workbook, ".xlsx") + "_resumo.pdf"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (app *App) publishFiles(ctx context.Context, files []string) {
	if app.Publisher == nil {
		return
	}
	for _, f := range files {
		if _, err := app.Publisher.Upload(ctx, f); err != nil {
			slog.ErrorContext(ctx, "vision_report.publish.failed",
				slog.String("file", f), slog.String("error", err.Error()))
		}
	}
}
