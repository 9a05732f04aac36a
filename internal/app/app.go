package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"

	cfg "github.com/ketvonryn/Trend-Micro-Vision-One---mensal/config"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/cache"
	rediscache "github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/cache/redis"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/clock"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/errors"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/export"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/publish"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/store"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/store/postgres"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/transport"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/visionone"
)

// Uploader publishes a finished report file and returns where it went.
type Uploader interface {
	Upload(ctx context.Context, file string) (string, error)
}

type App struct {
	Config    *cfg.AppConfig
	shutdown  func(ctx context.Context) error
	Store     store.Store
	Cache     cache.Cache
	Publisher Uploader

	vision   *visionone.Client
	clock    clock.Clock
	observer export.Observer
}

// New creates a fully initialized App. Redis, Postgres and S3 are only
// wired when configured.
func New(config *cfg.AppConfig, shutdown func(ctx context.Context) error) (*App, error) {
	app := &App{
		Config:   config,
		shutdown: shutdown,
		clock:    clock.Real(),
	}

	if err := app.initVision(); err != nil {
		return nil, err
	}
	if err := app.initObserver(); err != nil {
		return nil, err
	}
	if err := app.initStore(); err != nil {
		return nil, err
	}
	if err := app.initRedis(); err != nil {
		return nil, err
	}
	if err := app.initPublisher(); err != nil {
		return nil, err
	}

	return app, nil
}

// --------- Private init methods ---------

func (app *App) initVision() error {
	ec := app.Config.Export
	opts := transport.DefaultOptions()
	if ec.RequestTimeout > 0 {
		opts.Timeout = ec.RequestTimeout
	}
	opts.RateLimit = ec.RateLimit
	if ec.RateBurst > 0 {
		opts.Burst = ec.RateBurst
	}

	client, err := visionone.New(app.Config.Vision.Url, app.Config.Vision.Token, transport.NewHTTP(opts))
	if err != nil {
		return errors.New("unable to create Vision One client", errors.WithCause(err), errors.WithCode(errors.CodeInvalidArgument))
	}
	app.vision = client
	return nil
}

func (app *App) initObserver() error {
	metrics, err := export.MetricsObserver(otel.Meter("vision_report/export"))
	if err != nil {
		return errors.New("unable to register export metrics", errors.WithCause(err))
	}
	app.observer = export.Observers(export.LogObserver(slog.Default()), metrics)
	return nil
}

func (app *App) initStore() error {
	if !app.Config.Database.Enabled() {
		slog.Info("vision_report.main.history_disabled")
		return nil
	}
	app.Store = postgres.New(app.Config.Database)
	return nil
}

func (app *App) initRedis() error {
	rc := app.Config.Redis
	if !rc.Enabled() {
		slog.Info("vision_report.main.cache_disabled")
		return nil
	}
	redisCache, err := rediscache.NewRedisCache(rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return errors.New("unable to initialize Redis", errors.WithCause(err), errors.WithCode(errors.CodeUnavailable))
	}
	app.Cache = redisCache
	return nil
}

func (app *App) initPublisher() error {
	if !app.Config.Publish.Enabled() {
		return nil
	}
	p, err := publish.New(context.Background(), app.Config.Publish)
	if err != nil {
		return errors.New("unable to initialize S3 publisher", errors.WithCause(err))
	}
	app.Publisher = p
	return nil
}

// Start opens the store and runs the report once, or on every tick of
// the configured schedule until ctx is done.
func (app *App) Start(ctx context.Context) error {
	if app.Store != nil {
		if err := app.Store.Open(ctx); err != nil {
			return errors.New("failed to open store", errors.WithCause(err))
		}
		if err := app.Store.History().EnsureSchema(ctx); err != nil {
			return errors.New("failed to prepare export history", errors.WithCause(err))
		}
	}

	if app.Config.Report.Schedule == "" {
		_, err := app.RunReport(ctx)
		return err
	}
	return app.schedule(ctx)
}

func (app *App) schedule(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(app.Config.Report.Schedule, func() {
		if _, err := app.RunReport(ctx); err != nil {
			slog.ErrorContext(ctx, "vision_report.schedule.run_failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return errors.New("invalid schedule", errors.WithCause(err), errors.WithCode(errors.CodeInvalidArgument))
	}

	c.Start()
	slog.InfoContext(ctx, "vision_report.schedule.started",
		slog.String("schedule", app.Config.Report.Schedule),
		slog.Time("next", c.Entries()[0].Next))

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("vision_report.schedule.stopped")
	return nil
}

// Stop releases every connection the App holds.
func (app *App) Stop() error {
	slog.Info("vision_report.main.stop_starting")

	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			slog.Error("store close error", "err", err)
		}
	}

	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			slog.Error("redis close error", "err", err)
		} else {
			slog.Info("redis connection closed")
		}
	}

	if app.shutdown != nil {
		if err := app.shutdown(context.Background()); err != nil {
			slog.Error("shutdown hook error", "err", err)
		}
	}

	slog.Info("vision_report.main.stop_complete")
	return nil
}
