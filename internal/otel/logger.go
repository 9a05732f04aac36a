package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	slogutil "github.com/webitel/webitel-go-kit/infra/otel/log/bridge/slog"
	otelsdk "github.com/webitel/webitel-go-kit/infra/otel/sdk"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/sdk/resource"
	"gopkg.in/natefinch/lumberjack.v2"

	conf "github.com/ketvonryn/Trend-Micro-Vision-One---mensal/config"

	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/stdout"
)

// Setup initializes OpenTelemetry with slog logging and returns a shutdown function.
// When cfg asks for it, every record is also written to a per-run file.
func Setup(service *resource.Resource, cfg *conf.LogConfig) func(context.Context) error {
	// Retrieve log level from the environment, default to info
	var verbose slog.LevelVar
	verbose.Set(slog.LevelInfo)
	if input := os.Getenv("OTEL_LOG_LEVEL"); input != "" {
		_ = verbose.UnmarshalText([]byte(input))
	}

	var file *lumberjack.Logger
	if cfg != nil && cfg.File {
		file = NewFile(cfg.Dir, time.Now())
	}

	ctx := context.Background()
	shutdown, err := otelsdk.Configure(
		ctx,
		otelsdk.WithResource(service),
		otelsdk.WithLogBridge(func() {
			var handler slog.Handler = slogutil.WithLevel(&verbose, otelslog.NewHandler("slog"))
			if file != nil {
				handler = Fanout(handler, slog.NewTextHandler(file, &slog.HandlerOptions{Level: &verbose}))
			}
			slog.SetDefault(slog.New(handler))
		}),
	)

	log := slog.Default()
	if err != nil {
		log.ErrorContext(ctx, "OpenTelemetry setup failed", "error", err)
		os.Exit(1)
	}

	log.InfoContext(ctx, "OpenTelemetry setup successful")
	if file != nil {
		log.InfoContext(ctx, "vision_report.log.file_opened", slog.String("path", file.Filename))
	}

	return func(ctx context.Context) error {
		err := shutdown(ctx)
		if file != nil {
			_ = file.Close()
		}
		return err
	}
}

// NewFile returns the rotating writer for a run started at t, named
// log_<yyyy-mm-dd_hh-mm-ss>.log inside dir.
func NewFile(dir string, t time.Time) *lumberjack.Logger {
	if dir == "" {
		dir = "logs"
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, "log_"+t.Format("2006-01-02_15-04-05")+".log"),
		MaxSize:    50, // megabytes
		MaxBackups: 3,
		MaxAge:     90, // days
	}
}
