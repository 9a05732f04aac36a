package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	conf "github.com/ketvonryn/Trend-Micro-Vision-One---mensal/config"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/app"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/domain/model"
	logging "github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/otel"

	// ------------ logging ------------ //
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	// -------------------- plugin(s) -------------------- //
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/stdout"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/metric/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/metric/stdout"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/trace/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/trace/stdout"
)

// Run executes the report job and returns the process exit code.
func Run() int {

	// Load configuration
	config, appErr := conf.LoadConfig()
	if appErr != nil {
		slog.Error("vision_report.main.configuration_error", slog.String("error", appErr.Error()))
		return 2
	}

	// slog + OTEL logging
	hostname, _ := os.Hostname()
	service := resource.NewSchemaless(
		semconv.ServiceName(model.AppServiceName),
		semconv.ServiceVersion(model.CurrentVersion),
		semconv.ServiceInstanceID(hostname),
		semconv.ServiceNamespace(model.NamespaceName),
	)
	shutdown := logging.Setup(service, config.Log)

	// Initialize the application
	application, appErr := app.New(config, shutdown)
	if appErr != nil {
		slog.Error("vision_report.main.application_initialization_error", slog.String("error", appErr.Error()))
		_ = shutdown(context.Background())
		return 1
	}
	defer application.Stop()

	// Cancel in-flight exports on SIGINT/SIGTERM
	ctx, stop := initSignals()
	defer stop()

	slog.Debug("vision_report.main.configuration_loaded",
		slog.String("vision_url", config.Vision.Url),
		slog.String("client", config.Report.Client),
		slog.String("folder", config.Report.Folder),
		slog.String("schedule", config.Report.Schedule),
		slog.Bool("redis", config.Redis.Enabled()),
		slog.Bool("database", config.Database.Enabled()),
		slog.Bool("publish", config.Publish.Enabled()),
	)

	slog.Info("vision_report.main.starting_application")
	if err := application.Start(ctx); err != nil {
		slog.Error("vision_report.main.application_start_error", slog.String("error", err.Error()))
		return 1
	}
	slog.Info("vision_report.main.application_finished")
	return 0
}

func initSignals() (context.Context, context.CancelFunc) {
	slog.Info("vision_report.main.initializing_stop_signals", slog.String("main", "initializing_stop_signals"))
	ctx, cancel := context.WithCancel(context.Background())
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case s := <-sigch:
			slog.Info("vision_report.main.received_kill_signal",
				slog.String("signal", s.String()),
				slog.String("status", "cancelling in-flight exports"),
			)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigch)
		cancel()
	}
}
