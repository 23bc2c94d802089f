package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/betomay/papertoplan/internal/bootstrap"
	"github.com/betomay/papertoplan/internal/config"
	"github.com/betomay/papertoplan/internal/core/domain"
	"github.com/betomay/papertoplan/internal/observability/logging"
	"github.com/betomay/papertoplan/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logging.Setup(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	taskTimeout := time.Duration(cfg.WorkerTaskTimeout) * time.Second

	slog.Info("worker subscribed", "subject", cfg.NATSTaskSubject)
	err = app.Queue.SubscribeProcessTasks(ctx, func(handlerCtx context.Context, task domain.ProcessTask) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, taskTimeout)
		defer cancel()

		// Regeneration tasks reuse old records, so creation time says
		// nothing about queue delay for them.
		if !task.TextOnly {
			if rec, err := app.Records.GetByID(processCtx, task.RecordID); err == nil {
				workerMetrics.ObserveQueueLag(serviceName, time.Since(rec.CreatedAt))
			}
		}

		workerMetrics.StartTask()
		start := time.Now()
		err := app.ProcessUC.Process(processCtx, task)
		workerMetrics.FinishTask(serviceName, task.TextOnly, time.Since(start), err)
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
