package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hzwangyq/bidcheck/internal/bootstrap"
	"github.com/hzwangyq/bidcheck/internal/config"
	"github.com/hzwangyq/bidcheck/internal/core/domain"
	"github.com/hzwangyq/bidcheck/internal/observability/logging"
	"github.com/hzwangyq/bidcheck/internal/observability/metrics"
)

const serviceName = "bidcheck-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewReviewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeConversionFinished(ctx, func(handlerCtx context.Context, event domain.ConversionEvent) error {
		if event.Status != domain.TaskCompleted {
			logger.Info("skipping non-completed conversion", "task_id", event.TaskID, "status", event.Status)
			return nil
		}

		reviewCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
		defer cancel()

		workerMetrics.StartReview()
		start := time.Now()
		reviewErr := reviewDocument(reviewCtx, app, workerMetrics, logger, event)
		workerMetrics.FinishReview(serviceName, time.Since(start), reviewErr)
		return reviewErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func reviewDocument(
	ctx context.Context,
	app *bootstrap.App,
	workerMetrics *metrics.ReviewWorkerMetrics,
	logger *slog.Logger,
	event domain.ConversionEvent,
) error {
	items, err := app.Checklist.List(ctx)
	if err != nil {
		return fmt.Errorf("list checklist: %w", err)
	}
	if len(items) == 0 {
		logger.Warn("checklist is empty, skipping review", "file_id", event.FileID)
		return nil
	}

	markdown, err := readMarkdown(ctx, app, event.OutputPath)
	if err != nil {
		return fmt.Errorf("read converted markdown: %w", err)
	}

	results := app.Evaluator.EvaluateAll(ctx, markdown, items)
	for _, res := range results {
		workerMetrics.RecordVerdict(serviceName, string(res.Verdict))
	}

	if err := app.Results.SaveAll(ctx, event.FileID, results); err != nil {
		return fmt.Errorf("persist check results: %w", err)
	}

	reportKey, err := app.Reporter.Export(ctx, event.FileID, results)
	if err != nil {
		return fmt.Errorf("export review report: %w", err)
	}

	logger.Info("document reviewed",
		"task_id", event.TaskID,
		"file_id", event.FileID,
		"items", len(items),
		"report", reportKey,
	)
	return nil
}

func readMarkdown(ctx context.Context, app *bootstrap.App, key string) (string, error) {
	rc, err := app.Storage.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
