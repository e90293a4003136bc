package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
	"github.com/hzwangyq/bidcheck/internal/core/ports"
)

// PipelineRunner is the engine's view of the conversion pipeline.
type PipelineRunner interface {
	Run(ctx context.Context, doc *domain.Document, onProgress ProgressFunc) (*domain.ConversionResult, error)
}

// ConversionObserver receives task lifecycle notifications, e.g. metrics.
type ConversionObserver interface {
	TaskStarted()
	TaskFinished(status domain.TaskStatus, duration time.Duration, pages int)
}

type noopObserver struct{}

func (noopObserver) TaskStarted()                                       {}
func (noopObserver) TaskFinished(domain.TaskStatus, time.Duration, int) {}

// ConversionTaskEngine owns the lifecycle of conversion tasks: submit,
// poll, fetch result, stop. Each submitted task runs on a bounded worker
// pool; polling reads registry snapshots and never blocks on pipeline work.
type ConversionTaskEngine struct {
	registry ports.TaskRegistry
	docs     ports.DocumentRepository
	pipeline PipelineRunner
	events   ports.EventPublisher
	observer ConversionObserver
	logger   *slog.Logger

	rootCtx  context.Context
	rootStop context.CancelFunc
	sem      chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewConversionTaskEngine(
	registry ports.TaskRegistry,
	docs ports.DocumentRepository,
	pipeline PipelineRunner,
	events ports.EventPublisher,
	observer ConversionObserver,
	logger *slog.Logger,
	workerPoolSize int,
) *ConversionTaskEngine {
	if workerPoolSize <= 0 {
		workerPoolSize = 4
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	rootCtx, rootStop := context.WithCancel(context.Background())
	return &ConversionTaskEngine{
		registry: registry,
		docs:     docs,
		pipeline: pipeline,
		events:   events,
		observer: observer,
		logger:   logger,
		rootCtx:  rootCtx,
		rootStop: rootStop,
		sem:      make(chan struct{}, workerPoolSize),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Submit validates the referenced document, registers a pending task and
// schedules the conversion in the background. Returns immediately.
func (e *ConversionTaskEngine) Submit(ctx context.Context, fileID string) (string, error) {
	doc, err := e.docs.GetByID(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("fetch document: %w", err)
	}
	if !isPDF(doc) {
		return "", domain.WrapError(domain.ErrInvalidInput, "submit conversion",
			fmt.Errorf("unsupported file type for %s: %s", doc.Filename, doc.ContentType))
	}

	task := &domain.Task{
		ID:     uuid.NewString(),
		FileID: fileID,
		Status: domain.TaskPending,
	}
	if err := e.registry.Create(task); err != nil {
		return "", fmt.Errorf("register task: %w", err)
	}

	runCtx, cancel := context.WithCancel(e.rootCtx)
	e.mu.Lock()
	e.cancels[task.ID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(runCtx, task.ID, doc)

	e.logger.Info("task submitted", "task_id", task.ID, "file_id", fileID)
	return task.ID, nil
}

// Status returns an immutable snapshot of the task.
func (e *ConversionTaskEngine) Status(_ context.Context, taskID string) (domain.Task, error) {
	return e.registry.Get(taskID)
}

// Result returns the conversion result of a completed task. A failed task
// surfaces its stored error; anything non-terminal (and stopped tasks,
// which by contract have no result) yields ErrNotReady.
func (e *ConversionTaskEngine) Result(_ context.Context, taskID string) (*domain.ConversionResult, error) {
	task, err := e.registry.Get(taskID)
	if err != nil {
		return nil, err
	}
	switch task.Status {
	case domain.TaskCompleted:
		return task.Result, nil
	case domain.TaskFailed:
		return nil, domain.WrapError(domain.ErrConversion, "conversion task", errors.New(task.Error))
	default:
		return nil, domain.WrapError(domain.ErrNotReady, "fetch result",
			fmt.Errorf("task %s is %s", taskID, task.Status))
	}
}

// Stop requests cooperative cancellation. The running pipeline notices at
// the next page boundary; the task keeps its last reported progress.
func (e *ConversionTaskEngine) Stop(_ context.Context, taskID string) error {
	task, err := e.registry.Get(taskID)
	if err != nil {
		return err
	}
	if task.Status.Terminal() {
		return domain.WrapError(domain.ErrInvalidState, "stop task",
			fmt.Errorf("task %s already %s", taskID, task.Status))
	}

	e.mu.Lock()
	cancel := e.cancels[taskID]
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Close cancels all in-flight tasks and waits for their workers to settle.
func (e *ConversionTaskEngine) Close() {
	e.rootStop()
	e.wg.Wait()
}

func (e *ConversionTaskEngine) run(ctx context.Context, taskID string, doc *domain.Document) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		if cancel, ok := e.cancels[taskID]; ok {
			cancel()
			delete(e.cancels, taskID)
		}
		e.mu.Unlock()
	}()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		e.finish(taskID, doc, nil, ctx.Err())
		return
	}
	defer func() { <-e.sem }()

	start := time.Now().UTC()
	_ = e.registry.Update(taskID, func(t *domain.Task) {
		if t.Status.Terminal() {
			return
		}
		t.Status = domain.TaskProcessing
		t.StartTime = &start
	})
	e.observer.TaskStarted()

	result, err := e.pipeline.Run(ctx, doc, func(percent int, note string) {
		e.reportProgress(taskID, percent, note)
	})
	e.finish(taskID, doc, result, err)
}

// reportProgress is the pipeline's callback. Percent is capped at 99 until
// completion and never decreases; later lower values are ignored.
func (e *ConversionTaskEngine) reportProgress(taskID string, percent int, note string) {
	if percent < 0 {
		return
	}
	if percent > 99 {
		percent = 99
	}
	_ = e.registry.Update(taskID, func(t *domain.Task) {
		if t.Status.Terminal() || percent <= t.Progress {
			return
		}
		t.Progress = percent
	})
	e.logger.Debug("task progress", "task_id", taskID, "percent", percent, "note", note)
}

func (e *ConversionTaskEngine) finish(taskID string, doc *domain.Document, result *domain.ConversionResult, runErr error) {
	end := time.Now().UTC()
	var final domain.TaskStatus
	_ = e.registry.Update(taskID, func(t *domain.Task) {
		if t.Status.Terminal() {
			final = t.Status
			return
		}
		switch {
		case runErr == nil:
			t.Status = domain.TaskCompleted
			t.Progress = 100
			t.Result = result
		case errors.Is(runErr, context.Canceled):
			t.Status = domain.TaskStopped
		default:
			t.Status = domain.TaskFailed
			t.Error = runErr.Error()
		}
		t.EndTime = &end
		final = t.Status
	})

	task, err := e.registry.Get(taskID)
	if err != nil {
		return
	}

	var duration time.Duration
	if task.StartTime != nil {
		duration = end.Sub(*task.StartTime)
	}
	pages := 0
	if task.Result != nil {
		pages = task.Result.PagesProcessed
	}
	e.observer.TaskFinished(final, duration, pages)

	switch final {
	case domain.TaskFailed:
		e.logger.Error("task failed", "task_id", taskID, "file_id", doc.FileID, "error", task.Error)
	default:
		e.logger.Info("task finished", "task_id", taskID, "file_id", doc.FileID, "status", final)
	}

	if e.events == nil {
		return
	}
	event := domain.ConversionEvent{TaskID: taskID, FileID: doc.FileID, Status: final}
	if task.Result != nil {
		event.OutputPath = task.Result.OutputPath
	}
	publishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.events.PublishConversionFinished(publishCtx, event); err != nil {
		e.logger.Warn("publish conversion event", "task_id", taskID, "error", err)
	}
}

func isPDF(doc *domain.Document) bool {
	if strings.EqualFold(doc.ContentType, "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(doc.Filename), ".pdf")
}
