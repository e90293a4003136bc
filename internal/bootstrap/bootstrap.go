package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hzwangyq/bidcheck/internal/config"
	"github.com/hzwangyq/bidcheck/internal/core/ports"
	"github.com/hzwangyq/bidcheck/internal/core/usecase"
	"github.com/hzwangyq/bidcheck/internal/infrastructure/checklist/yamlfile"
	"github.com/hzwangyq/bidcheck/internal/infrastructure/chunking"
	"github.com/hzwangyq/bidcheck/internal/infrastructure/llm/ollama"
	"github.com/hzwangyq/bidcheck/internal/infrastructure/ocr/paddle"
	"github.com/hzwangyq/bidcheck/internal/infrastructure/pdfsource/ledong"
	"github.com/hzwangyq/bidcheck/internal/infrastructure/queue/nats"
	"github.com/hzwangyq/bidcheck/internal/infrastructure/report/excel"
	"github.com/hzwangyq/bidcheck/internal/infrastructure/repository/postgres"
	"github.com/hzwangyq/bidcheck/internal/infrastructure/resilience"
	"github.com/hzwangyq/bidcheck/internal/infrastructure/storage/localfs"
	"github.com/hzwangyq/bidcheck/internal/infrastructure/taskstore"
)

type App struct {
	Config config.Config

	Queue     *nats.Queue
	Docs      ports.DocumentRepository
	Storage   ports.ObjectStorage
	Checklist ports.ChecklistRepository
	Results   ports.CheckResultRepository
	Reporter  ports.ReportExporter

	UploadUC  ports.DocumentIngestor
	Engine    *usecase.ConversionTaskEngine
	Evaluator ports.ChecklistService

	closeFn func()
}

// Options carries the pieces that differ between the api and worker
// binaries.
type Options struct {
	Logger   *slog.Logger
	Observer usecase.ConversionObserver
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	docs := postgres.NewDocumentRepository(db)
	if err := docs.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	checklistRepo := postgres.NewChecklistRepository(db)
	resultsRepo := postgres.NewCheckResultRepository(db)

	seeded, err := yamlfile.Seed(ctx, checklistRepo, cfg.ChecklistSeedPath)
	if err != nil {
		return nil, fmt.Errorf("seed checklist: %w", err)
	}
	if seeded > 0 {
		logger.Info("checklist seeded", "items", seeded, "path", cfg.ChecklistSeedPath)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	evalPolicy := resilience.DefaultPolicy()
	evalPolicy.MaxAttempts = cfg.EvalRetryMaxAttempts
	evalPolicy.InitialBackoff = cfg.EvalRetryBackoff

	ocrClient := paddle.New(cfg.OCRURL, cfg.OCRRateLimit, resilience.NewExecutor(resilience.DefaultPolicy()))
	llmClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, resilience.NewExecutor(evalPolicy))

	source := ledong.New(storage)
	renderer := usecase.NewPageRenderer(cfg.ParagraphGap, cfg.HeadingFontSize)
	pipeline := usecase.NewConversionPipeline(source, ocrClient, storage, renderer, logger)

	engine := usecase.NewConversionTaskEngine(
		taskstore.NewMemoryRegistry(),
		docs,
		pipeline,
		queue,
		opts.Observer,
		logger,
		cfg.WorkerPoolSize,
	)

	chunker := chunking.NewSplitter(cfg.ChunkSize)
	evaluator := usecase.NewChecklistEvaluator(llmClient, chunker, cfg.ExcerptBudget, logger)

	uploadUC := usecase.NewUploadDocumentUseCase(docs, storage)

	return &App{
		Config: cfg,

		Queue:     queue,
		Docs:      docs,
		Storage:   storage,
		Checklist: checklistRepo,
		Results:   resultsRepo,
		Reporter:  excel.NewExporter(storage),

		UploadUC:  uploadUC,
		Engine:    engine,
		Evaluator: evaluator,

		closeFn: func() {
			engine.Close()
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
