package ports

import (
	"context"
	"io"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (*domain.Document, error)
}

// TaskService is the contract the web layer uses to drive conversions.
type TaskService interface {
	Submit(ctx context.Context, fileID string) (string, error)
	Status(ctx context.Context, taskID string) (domain.Task, error)
	Result(ctx context.Context, taskID string) (*domain.ConversionResult, error)
	Stop(ctx context.Context, taskID string) error
}

// ChecklistService evaluates converted markdown against checklist items.
type ChecklistService interface {
	Evaluate(ctx context.Context, markdown string, item domain.ChecklistItem) (domain.CheckResult, error)
	EvaluateAll(ctx context.Context, markdown string, items []domain.ChecklistItem) []domain.CheckResult
}
