package ports

import (
	"context"
	"io"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
)

// TaskRegistry holds the mutable state of conversion tasks. Get returns a
// snapshot copy; Update runs fn under the registry's exclusive lock.
type TaskRegistry interface {
	Create(task *domain.Task) error
	Get(id string) (domain.Task, error)
	Update(id string, fn func(*domain.Task)) error
}

// DocumentRepository persists uploaded document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, fileID string) (*domain.Document, error)
	Delete(ctx context.Context, fileID string) error
	List(ctx context.Context) ([]domain.Document, error)
}

// ObjectStorage stores source documents and conversion outputs.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// PageDocument is an open source document ready for page-by-page
// extraction.
type PageDocument interface {
	PageCount() int
	Page(ctx context.Context, number int) (domain.PageContent, error)
	Close() error
}

// PageSource opens a stored document for extraction.
type PageSource interface {
	Open(ctx context.Context, doc *domain.Document) (PageDocument, error)
}

// ImageOCR recognizes text in an image region.
type ImageOCR interface {
	Recognize(ctx context.Context, region domain.ImageRegion) (string, error)
}

// TextEvaluator runs a prompt against the external text-evaluation
// capability and returns its raw JSON response.
type TextEvaluator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// EventPublisher announces terminal task transitions.
type EventPublisher interface {
	PublishConversionFinished(ctx context.Context, event domain.ConversionEvent) error
}

// EventSubscriber consumes terminal task transitions.
type EventSubscriber interface {
	SubscribeConversionFinished(ctx context.Context, handler func(context.Context, domain.ConversionEvent) error) error
}

// Chunker splits markdown into bounded excerpt candidates.
type Chunker interface {
	Split(text string) []string
}

// ChecklistRepository persists checklist items.
type ChecklistRepository interface {
	Create(ctx context.Context, item *domain.ChecklistItem) error
	GetByID(ctx context.Context, id string) (*domain.ChecklistItem, error)
	List(ctx context.Context) ([]domain.ChecklistItem, error)
	Delete(ctx context.Context, id string) error
}

// CheckResultRepository persists per-document evaluation outcomes.
type CheckResultRepository interface {
	SaveAll(ctx context.Context, fileID string, results []domain.CheckResult) error
	ListByFile(ctx context.Context, fileID string) ([]domain.CheckResult, error)
}

// ReportExporter writes a review report for a document and returns the
// path of the produced file.
type ReportExporter interface {
	Export(ctx context.Context, fileID string, results []domain.CheckResult) (string, error)
}
