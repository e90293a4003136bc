package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
	"github.com/hzwangyq/bidcheck/internal/core/ports"
)

// ProgressFunc receives conversion progress as a 0-100 percentage and a
// short human-readable note.
type ProgressFunc func(percent int, note string)

// ConversionPipeline turns one stored PDF into Markdown: extract each page,
// OCR its image regions, render a fragment, aggregate in page order.
type ConversionPipeline struct {
	source  ports.PageSource
	ocr     ports.ImageOCR
	storage ports.ObjectStorage
	render  *PageRenderer
	logger  *slog.Logger
}

func NewConversionPipeline(
	source ports.PageSource,
	ocr ports.ImageOCR,
	storage ports.ObjectStorage,
	render *PageRenderer,
	logger *slog.Logger,
) *ConversionPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversionPipeline{
		source:  source,
		ocr:     ocr,
		storage: storage,
		render:  render,
		logger:  logger,
	}
}

// Run converts the document. Cancellation is cooperative and checked at
// page boundaries only; a cancelled run returns ctx.Err() with no result.
func (p *ConversionPipeline) Run(ctx context.Context, doc *domain.Document, onProgress ProgressFunc) (*domain.ConversionResult, error) {
	start := time.Now()

	pages, err := p.source.Open(ctx, doc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConversion, "open source document", err)
	}
	defer pages.Close()

	total := pages.PageCount()
	if total == 0 {
		return nil, domain.WrapError(domain.ErrConversion, "open source document", fmt.Errorf("document %s has no pages", doc.FileID))
	}

	fragments := make([]string, 0, total)
	tablesFound := 0
	for number := 1; number <= total; number++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := pages.Page(ctx, number)
		if err != nil {
			return nil, domain.WrapError(domain.ErrConversion, fmt.Sprintf("page %d", number), err)
		}

		ocrFragments := p.recognizeImages(ctx, number, content.Images)
		fragments = append(fragments, p.render.RenderPage(number, content, ocrFragments))
		tablesFound += len(content.Tables)

		percent := int(math.Round(float64(number) / float64(total) * 100))
		if onProgress != nil {
			onProgress(percent, fmt.Sprintf("page %d/%d", number, total))
		}
	}

	markdown := strings.Join(fragments, "\n")
	outputKey := outputKeyFor(doc)
	if err := p.storage.Save(ctx, outputKey, strings.NewReader(markdown)); err != nil {
		return nil, domain.WrapError(domain.ErrConversion, "save markdown output", err)
	}

	result := &domain.ConversionResult{
		FileID:          doc.FileID,
		MarkdownContent: markdown,
		OutputPath:      outputKey,
		ProcessingTime:  time.Since(start).Seconds(),
		PagesProcessed:  total,
		TablesFound:     tablesFound,
	}
	p.logger.Info("conversion finished",
		"file_id", doc.FileID,
		"pages", result.PagesProcessed,
		"tables", result.TablesFound,
		"duration_s", result.ProcessingTime,
	)
	return result, nil
}

// recognizeImages never fails the page: a broken image becomes an inline
// failure note in the rendered fragment.
func (p *ConversionPipeline) recognizeImages(ctx context.Context, pageNum int, images []domain.ImageRegion) []OCRFragment {
	if len(images) == 0 {
		return nil
	}
	out := make([]OCRFragment, 0, len(images))
	for _, region := range images {
		text, err := p.ocr.Recognize(ctx, region)
		if err != nil {
			p.logger.Warn("ocr failed",
				"page", pageNum,
				"image", region.Index,
				"error", err,
			)
		}
		out = append(out, OCRFragment{Region: region, Text: text, Err: err})
	}
	return out
}

func outputKeyFor(doc *domain.Document) string {
	stem := strings.TrimSuffix(doc.StoragePath, filepath.Ext(doc.StoragePath))
	return fmt.Sprintf("%s_converted_%d.md", stem, time.Now().Unix())
}
