package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
	"github.com/hzwangyq/bidcheck/internal/core/ports"
)

type pageDocFake struct {
	pages   []domain.PageContent
	pageErr map[int]error
	closed  bool
}

func (f *pageDocFake) PageCount() int { return len(f.pages) }

func (f *pageDocFake) Page(_ context.Context, number int) (domain.PageContent, error) {
	if err := f.pageErr[number]; err != nil {
		return domain.PageContent{}, err
	}
	return f.pages[number-1], nil
}

func (f *pageDocFake) Close() error {
	f.closed = true
	return nil
}

type pageSourceFake struct {
	doc     *pageDocFake
	openErr error
}

func (f *pageSourceFake) Open(context.Context, *domain.Document) (ports.PageDocument, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.doc, nil
}

type ocrFake struct {
	texts map[int]string
	errs  map[int]error
}

func (f *ocrFake) Recognize(_ context.Context, region domain.ImageRegion) (string, error) {
	if err := f.errs[region.Index]; err != nil {
		return "", err
	}
	return f.texts[region.Index], nil
}

type storageFake struct {
	mu      sync.Mutex
	saved   map[string][]byte
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{saved: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[key] = content
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.saved[key]
	if !ok {
		return nil, fmt.Errorf("key %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, key)
	return nil
}

func textPage(lines ...string) domain.PageContent {
	blocks := make([]domain.TextBlock, 0, len(lines))
	for i, line := range lines {
		blocks = append(blocks, domain.TextBlock{Text: line, Y: float64(i * 20), FontSize: 10})
	}
	return domain.PageContent{Blocks: blocks}
}

func newTestPipeline(source *pageSourceFake, ocr *ocrFake, storage *storageFake) *ConversionPipeline {
	if ocr == nil {
		ocr = &ocrFake{}
	}
	return NewConversionPipeline(source, ocr, storage, NewPageRenderer(0, 0), nil)
}

func TestRunProducesPagesInOrder(t *testing.T) {
	source := &pageSourceFake{doc: &pageDocFake{pages: []domain.PageContent{
		textPage("第一页内容"),
		textPage("第二页内容"),
		textPage("第三页内容"),
	}}}
	storage := newStorageFake()
	pipeline := newTestPipeline(source, nil, storage)

	var progress []int
	result, err := pipeline.Run(context.Background(), pdfDoc(), func(percent int, _ string) {
		progress = append(progress, percent)
	})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	for i, marker := range []string{"## 第 1 页", "## 第 2 页", "## 第 3 页"} {
		idx := strings.Index(result.MarkdownContent, marker)
		if idx < 0 {
			t.Fatalf("missing page marker %q", marker)
		}
		if i > 0 {
			prev := strings.Index(result.MarkdownContent, fmt.Sprintf("## 第 %d 页", i))
			if prev > idx {
				t.Fatalf("page %d rendered after page %d", i, i+1)
			}
		}
	}

	if result.PagesProcessed != 3 {
		t.Fatalf("expected 3 pages processed, got %d", result.PagesProcessed)
	}
	wantProgress := []int{33, 67, 100}
	if len(progress) != len(wantProgress) {
		t.Fatalf("expected %d progress reports, got %v", len(wantProgress), progress)
	}
	for i, want := range wantProgress {
		if progress[i] != want {
			t.Fatalf("progress[%d] = %d, want %d", i, progress[i], want)
		}
	}

	if !source.doc.closed {
		t.Fatal("source document must be closed")
	}
	if len(storage.saved) != 1 {
		t.Fatalf("expected 1 saved output, got %d", len(storage.saved))
	}
	for key := range storage.saved {
		if !strings.Contains(key, "_converted_") || !strings.HasSuffix(key, ".md") {
			t.Fatalf("unexpected output key %q", key)
		}
	}
}

func TestRunCountsTables(t *testing.T) {
	page := textPage("说明")
	page.Tables = []domain.Table{
		{Y: 100, Rows: [][]string{{"名称", "数量"}, {"设备", "2"}}},
		{Y: 200, Rows: [][]string{{"a"}}},
	}
	source := &pageSourceFake{doc: &pageDocFake{pages: []domain.PageContent{page}}}
	pipeline := newTestPipeline(source, nil, newStorageFake())

	result, err := pipeline.Run(context.Background(), pdfDoc(), nil)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if result.TablesFound != 2 {
		t.Fatalf("expected 2 tables, got %d", result.TablesFound)
	}
	if !strings.Contains(result.MarkdownContent, "**表格:**") {
		t.Fatal("missing table preamble")
	}
}

func TestRunOCRFailureRendersInline(t *testing.T) {
	page := textPage("正文")
	page.Images = []domain.ImageRegion{
		{Index: 0, Y: 50, Data: []byte{1}},
		{Index: 1, Y: 60, Data: []byte{2}},
	}
	source := &pageSourceFake{doc: &pageDocFake{pages: []domain.PageContent{page}}}
	ocr := &ocrFake{
		texts: map[int]string{0: "印章内容"},
		errs:  map[int]error{1: errors.New("decode failure")},
	}
	pipeline := newTestPipeline(source, ocr, newStorageFake())

	result, err := pipeline.Run(context.Background(), pdfDoc(), nil)
	if err != nil {
		t.Fatalf("a broken image must not fail the task: %v", err)
	}
	if !strings.Contains(result.MarkdownContent, "印章内容") {
		t.Fatal("missing recognized text")
	}
	if !strings.Contains(result.MarkdownContent, "处理失败") {
		t.Fatal("missing inline failure note for the broken image")
	}
}

func TestRunCancelledAtPageBoundary(t *testing.T) {
	source := &pageSourceFake{doc: &pageDocFake{pages: []domain.PageContent{
		textPage("p1"), textPage("p2"), textPage("p3"),
	}}}
	storage := newStorageFake()
	pipeline := newTestPipeline(source, nil, storage)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := pipeline.Run(ctx, pdfDoc(), func(percent int, _ string) {
		if percent >= 33 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(storage.saved) != 0 {
		t.Fatal("cancelled run must not save output")
	}
}

func TestRunPageFailureWrapsPageNumber(t *testing.T) {
	source := &pageSourceFake{doc: &pageDocFake{
		pages:   []domain.PageContent{textPage("p1"), textPage("p2")},
		pageErr: map[int]error{2: errors.New("malformed stream")},
	}}
	pipeline := newTestPipeline(source, nil, newStorageFake())

	_, err := pipeline.Run(context.Background(), pdfDoc(), nil)
	if !domain.IsKind(err, domain.ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
	if !strings.Contains(err.Error(), "page 2") {
		t.Fatalf("error must name the failing page: %v", err)
	}
}

func TestRunEmptyDocument(t *testing.T) {
	source := &pageSourceFake{doc: &pageDocFake{}}
	pipeline := newTestPipeline(source, nil, newStorageFake())

	_, err := pipeline.Run(context.Background(), pdfDoc(), nil)
	if !domain.IsKind(err, domain.ErrConversion) {
		t.Fatalf("expected ErrConversion for empty document, got %v", err)
	}
}
