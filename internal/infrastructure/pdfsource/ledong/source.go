package ledong

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	pdfreader "github.com/ledongthuc/pdf"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
	"github.com/hzwangyq/bidcheck/internal/core/ports"
)

const defaultPageHeight = 842 // A4 in points

// Source opens stored PDFs for page-by-page extraction. The backing
// library exposes positioned text runs only; image regions and tables
// come from richer extraction backends.
type Source struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *Source {
	return &Source{storage: storage}
}

func (s *Source) Open(ctx context.Context, doc *domain.Document) (ports.PageDocument, error) {
	rc, err := s.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open stored document: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read stored document: %w", err)
	}

	reader, err := pdfreader.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	return &document{reader: reader}, nil
}

type document struct {
	reader *pdfreader.Reader
}

func (d *document) PageCount() int {
	return d.reader.NumPage()
}

func (d *document) Page(_ context.Context, number int) (content domain.PageContent, err error) {
	// The content-stream interpreter panics on malformed streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract page content: %v", r)
		}
	}()

	page := d.reader.Page(number)
	if page.V.IsNull() {
		return domain.PageContent{}, fmt.Errorf("page %d not present", number)
	}

	height := pageHeight(page)
	content = domain.PageContent{
		Number: number,
		Blocks: groupLines(page.Content().Text, height),
	}
	return content, nil
}

func (d *document) Close() error {
	return nil
}

func pageHeight(page pdfreader.Page) float64 {
	box := page.V.Key("MediaBox")
	if box.IsNull() || box.Len() < 4 {
		return defaultPageHeight
	}
	height := box.Index(3).Float64() - box.Index(1).Float64()
	if height <= 0 {
		return defaultPageHeight
	}
	return height
}

// groupLines clusters text runs sharing a baseline into one block per
// visual line, converting from the PDF's bottom-left origin to the
// top-left origin the renderer sorts by.
func groupLines(texts []pdfreader.Text, height float64) []domain.TextBlock {
	lines := make(map[int][]pdfreader.Text)
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		key := int(math.Round(t.Y))
		lines[key] = append(lines[key], t)
	}

	keys := make([]int, 0, len(lines))
	for key := range lines {
		keys = append(keys, key)
	}
	// Larger PDF Y first: top of the page downwards.
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))

	blocks := make([]domain.TextBlock, 0, len(keys))
	for _, key := range keys {
		runs := lines[key]
		sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

		var sb strings.Builder
		fontSize := 0.0
		bold := false
		for _, run := range runs {
			sb.WriteString(run.S)
			if run.FontSize > fontSize {
				fontSize = run.FontSize
			}
			if strings.Contains(run.Font, "Bold") {
				bold = true
			}
		}
		blocks = append(blocks, domain.TextBlock{
			Text:     sb.String(),
			X:        runs[0].X,
			Y:        height - float64(key),
			FontSize: fontSize,
			Bold:     bold,
		})
	}
	return blocks
}
