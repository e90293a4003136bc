package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
)

// OCRFragment pairs an image region with its recognition outcome. A
// failed recognition still renders, as an inline failure note.
type OCRFragment struct {
	Region domain.ImageRegion
	Text   string
	Err    error
}

// PageRenderer merges a page's text blocks, OCR fragments and tables into
// one Markdown fragment. Deterministic: same inputs, same output.
type PageRenderer struct {
	paragraphGap    float64
	headingFontSize float64
}

func NewPageRenderer(paragraphGap, headingFontSize float64) *PageRenderer {
	if paragraphGap <= 0 {
		paragraphGap = 6
	}
	if headingFontSize <= 0 {
		headingFontSize = 14
	}
	return &PageRenderer{
		paragraphGap:    paragraphGap,
		headingFontSize: headingFontSize,
	}
}

const (
	elementText = iota
	elementTable
	elementImage
)

type pageElement struct {
	kind int
	y    float64
	x    float64
	idx  int
}

// RenderPage produces the page's Markdown fragment, preceded by the page
// boundary marker. Elements are emitted in reading order: by vertical
// position, then horizontal.
func (r *PageRenderer) RenderPage(pageNum int, content domain.PageContent, ocr []OCRFragment) string {
	elements := make([]pageElement, 0, len(content.Blocks)+len(content.Tables)+len(ocr))
	for i, block := range content.Blocks {
		elements = append(elements, pageElement{kind: elementText, y: block.Y, x: block.X, idx: i})
	}
	for i, table := range content.Tables {
		elements = append(elements, pageElement{kind: elementTable, y: table.Y, idx: i})
	}
	for i, fragment := range ocr {
		elements = append(elements, pageElement{kind: elementImage, y: fragment.Region.Y, x: fragment.Region.X, idx: i})
	}
	sort.SliceStable(elements, func(i, j int) bool {
		if elements[i].y != elements[j].y {
			return elements[i].y < elements[j].y
		}
		return elements[i].x < elements[j].x
	})

	parts := []string{fmt.Sprintf("## 第 %d 页", pageNum)}

	var paragraph []string
	var lastTextY float64
	flush := func() {
		if len(paragraph) > 0 {
			parts = append(parts, strings.Join(paragraph, "\n"))
			paragraph = nil
		}
	}

	for _, el := range elements {
		switch el.kind {
		case elementText:
			block := content.Blocks[el.idx]
			line := collapseSpaces(block.Text)
			if line == "" {
				continue
			}
			if block.Bold || block.FontSize > r.headingFontSize {
				line = "**" + line + "**"
			}
			if len(paragraph) > 0 && block.Y-lastTextY > r.paragraphGap {
				flush()
			}
			paragraph = append(paragraph, line)
			lastTextY = block.Y
		case elementTable:
			flush()
			if md := renderTable(content.Tables[el.idx]); md != "" {
				parts = append(parts, "**表格:**\n\n"+md)
			}
		case elementImage:
			flush()
			parts = append(parts, renderOCRFragment(pageNum, ocr[el.idx]))
		}
	}
	flush()

	return strings.Join(parts, "\n\n") + "\n"
}

func renderOCRFragment(pageNum int, fragment OCRFragment) string {
	label := fmt.Sprintf("[第 %d 页, 图片 %d]", pageNum, fragment.Region.Index+1)
	if fragment.Err != nil {
		return fmt.Sprintf("**%s**\n```\n图片 %d 处理失败: %v\n```", label, fragment.Region.Index+1, fragment.Err)
	}
	return fmt.Sprintf("**%s**\n```\nOCR 内容 %s:\n%s\n```", label, label, strings.TrimSpace(fragment.Text))
}

func renderTable(table domain.Table) string {
	if len(table.Rows) == 0 {
		return ""
	}

	columns := 0
	for _, row := range table.Rows {
		if len(row) > columns {
			columns = len(row)
		}
	}
	if columns == 0 {
		return ""
	}

	lines := make([]string, 0, len(table.Rows)+1)
	lines = append(lines, tableRow(table.Rows[0], columns))

	separator := make([]string, columns)
	for i := range separator {
		separator[i] = "---"
	}
	lines = append(lines, "| "+strings.Join(separator, " | ")+" |")

	for _, row := range table.Rows[1:] {
		lines = append(lines, tableRow(row, columns))
	}
	return strings.Join(lines, "\n")
}

func tableRow(row []string, columns int) string {
	cells := make([]string, columns)
	for i := 0; i < columns; i++ {
		if i < len(row) {
			cells[i] = tableCell(row[i])
		}
	}
	return "| " + strings.Join(cells, " | ") + " |"
}

func tableCell(raw string) string {
	return collapseSpaces(strings.ReplaceAll(raw, "\n", "<br>"))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
