// Package excel renders review verdicts into an XLSX workbook for
// hand-off to procurement reviewers.
package excel

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
	"github.com/hzwangyq/bidcheck/internal/core/ports"
)

const sheetName = "审查结果"

type Exporter struct {
	storage ports.ObjectStorage
	now     func() time.Time
}

func NewExporter(storage ports.ObjectStorage) *Exporter {
	return &Exporter{storage: storage, now: time.Now}
}

func (e *Exporter) Export(ctx context.Context, fileID string, results []domain.CheckResult) (string, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("drop default sheet: %w", err)
	}

	headers := []string{"序号", "检查项", "审查要求", "结论", "证据摘录", "评估说明", "评估时间"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return "", fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return "", fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "G1", headerStyle); err != nil {
		return "", fmt.Errorf("apply header style: %w", err)
	}

	for i, res := range results {
		row := i + 2
		values := []any{
			i + 1,
			res.Item.Name,
			res.Item.RequirementText,
			verdictLabel(res.Verdict),
			res.EvidenceExcerpt,
			res.AssessmentNotes,
			res.EvaluatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return "", fmt.Errorf("result cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return "", fmt.Errorf("write result row %d: %w", row, err)
			}
		}
	}

	widths := []float64{6, 20, 40, 10, 50, 30, 20}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return "", fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return "", fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", len(results)+3), "文件编号: "+fileID); err != nil {
		return "", fmt.Errorf("write file id: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", fmt.Errorf("serialize workbook: %w", err)
	}

	key := fmt.Sprintf("%s_review_%d.xlsx", fileID, e.now().Unix())
	if err := e.storage.Save(ctx, key, buf); err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	return key, nil
}

func verdictLabel(v domain.Verdict) string {
	switch v {
	case domain.VerdictSatisfied:
		return "满足"
	case domain.VerdictUnsatisfied:
		return "不满足"
	default:
		return "无法判断"
	}
}
