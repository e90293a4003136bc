package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
	"github.com/hzwangyq/bidcheck/internal/core/ports"
)

// ChecklistEvaluator judges converted markdown against checklist items via
// the external text-evaluation capability. A failed external call becomes
// an inconclusive CheckResult and never aborts sibling items.
type ChecklistEvaluator struct {
	llm           ports.TextEvaluator
	chunker       ports.Chunker
	excerptBudget int
	logger        *slog.Logger
}

func NewChecklistEvaluator(llm ports.TextEvaluator, chunker ports.Chunker, excerptBudget int, logger *slog.Logger) *ChecklistEvaluator {
	if excerptBudget <= 0 {
		excerptBudget = 6000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChecklistEvaluator{
		llm:           llm,
		chunker:       chunker,
		excerptBudget: excerptBudget,
		logger:        logger,
	}
}

func (e *ChecklistEvaluator) Evaluate(ctx context.Context, markdown string, item domain.ChecklistItem) (domain.CheckResult, error) {
	prompt := buildCheckPrompt(item, e.selectExcerpt(markdown, item.RequirementText))

	raw, err := e.llm.GenerateJSON(ctx, prompt)
	if err != nil {
		wrapped := domain.WrapError(domain.ErrEvaluation, "evaluate checklist item", err)
		return failedCheckResult(item, wrapped), wrapped
	}

	result, err := parseVerdictResponse(item, raw)
	if err != nil {
		wrapped := domain.WrapError(domain.ErrEvaluation, "parse verdict response", err)
		return failedCheckResult(item, wrapped), wrapped
	}
	return result, nil
}

// EvaluateAll evaluates every item, isolating failures per item.
func (e *ChecklistEvaluator) EvaluateAll(ctx context.Context, markdown string, items []domain.ChecklistItem) []domain.CheckResult {
	results := make([]domain.CheckResult, 0, len(items))
	for _, item := range items {
		result, err := e.Evaluate(ctx, markdown, item)
		if err != nil {
			e.logger.Warn("checklist item evaluation failed", "item", item.Name, "error", err)
		}
		results = append(results, result)
	}
	return results
}

// selectExcerpt bounds the markdown shown to the evaluator: when the
// document fits the budget it goes in whole, otherwise the chunks with the
// highest term overlap against the requirement are kept, in source order.
func (e *ChecklistEvaluator) selectExcerpt(markdown, requirement string) string {
	if len(markdown) <= e.excerptBudget {
		return markdown
	}

	chunks := e.chunker.Split(markdown)
	if len(chunks) == 0 {
		return markdown[:e.excerptBudget]
	}

	shingles := runeShingles(requirement, 2)
	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, 0, len(chunks))
	for i, chunk := range chunks {
		score := 0
		for _, shingle := range shingles {
			score += strings.Count(chunk, shingle)
		}
		ranked = append(ranked, scored{idx: i, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	used := 0
	keep := make([]int, 0, len(ranked))
	for _, candidate := range ranked {
		size := len(chunks[candidate.idx])
		if used+size > e.excerptBudget && used > 0 {
			continue
		}
		keep = append(keep, candidate.idx)
		used += size
		if used >= e.excerptBudget {
			break
		}
	}
	sort.Ints(keep)

	parts := make([]string, 0, len(keep))
	for _, idx := range keep {
		parts = append(parts, chunks[idx])
	}
	return strings.Join(parts, "\n\n")
}

func buildCheckPrompt(item domain.ChecklistItem, excerpt string) string {
	return fmt.Sprintf(`你是招标文件审查助手。请根据文档内容判断其是否满足审查要求。
只返回严格的 JSON 对象，包含键:
verdict (字符串, 取值 satisfied / unsatisfied / inconclusive),
evidence (字符串, 引用文档中的原文依据, 没有则为空字符串),
notes (字符串, 简要说明判断理由, 不能为空)。
不要输出 markdown, 不要输出多余的键。

审查项: %s
审查要求:
%s

文档内容:
%s
`, item.Name, item.RequirementText, excerpt)
}

type verdictResponse struct {
	Verdict  string `json:"verdict"`
	Evidence string `json:"evidence"`
	Notes    string `json:"notes"`
}

func parseVerdictResponse(item domain.ChecklistItem, raw string) (domain.CheckResult, error) {
	var response verdictResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &response); err != nil {
		return domain.CheckResult{}, fmt.Errorf("unmarshal verdict json: %w", err)
	}

	var verdict domain.Verdict
	switch strings.ToLower(strings.TrimSpace(response.Verdict)) {
	case "satisfied":
		verdict = domain.VerdictSatisfied
	case "unsatisfied":
		verdict = domain.VerdictUnsatisfied
	case "inconclusive":
		verdict = domain.VerdictInconclusive
	default:
		return domain.CheckResult{}, fmt.Errorf("unknown verdict: %q", response.Verdict)
	}

	notes := strings.TrimSpace(response.Notes)
	if notes == "" {
		notes = "评估方未提供补充说明"
	}
	return domain.CheckResult{
		Item:            item,
		Verdict:         verdict,
		EvidenceExcerpt: strings.TrimSpace(response.Evidence),
		AssessmentNotes: notes,
		EvaluatedAt:     time.Now().UTC(),
	}, nil
}

func failedCheckResult(item domain.ChecklistItem, err error) domain.CheckResult {
	return domain.CheckResult{
		Item:            item,
		Verdict:         domain.VerdictInconclusive,
		AssessmentNotes: fmt.Sprintf("评估失败: %v", err),
		EvaluatedAt:     time.Now().UTC(),
	}
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func runeShingles(s string, size int) []string {
	runes := []rune(strings.Join(strings.Fields(s), ""))
	if len(runes) < size {
		if len(runes) == 0 {
			return nil
		}
		return []string{string(runes)}
	}
	seen := make(map[string]struct{}, len(runes))
	out := make([]string, 0, len(runes))
	for i := 0; i+size <= len(runes); i++ {
		shingle := string(runes[i : i+size])
		if _, ok := seen[shingle]; ok {
			continue
		}
		seen[shingle] = struct{}{}
		out = append(out, shingle)
	}
	return out
}
