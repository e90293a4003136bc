package domain

import "time"

// ChecklistItem is a named requirement evaluated against converted
// bidding documents.
type ChecklistItem struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	RequirementText string    `json:"requirement_text"`
	CreatedAt       time.Time `json:"created_at"`
}

type Verdict string

const (
	VerdictSatisfied    Verdict = "satisfied"
	VerdictUnsatisfied  Verdict = "unsatisfied"
	VerdictInconclusive Verdict = "inconclusive"
)

// CheckResult is the outcome of evaluating one document against one
// checklist item.
type CheckResult struct {
	Item            ChecklistItem `json:"checklist_item"`
	Verdict         Verdict       `json:"verdict"`
	EvidenceExcerpt string        `json:"evidence_excerpt"`
	AssessmentNotes string        `json:"assessment_notes"`
	EvaluatedAt     time.Time     `json:"evaluated_at"`
}
