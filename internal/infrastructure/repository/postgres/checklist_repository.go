package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
)

type ChecklistRepository struct {
	db *sql.DB
}

func NewChecklistRepository(db *sql.DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

func (r *ChecklistRepository) Create(ctx context.Context, item *domain.ChecklistItem) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO checklist_items (id, name, requirement, created_at)
VALUES ($1,$2,$3,$4)
`, item.ID, item.Name, item.RequirementText, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert checklist item: %w", err)
	}
	return nil
}

func (r *ChecklistRepository) GetByID(ctx context.Context, id string) (*domain.ChecklistItem, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, requirement, created_at
FROM checklist_items
WHERE id = $1
`, id)

	var item domain.ChecklistItem
	err := row.Scan(&item.ID, &item.Name, &item.RequirementText, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get checklist item", fmt.Errorf("item %s", id))
		}
		return nil, fmt.Errorf("scan checklist item: %w", err)
	}
	return &item, nil
}

func (r *ChecklistRepository) List(ctx context.Context) ([]domain.ChecklistItem, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, requirement, created_at
FROM checklist_items
ORDER BY created_at ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list checklist items: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChecklistItem, 0)
	for rows.Next() {
		var item domain.ChecklistItem
		if err := rows.Scan(&item.ID, &item.Name, &item.RequirementText, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan checklist item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checklist items: %w", err)
	}
	return out, nil
}

func (r *ChecklistRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM checklist_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete checklist item: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete checklist item rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete checklist item", fmt.Errorf("item %s", id))
	}
	return nil
}

type CheckResultRepository struct {
	db *sql.DB
}

func NewCheckResultRepository(db *sql.DB) *CheckResultRepository {
	return &CheckResultRepository{db: db}
}

// SaveAll replaces earlier results for the same file so a re-review
// does not accumulate stale verdicts.
func (r *CheckResultRepository) SaveAll(ctx context.Context, fileID string, results []domain.CheckResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin results tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM check_results WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("clear previous results: %w", err)
	}

	for _, res := range results {
		_, err := tx.ExecContext(ctx, `
INSERT INTO check_results (id, file_id, item_id, item_name, requirement, verdict, evidence, notes, evaluated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, uuid.NewString(), fileID, res.Item.ID, res.Item.Name, res.Item.RequirementText,
			string(res.Verdict), res.EvidenceExcerpt, res.AssessmentNotes, res.EvaluatedAt)
		if err != nil {
			return fmt.Errorf("insert check result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results tx: %w", err)
	}
	return nil
}

func (r *CheckResultRepository) ListByFile(ctx context.Context, fileID string) ([]domain.CheckResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT item_id, item_name, requirement, verdict, evidence, notes, evaluated_at
FROM check_results
WHERE file_id = $1
ORDER BY evaluated_at ASC
`, fileID)
	if err != nil {
		return nil, fmt.Errorf("list check results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CheckResult, 0)
	for rows.Next() {
		var res domain.CheckResult
		var verdict string
		if err := rows.Scan(&res.Item.ID, &res.Item.Name, &res.Item.RequirementText,
			&verdict, &res.EvidenceExcerpt, &res.AssessmentNotes, &res.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("scan check result: %w", err)
		}
		res.Verdict = domain.Verdict(verdict)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check results: %w", err)
	}
	return out, nil
}
