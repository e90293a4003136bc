package yamlfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
)

const seedYAML = `items:
  - name: 财务报表
    requirement: 供应商需提供近三年财务报表
  - name: 履约保证
    requirement: 需提供履约保证金承诺
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checklist.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	items, err := Load(writeSeed(t, seedYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Name != "财务报表" || items[0].RequirementText != "供应商需提供近三年财务报表" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[0].ID == "" || items[0].ID == items[1].ID {
		t.Fatal("items must get distinct ids")
	}
	if items[0].CreatedAt.IsZero() {
		t.Fatal("created_at must be set")
	}
}

func TestLoadMissingFileYieldsNoItems(t *testing.T) {
	items, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("a missing seed file must not be an error: %v", err)
	}
	if items != nil {
		t.Fatalf("expected no items, got %v", items)
	}
}

func TestLoadRejectsIncompleteItem(t *testing.T) {
	_, err := Load(writeSeed(t, "items:\n  - name: 只有名称\n"))
	if err == nil {
		t.Fatal("expected error for item without requirement")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeSeed(t, "items: [unclosed"))
	if err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

type checklistRepoFake struct {
	items     []domain.ChecklistItem
	createErr error
}

func (f *checklistRepoFake) Create(_ context.Context, item *domain.ChecklistItem) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.items = append(f.items, *item)
	return nil
}

func (f *checklistRepoFake) GetByID(context.Context, string) (*domain.ChecklistItem, error) {
	return nil, nil
}

func (f *checklistRepoFake) List(context.Context) ([]domain.ChecklistItem, error) {
	return f.items, nil
}

func (f *checklistRepoFake) Delete(context.Context, string) error { return nil }

func TestSeedInsertsIntoEmptyRepository(t *testing.T) {
	repo := &checklistRepoFake{}
	n, err := Seed(context.Background(), repo, writeSeed(t, seedYAML))
	if err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	if n != 2 || len(repo.items) != 2 {
		t.Fatalf("expected 2 seeded items, got n=%d len=%d", n, len(repo.items))
	}
}

func TestSeedSkipsNonEmptyRepository(t *testing.T) {
	repo := &checklistRepoFake{items: []domain.ChecklistItem{{ID: "existing"}}}
	n, err := Seed(context.Background(), repo, writeSeed(t, seedYAML))
	if err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	if n != 0 || len(repo.items) != 1 {
		t.Fatalf("a populated repository must not be reseeded, got n=%d len=%d", n, len(repo.items))
	}
}
