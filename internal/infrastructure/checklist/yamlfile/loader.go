// Package yamlfile seeds checklist items from a YAML file so a fresh
// deployment starts with a usable review checklist.
package yamlfile

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
	"github.com/hzwangyq/bidcheck/internal/core/ports"
)

type seedFile struct {
	Items []seedItem `yaml:"items"`
}

type seedItem struct {
	Name        string `yaml:"name"`
	Requirement string `yaml:"requirement"`
}

// Load parses the seed file at path and returns checklist items with
// fresh identifiers. A missing file is not an error, it just yields
// no items.
func Load(path string) ([]domain.ChecklistItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checklist seed: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse checklist seed: %w", err)
	}

	now := time.Now().UTC()
	items := make([]domain.ChecklistItem, 0, len(file.Items))
	for i, raw := range file.Items {
		if raw.Name == "" || raw.Requirement == "" {
			return nil, fmt.Errorf("checklist seed item %d: name and requirement are required", i)
		}
		items = append(items, domain.ChecklistItem{
			ID:              uuid.NewString(),
			Name:            raw.Name,
			RequirementText: raw.Requirement,
			CreatedAt:       now,
		})
	}
	return items, nil
}

// Seed inserts the items from path into repo, skipping entirely when
// the repository already holds any items.
func Seed(ctx context.Context, repo ports.ChecklistRepository, path string) (int, error) {
	existing, err := repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list existing items: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	items, err := Load(path)
	if err != nil {
		return 0, err
	}
	for i := range items {
		if err := repo.Create(ctx, &items[i]); err != nil {
			return i, fmt.Errorf("seed item %q: %w", items[i].Name, err)
		}
	}
	return len(items), nil
}
