package taskstore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
)

func TestCreateAndGet(t *testing.T) {
	r := NewMemoryRegistry()

	task := &domain.Task{ID: "t-1", FileID: "f-1", Status: domain.TaskPending}
	if err := r.Create(task); err != nil {
		t.Fatalf("create error: %v", err)
	}

	got, err := r.Get("t-1")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.ID != "t-1" || got.Status != domain.TaskPending {
		t.Fatalf("unexpected task: %+v", got)
	}
}

func TestCreateDuplicate(t *testing.T) {
	r := NewMemoryRegistry()
	task := &domain.Task{ID: "t-1"}
	if err := r.Create(task); err != nil {
		t.Fatalf("create error: %v", err)
	}
	if err := r.Create(task); err == nil {
		t.Fatal("expected error on duplicate id")
	}
}

func TestGetUnknown(t *testing.T) {
	r := NewMemoryRegistry()
	if _, err := r.Get("missing"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	r := NewMemoryRegistry()
	if err := r.Create(&domain.Task{ID: "t-1", Progress: 10}); err != nil {
		t.Fatalf("create error: %v", err)
	}

	snapshot, err := r.Get("t-1")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	snapshot.Progress = 95

	stored, err := r.Get("t-1")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if stored.Progress != 10 {
		t.Fatalf("mutating a snapshot must not affect the registry, got %d", stored.Progress)
	}
}

func TestUpdateUnknown(t *testing.T) {
	r := NewMemoryRegistry()
	err := r.Update("missing", func(*domain.Task) {})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMutatesStoredTask(t *testing.T) {
	r := NewMemoryRegistry()
	if err := r.Create(&domain.Task{ID: "t-1"}); err != nil {
		t.Fatalf("create error: %v", err)
	}

	if err := r.Update("t-1", func(task *domain.Task) {
		task.Status = domain.TaskProcessing
		task.Progress = 42
	}); err != nil {
		t.Fatalf("update error: %v", err)
	}

	got, err := r.Get("t-1")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.Status != domain.TaskProcessing || got.Progress != 42 {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	r := NewMemoryRegistry()
	if err := r.Create(&domain.Task{ID: "t-1"}); err != nil {
		t.Fatalf("create error: %v", err)
	}
	r.Delete("t-1")
	if _, err := r.Get("t-1"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	r := NewMemoryRegistry()
	for i := 0; i < 10; i++ {
		if err := r.Create(&domain.Task{ID: fmt.Sprintf("t-%d", i)}); err != nil {
			t.Fatalf("create error: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("t-%d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for p := 0; p < 100; p++ {
				_ = r.Update(id, func(task *domain.Task) {
					if p > task.Progress {
						task.Progress = p
					}
				})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := r.Get(id); err != nil {
					t.Errorf("get error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		got, err := r.Get(fmt.Sprintf("t-%d", i))
		if err != nil {
			t.Fatalf("get error: %v", err)
		}
		if got.Progress != 99 {
			t.Fatalf("expected final progress 99, got %d", got.Progress)
		}
	}
}
