package taskstore

import (
	"fmt"
	"sync"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
)

// MemoryRegistry is the process-wide conversion task registry. The lock
// guards only lookup, insert and short field mutations; conversion work
// never runs under it.
type MemoryRegistry struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		tasks: make(map[string]*domain.Task),
	}
}

func (r *MemoryRegistry) Create(task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[task.ID]; ok {
		return fmt.Errorf("task already registered: %s", task.ID)
	}
	stored := *task
	r.tasks[task.ID] = &stored
	return nil
}

// Get returns a snapshot copy so readers never observe a torn write.
func (r *MemoryRegistry) Get(id string) (domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return domain.Task{}, domain.WrapError(domain.ErrNotFound, "get task", fmt.Errorf("task %s", id))
	}
	return *task, nil
}

// Update applies fn to the stored task under the registry lock.
func (r *MemoryRegistry) Update(id string, fn func(*domain.Task)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update task", fmt.Errorf("task %s", id))
	}
	fn(task)
	return nil
}

// Delete removes a task, e.g. on expiry.
func (r *MemoryRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}
