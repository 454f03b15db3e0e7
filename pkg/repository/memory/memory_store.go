package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// entry keeps the insertion sequence so that records created within the same second
// still list newest first.
type entry struct {
	memory *model.Memory
	seq    uint64
}

type memoryRepository struct {
	mu      sync.RWMutex
	entries map[model.MemoryID]*entry
	seq     uint64
	ready   func() error
}

func newMemoryRepository(ready func() error) *memoryRepository {
	return &memoryRepository{
		entries: make(map[model.MemoryID]*entry),
		ready:   ready,
	}
}

func (r *memoryRepository) Put(ctx context.Context, mem *model.Memory) error {
	if err := r.ready(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[mem.ID]; exists {
		return goerr.Wrap(model.ErrConflict, "memory ID already exists", goerr.V(model.MemoryIDKey, mem.ID))
	}

	r.seq++
	r.entries[mem.ID] = &entry{memory: mem.Copy(), seq: r.seq}
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[id]
	if !exists {
		return nil, nil
	}
	return e.memory.Copy(), nil
}

func (r *memoryRepository) GetByHash(ctx context.Context, textHash string) (*model.Memory, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Oldest match wins, mirroring table scan order of the sqlite backend.
	var found *entry
	for _, e := range r.entries {
		if e.memory.Archived || e.memory.TextHash != textHash {
			continue
		}
		if found == nil || e.seq < found.seq {
			found = e
		}
	}
	if found == nil {
		return nil, nil
	}
	return found.memory.Copy(), nil
}

// activeSorted returns non-archived entries matching filter, newest first. Caller must hold the lock.
func (r *memoryRepository) activeSorted(filter model.ListFilter) []*entry {
	result := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.memory.Archived || !filter.Match(e.memory) {
			continue
		}
		result = append(result, e)
	}

	slices.SortFunc(result, func(a, b *entry) int {
		if c := cmp.Compare(b.memory.CreatedAt, a.memory.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
	return result
}

func (r *memoryRepository) List(ctx context.Context, filter model.ListFilter) ([]*model.Memory, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sorted := r.activeSorted(filter)

	start := max(filter.Offset, 0)
	if start > len(sorted) {
		start = len(sorted)
	}
	end := len(sorted)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	result := make([]*model.Memory, 0, end-start)
	for _, e := range sorted[start:end] {
		result = append(result, e.memory.Copy())
	}
	return result, nil
}

func (r *memoryRepository) Count(ctx context.Context, filter model.ListFilter) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.entries {
		if !e.memory.Archived && filter.Match(e.memory) {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepository) HardDelete(ctx context.Context, id model.MemoryID) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; !exists {
		return false, nil
	}
	delete(r.entries, id)
	return true, nil
}

func (r *memoryRepository) SoftDelete(ctx context.Context, id model.MemoryID) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[id]
	if !exists || e.memory.Archived {
		return false, nil
	}
	e.memory.Archived = true
	return true, nil
}

func (r *memoryRepository) BulkHardDelete(ctx context.Context, filter model.BulkDeleteFilter) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, e := range r.entries {
		if filter.Match(e.memory) {
			delete(r.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memoryRepository) ListAllActive(ctx context.Context) ([]*model.Memory, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sorted := r.activeSorted(model.ListFilter{})
	result := make([]*model.Memory, len(sorted))
	for i, e := range sorted {
		result[i] = e.memory.Copy()
	}
	return result, nil
}

func (r *memoryRepository) Stats(ctx context.Context) (*model.Stats, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Oldest first so that tag frequency ties keep first-seen order.
	active := r.activeSorted(model.ListFilter{})
	slices.Reverse(active)

	stats := &model.Stats{ByProject: make(map[string]int)}
	tags := model.NewTagCounter()
	for _, e := range active {
		stats.TotalCount++
		if e.memory.Project != "" {
			stats.ByProject[e.memory.Project]++
		}
		tags.Add(e.memory.Tags...)
		stats.StorageBytes += estimateSize(e.memory)
	}
	stats.TopTags = tags.Top(model.TopTagLimit)

	return stats, nil
}

// estimateSize approximates the stored footprint of m in bytes.
func estimateSize(m *model.Memory) int64 {
	size := len(m.ID) + len(m.Text) + len(m.TextHash) + len(m.Project) + 4*len(m.Embedding) + 2*8 + 1
	for _, tag := range m.Tags {
		size += len(tag)
	}
	return int64(size)
}
