package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// MemoryRepository defines the interface for Memory data persistence.
// Every method returns an error wrapping model.ErrNotReady when the backing store is not open.
type MemoryRepository interface {
	// Put inserts a new memory. Returns model.ErrConflict if the ID already exists.
	Put(ctx context.Context, memory *model.Memory) error

	// GetByID returns the memory regardless of its archived state, or nil if absent.
	GetByID(ctx context.Context, id model.MemoryID) (*model.Memory, error)

	// GetByHash returns the first non-archived memory with the text hash, or nil if absent.
	GetByHash(ctx context.Context, textHash string) (*model.Memory, error)

	// List returns non-archived memories matching filter, newest first.
	List(ctx context.Context, filter model.ListFilter) ([]*model.Memory, error)

	// Count returns the number of non-archived memories matching filter, ignoring pagination.
	Count(ctx context.Context, filter model.ListFilter) (int, error)

	// HardDelete removes the memory regardless of its archived state.
	HardDelete(ctx context.Context, id model.MemoryID) (bool, error)

	// SoftDelete archives the memory. It returns false when the memory is missing or already archived.
	SoftDelete(ctx context.Context, id model.MemoryID) (bool, error)

	// BulkHardDelete removes every memory matching filter, archived or not.
	// An empty filter removes everything.
	BulkHardDelete(ctx context.Context, filter model.BulkDeleteFilter) (int, error)

	// ListAllActive returns every non-archived memory, newest first.
	ListAllActive(ctx context.Context) ([]*model.Memory, error)

	// Stats aggregates non-archived memories.
	Stats(ctx context.Context) (*model.Stats, error)
}
