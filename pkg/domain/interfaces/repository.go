package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Memory() MemoryRepository

	// Close releases the underlying store. Calls after Close fail with model.ErrNotReady.
	Close() error
}
