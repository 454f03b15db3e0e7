package memory

import (
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// Memory is an in-process repository for development and tests. Nothing is persisted.
type Memory struct {
	memory *memoryRepository
	closed atomic.Bool
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	m := &Memory{}
	m.memory = newMemoryRepository(m.ready)
	return m
}

func (m *Memory) Memory() interfaces.MemoryRepository {
	return m.memory
}

func (m *Memory) Close() error {
	m.closed.Store(true)
	return nil
}

func (m *Memory) ready() error {
	if m.closed.Load() {
		return goerr.Wrap(model.ErrNotReady, "memory repository is closed")
	}
	return nil
}
