// Package store provides Journal implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/microledger/ledger"
)

// =============================================================================
// MEMORY JOURNAL - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is an in-memory Journal. Contents are lost on exit.
type Memory struct {
	mu  sync.RWMutex
	ops []ledger.Operation
	seq map[uint64]bool
}

func NewMemory() *Memory {
	return &Memory{seq: make(map[uint64]bool)}
}

// Append adds a single operation. Append-only.
func (m *Memory) Append(_ context.Context, op ledger.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.seq[op.Seq] {
		return ledger.ErrDuplicateSequence
	}
	m.ops = append(m.ops, op)
	m.seq[op.Seq] = true
	return nil
}

// Load returns a copy of every operation in sequence order.
func (m *Memory) Load(_ context.Context) ([]ledger.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Operation, len(m.ops))
	copy(result, m.ops)
	return result, nil
}

func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ops), nil
}
