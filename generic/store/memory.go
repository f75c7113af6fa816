// Package store provides BlobStore implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/hospital-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	blobs map[generic.Key]generic.Blob

	// FailWrites makes every WriteBatch fail; used to exercise rollback paths.
	FailWrites error
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[generic.Key]generic.Blob)}
}

// Read returns a copy of the stored bytes.
func (m *Memory) Read(_ context.Context, key generic.Key) (generic.Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[key]
	if !ok {
		return generic.Blob{}, nil
	}
	return generic.Blob{Data: append([]byte(nil), b.Data...), Version: b.Version}, nil
}

// WriteBatch applies all writes atomically.
func (m *Memory) WriteBatch(_ context.Context, writes []generic.BlobWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return m.FailWrites
	}

	// Check every version first (atomic check)
	for _, w := range writes {
		if current := m.blobs[w.Key].Version; current != w.ExpectedVersion {
			return fmt.Errorf("%w: %s at version %d, expected %d",
				generic.ErrConcurrentModification, w.Key, current, w.ExpectedVersion)
		}
	}

	// Apply all (atomic write)
	for _, w := range writes {
		m.blobs[w.Key] = generic.Blob{
			Data:    append([]byte(nil), w.Data...),
			Version: w.ExpectedVersion + 1,
		}
	}
	return nil
}

// Put seeds a raw blob, bumping its version. Tests use it to simulate a
// writer in another process.
func (m *Memory) Put(key generic.Key, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = generic.Blob{Data: append([]byte(nil), data...), Version: m.blobs[key].Version + 1}
}
