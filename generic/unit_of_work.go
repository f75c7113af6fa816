/*
unit_of_work.go - Read-modify-write of snapshots as one step

PURPOSE:
  Every mutating operation in the system runs as:
    1. read the latest persisted snapshot(s)
    2. apply the change to decoded in-memory copies
    3. validate (domain code returns an error before mutating)
    4. write every changed snapshot back in one WriteBatch call
  The UnitOfWork owns that sequence so domain code never touches the store.

CONCURRENCY:
  Update holds a mutex for the whole sequence, so in-process callers are
  strictly ordered. Writers in other processes are caught by the version
  tokens: a stale write fails with ErrConcurrentModification and nothing
  is applied. The caller decides whether to retry.

LAZY LOADING:
  Snapshots are loaded on first use through Load[T]. An operation that
  only touches the finance blob never reads the HR blob.

SEE ALSO:
  - store.go: BlobStore contract
  - finance/service.go, integration/manager.go: Callers
*/
package generic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// UnitOfWork serializes snapshot read-modify-write cycles over a BlobStore.
type UnitOfWork struct {
	store BlobStore
	mu    sync.Mutex
}

func NewUnitOfWork(store BlobStore) *UnitOfWork {
	return &UnitOfWork{store: store}
}

// Update runs fn against fresh snapshots and commits every snapshot fn
// changed. If fn returns an error nothing is written.
func (u *UnitOfWork) Update(ctx context.Context, fn func(tx *Tx) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	tx := newTx(ctx, u.store)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// View runs fn against fresh snapshots and discards any changes.
func (u *UnitOfWork) View(ctx context.Context, fn func(tx *Tx) error) error {
	return fn(newTx(ctx, u.store))
}

// =============================================================================
// TX - Snapshots loaded during one unit of work
// =============================================================================

// Tx tracks the snapshots loaded by one Update or View.
type Tx struct {
	ctx    context.Context
	store  BlobStore
	loaded map[Key]*loaded
	order  []Key
}

type loaded struct {
	value    any
	baseline []byte // canonical encoding at load time
	version  int64
}

func newTx(ctx context.Context, store BlobStore) *Tx {
	return &Tx{ctx: ctx, store: store, loaded: make(map[Key]*loaded)}
}

// Context returns the context of the enclosing call.
func (tx *Tx) Context() context.Context { return tx.ctx }

// Load returns the decoded snapshot for key, reading it on first use.
// Repeated calls within the same Tx return the same pointer.
func Load[T any](tx *Tx, key Key) (*T, error) {
	if l, ok := tx.loaded[key]; ok {
		v, ok := l.value.(*T)
		if !ok {
			return nil, &PersistenceError{Op: "decode", Key: string(key),
				Err: fmt.Errorf("snapshot already loaded as %T", l.value)}
		}
		return v, nil
	}

	blob, err := tx.store.Read(tx.ctx, key)
	if err != nil {
		return nil, &PersistenceError{Op: "read", Key: string(key), Err: err}
	}

	v := new(T)
	if len(bytes.TrimSpace(blob.Data)) > 0 {
		if err := json.Unmarshal(blob.Data, v); err != nil {
			return nil, &PersistenceError{Op: "decode", Key: string(key), Err: err}
		}
	}
	baseline, err := json.Marshal(v)
	if err != nil {
		return nil, &PersistenceError{Op: "encode", Key: string(key), Err: err}
	}

	tx.loaded[key] = &loaded{value: v, baseline: baseline, version: blob.Version}
	tx.order = append(tx.order, key)
	return v, nil
}

func (tx *Tx) commit() error {
	var writes []BlobWrite
	for _, key := range tx.order {
		l := tx.loaded[key]
		data, err := json.Marshal(l.value)
		if err != nil {
			return &PersistenceError{Op: "encode", Key: string(key), Err: err}
		}
		if bytes.Equal(data, l.baseline) {
			continue
		}
		writes = append(writes, BlobWrite{Key: key, Data: data, ExpectedVersion: l.version})
	}
	if len(writes) == 0 {
		return nil
	}

	if err := tx.store.WriteBatch(tx.ctx, writes); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			return err
		}
		return &PersistenceError{Op: "write", Key: string(writes[0].Key), Err: err}
	}
	return nil
}
