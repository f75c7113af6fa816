/*
store.go - Persistence interface for keyed snapshot blobs

PURPOSE:
  Defines the interface between the domain logic and the storage backend.
  The system of record is a small set of JSON documents, one per logical
  domain (finance, HR, integration metadata). The store only knows keys,
  bytes and version tokens; the unit of work decodes and encodes them.

KEY INTERFACES:
  BlobStore:  Read one blob, write a batch of blobs atomically

VERSION TOKENS:
  Every blob carries a monotonically increasing version. A write names the
  version it was derived from; if the stored version moved on in the
  meantime the whole batch is rejected with ErrConcurrentModification.
  A missing blob has version 0, so ExpectedVersion 0 means "create".

ATOMIC BATCHES:
  WriteBatch() ensures all-or-nothing semantics. Recording a payment
  touches the invoice and the journal in the same finance blob; an
  integration handler touches the HR blob and the integration blob.
  Either every blob in the batch is written or none is.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite table of blobs
  - generic/store/memory.go: In-memory for testing

EXAMPLE:
  blob, err := store.Read(ctx, generic.KeyFinance)
  err = store.WriteBatch(ctx, []generic.BlobWrite{
      {Key: generic.KeyFinance, Data: data, ExpectedVersion: blob.Version},
  })
  if errors.Is(err, generic.ErrConcurrentModification) {
      // Someone else wrote first; re-read and retry
  }

SEE ALSO:
  - unit_of_work.go: Higher-level read-modify-write using BlobStore
*/
package generic

import "context"

// =============================================================================
// KEYS - One blob per logical domain
// =============================================================================

// Key names a blob.
type Key string

const (
	KeyFinance      Key = "finance"
	KeyHR           Key = "hr"
	KeyIntegrations Key = "integrations"
)

// =============================================================================
// BLOB STORE - Interface for snapshot persistence
// =============================================================================

// Blob is the stored bytes plus their version token.
type Blob struct {
	Data    []byte
	Version int64
}

// BlobWrite replaces one blob if its stored version still equals
// ExpectedVersion. The new version is ExpectedVersion+1.
type BlobWrite struct {
	Key             Key
	Data            []byte
	ExpectedVersion int64
}

// BlobStore persists keyed blobs.
type BlobStore interface {
	// Read returns the blob for key. A missing key is not an error: it
	// returns an empty Blob with Version 0.
	Read(ctx context.Context, key Key) (Blob, error)

	// WriteBatch applies all writes atomically. Any version mismatch
	// rejects the whole batch with ErrConcurrentModification.
	WriteBatch(ctx context.Context, writes []BlobWrite) error
}
