package catalog

import "context"

// Store is the persistent state store contract consumed by the retention
// engine.
//
// Implementations must be safe for concurrent use: a preview run may query
// while an execution run writes, and two execution runs over overlapping
// candidate sets coordinate purely through MarkCleaned (the second writer for
// a record receives ErrAlreadyCleaned and treats the record as handled).
//
// Implementations:
//   - memory: ephemeral, for tests and fixtures (pkg/catalog/memory)
//   - badger: persistent, BadgerDB-backed (pkg/catalog/badger)
type Store interface {
	// Query returns records matching the predicate, ordered oldest-first,
	// bounded by the query limit. An empty result is not an error.
	Query(ctx context.Context, q Query) ([]ContentRecord, error)

	// GetByID returns the current persisted state of a record, or a
	// StoreError with ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*ContentRecord, error)

	// Put inserts or replaces a record. Used by the ingestion pipeline and
	// by tests; the retention engine itself never calls it.
	Put(ctx context.Context, rec ContentRecord) error

	// MarkCleaned stamps cleanup metadata on a record. Returns a
	// StoreError with ErrAlreadyCleaned if metadata is already present and
	// ErrNotFound if the record doesn't exist.
	MarkCleaned(ctx context.Context, id string, meta CleanupMeta) error

	// SetStatus advances a record's status. Returns a StoreError with
	// ErrInvalidTransition when the record is already Deleted and the new
	// status differs.
	SetStatus(ctx context.Context, id string, status Status) error

	// Close releases store resources.
	Close() error
}
