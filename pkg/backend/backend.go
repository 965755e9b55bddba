// Package backend defines the storage backend adapter contracts consumed by
// the retention engine, together with the shared error taxonomy and retry
// helper the adapters build on.
//
// Two heterogeneous backends hold content bytes:
//
//   - a content-addressed store where objects are referenced by immutable
//     hash and deleted by unpinning (all-or-nothing per hash), and
//   - a hierarchical object store where keys are deletable individually or
//     by prefix.
//
// All adapter operations are idempotent: deleting something already gone is
// success, not an error. Adapters own their own connect/request timeouts and
// transient-failure retries; the engine imposes no additional per-call
// timeout.
package backend

import "context"

// PrefixResult reports the outcome of a prefix deletion.
type PrefixResult struct {
	// Deleted is the number of objects removed.
	Deleted int

	// Errors is the number of objects that failed to delete.
	Errors int
}

// PinBackend is the adapter contract for the content-addressed store.
type PinBackend interface {
	// IsPinned reports whether the hash is currently pinned.
	IsPinned(ctx context.Context, hash string) (bool, error)

	// Unpin removes the pin for a hash. Unpinning an already-absent hash
	// is an idempotent no-op returning (false, nil); (true, nil) means the
	// pin was actually removed by this call.
	Unpin(ctx context.Context, hash string) (bool, error)
}

// ObjectBackend is the adapter contract for the hierarchical object store.
type ObjectBackend interface {
	// Exists reports whether an object exists at the key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes a single object. Deleting a missing object is an
	// idempotent no-op returning (false, nil); (true, nil) means an object
	// was actually removed.
	Delete(ctx context.Context, key string) (bool, error)

	// DeleteByPrefix removes every object under the prefix. An empty
	// prefix listing yields {0, 0} and no error.
	DeleteByPrefix(ctx context.Context, prefix string) (PrefixResult, error)

	// List returns up to maxKeys keys under the prefix.
	List(ctx context.Context, prefix string, maxKeys int) ([]string, error)
}
