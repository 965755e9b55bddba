// Package badger provides a persistent catalog store backed by BadgerDB.
//
// This is the production catalog implementation: cleanup metadata must survive
// restarts, because the idempotence of a re-run depends entirely on the
// CleanupMeta stamps written by previous runs.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/mediasweep/mediasweep/pkg/catalog"
)

// nowFunc is replaceable for tests that need a fixed clock.
var nowFunc = time.Now

// BadgerCatalogStore implements catalog.Store using BadgerDB for persistence.
//
// Storage Model:
// Records live under the "r:" namespace; a creation-time index under "t:"
// keeps candidate selection an ascending range scan instead of a full-table
// filter (see keys.go for the schema).
//
// Thread Safety:
// BadgerDB transactions provide isolation; MarkCleaned and SetStatus are
// read-modify-write inside a single update transaction, so two concurrent
// runs racing on the same record serialize there and the loser observes the
// winner's write.
type BadgerCatalogStore struct {
	db *badger.DB
}

// BadgerCatalogStoreConfig contains configuration for the badger catalog store.
type BadgerCatalogStoreConfig struct {
	// DBPath is the directory for the BadgerDB files (required)
	DBPath string

	// BlockCacheSizeMB sizes the badger block cache (default: 64)
	BlockCacheSizeMB int64

	// BadgerOptions overrides all badger options when set (tests)
	BadgerOptions *badger.Options
}

// NewBadgerCatalogStore opens (or creates) a BadgerDB-backed catalog store.
func NewBadgerCatalogStore(ctx context.Context, config BadgerCatalogStoreConfig) (*BadgerCatalogStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		if config.DBPath == "" {
			return nil, fmt.Errorf("badger catalog store: db path is required")
		}

		opts = badger.DefaultOptions(config.DBPath)
		opts = opts.WithLoggingLevel(badger.WARNING) // Reduce log noise
		opts = opts.WithCompression(options.None)    // Records are small JSON, compression not worth it

		blockCacheMB := config.BlockCacheSizeMB
		if blockCacheMB == 0 {
			blockCacheMB = 64
		}
		opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &BadgerCatalogStore{db: db}, nil
}

// Query returns matching records ordered oldest-first.
//
// The creation-time index is scanned ascending and terminated at the query's
// time bound, so ordering and the server-side bound both come from key order.
func (s *BadgerCatalogStore) Query(ctx context.Context, q catalog.Query) ([]catalog.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	createdBefore := q.EffectiveCreatedBefore(nowFunc())
	bound := keyCreatedBound(createdBefore.UnixNano())
	limit := q.EffectiveLimit()

	var results []catalog.ContentRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixCreated)

		it := txn.NewIterator(opts)
		defer it.Close()

		scanned := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if scanned%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			scanned++

			key := it.Item().Key()
			if bytes.Compare(key, bound) >= 0 {
				// Keys are chronological; everything past the bound is
				// newer than the query allows.
				return nil
			}

			id := recordIDFromIndexKey(key)
			if id == "" {
				continue
			}

			item, err := txn.Get(keyRecord(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				// Dangling index entry; skip rather than fail the scan.
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read record %s: %w", id, err)
			}

			var rec *catalog.ContentRecord
			if err := item.Value(func(val []byte) error {
				rec, err = decodeRecord(val)
				return err
			}); err != nil {
				return err
			}

			if q.Matches(rec, createdBefore) {
				results = append(results, *rec)
				if len(results) >= limit {
					return nil
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// GetByID returns the current persisted state of a record.
func (s *BadgerCatalogStore) GetByID(ctx context.Context, id string) (*catalog.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *catalog.ContentRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyRecord(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return catalog.NewNotFound(id)
		}
		if err != nil {
			return fmt.Errorf("failed to read record %s: %w", id, err)
		}

		return item.Value(func(val []byte) error {
			rec, err = decodeRecord(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Put inserts or replaces a record and maintains the creation-time index.
func (s *BadgerCatalogStore) Put(ctx context.Context, rec catalog.ContentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if rec.ID == "" {
		return &catalog.StoreError{
			Code:    catalog.ErrInvalidArgument,
			Message: "record ID is required",
		}
	}

	data, err := encodeRecord(&rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		// Drop the previous index entry if the creation timestamp moved.
		prev, err := txn.Get(keyRecord(rec.ID))
		if err == nil {
			var old *catalog.ContentRecord
			if err := prev.Value(func(val []byte) error {
				old, err = decodeRecord(val)
				return err
			}); err != nil {
				return err
			}
			if !old.CreatedAt.Equal(rec.CreatedAt) {
				if err := txn.Delete(keyCreated(old.CreatedAt.UnixNano(), old.ID)); err != nil {
					return err
				}
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to read record %s: %w", rec.ID, err)
		}

		if err := txn.Set(keyRecord(rec.ID), data); err != nil {
			return err
		}
		return txn.Set(keyCreated(rec.CreatedAt.UnixNano(), rec.ID), []byte(rec.ID))
	})
}

// MarkCleaned stamps cleanup metadata exactly once per record.
func (s *BadgerCatalogStore) MarkCleaned(ctx context.Context, id string, meta catalog.CleanupMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.updateRecord(id, func(rec *catalog.ContentRecord) error {
		if rec.CleanupMeta != nil {
			return &catalog.StoreError{
				Code:     catalog.ErrAlreadyCleaned,
				Message:  "cleanup metadata already present",
				RecordID: id,
			}
		}
		metaCopy := meta
		rec.CleanupMeta = &metaCopy
		return nil
	})
}

// SetStatus advances a record's status, refusing to leave StatusDeleted.
func (s *BadgerCatalogStore) SetStatus(ctx context.Context, id string, status catalog.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !status.Valid() {
		return &catalog.StoreError{
			Code:     catalog.ErrInvalidArgument,
			Message:  "unknown status " + string(status),
			RecordID: id,
		}
	}

	return s.updateRecord(id, func(rec *catalog.ContentRecord) error {
		if rec.Status == catalog.StatusDeleted && status != catalog.StatusDeleted {
			return &catalog.StoreError{
				Code:     catalog.ErrInvalidTransition,
				Message:  "record is already deleted",
				RecordID: id,
			}
		}
		rec.Status = status
		return nil
	})
}

// updateRecord applies a mutation to a record inside one update transaction.
func (s *BadgerCatalogStore) updateRecord(id string, mutate func(*catalog.ContentRecord) error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyRecord(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return catalog.NewNotFound(id)
		}
		if err != nil {
			return fmt.Errorf("failed to read record %s: %w", id, err)
		}

		var rec *catalog.ContentRecord
		if err := item.Value(func(val []byte) error {
			rec, err = decodeRecord(val)
			return err
		}); err != nil {
			return err
		}

		if err := mutate(rec); err != nil {
			return err
		}

		data, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		return txn.Set(keyRecord(id), data)
	})
}

// Close closes the underlying BadgerDB.
func (s *BadgerCatalogStore) Close() error {
	return s.db.Close()
}

// recordIDFromIndexKey extracts the record ID from "t:<20 digits>:<id>".
func recordIDFromIndexKey(key []byte) string {
	// prefix + 20 timestamp digits + ":"
	header := len(prefixCreated) + 20 + 1
	if len(key) <= header {
		return ""
	}
	return string(key[header:])
}
