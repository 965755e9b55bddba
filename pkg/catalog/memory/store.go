// Package memory provides an in-memory catalog store.
//
// The memory store is ephemeral: all records are lost on restart. It exists
// for tests, fixtures, and dry-run experiments against synthetic catalogs.
// Production deployments use pkg/catalog/badger.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mediasweep/mediasweep/pkg/catalog"
)

// MemoryCatalogStore implements catalog.Store with a mutex-guarded map.
//
// Thread Safety:
// All operations are protected by a single read-write mutex, making the store
// safe for concurrent access from multiple goroutines.
type MemoryCatalogStore struct {
	mu      sync.RWMutex
	records map[string]catalog.ContentRecord

	// now is replaceable for tests that need a fixed clock.
	now func() time.Time
}

// NewMemoryCatalogStore creates an empty in-memory catalog store.
func NewMemoryCatalogStore() *MemoryCatalogStore {
	return &MemoryCatalogStore{
		records: make(map[string]catalog.ContentRecord),
		now:     time.Now,
	}
}

// SetClock overrides the store clock. Tests only.
func (s *MemoryCatalogStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Query returns matching records ordered oldest-first.
func (s *MemoryCatalogStore) Query(ctx context.Context, q catalog.Query) ([]catalog.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	createdBefore := q.EffectiveCreatedBefore(s.now())

	matched := make([]catalog.ContentRecord, 0)
	for _, rec := range s.records {
		if q.Matches(&rec, createdBefore) {
			matched = append(matched, rec)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if limit := q.EffectiveLimit(); len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

// GetByID returns a copy of the record, or ErrNotFound.
func (s *MemoryCatalogStore) GetByID(ctx context.Context, id string) (*catalog.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, catalog.NewNotFound(id)
	}

	return &rec, nil
}

// Put inserts or replaces a record.
func (s *MemoryCatalogStore) Put(ctx context.Context, rec catalog.ContentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if rec.ID == "" {
		return &catalog.StoreError{
			Code:    catalog.ErrInvalidArgument,
			Message: "record ID is required",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = rec
	return nil
}

// MarkCleaned stamps cleanup metadata exactly once per record.
func (s *MemoryCatalogStore) MarkCleaned(ctx context.Context, id string, meta catalog.CleanupMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return catalog.NewNotFound(id)
	}

	if rec.CleanupMeta != nil {
		return &catalog.StoreError{
			Code:     catalog.ErrAlreadyCleaned,
			Message:  "cleanup metadata already present",
			RecordID: id,
		}
	}

	metaCopy := meta
	rec.CleanupMeta = &metaCopy
	s.records[id] = rec
	return nil
}

// SetStatus advances a record's status, refusing to leave StatusDeleted.
func (s *MemoryCatalogStore) SetStatus(ctx context.Context, id string, status catalog.Status) error {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return catalog.NewNotFound(id)
	}

	if rec.Status == catalog.StatusDeleted && status != catalog.StatusDeleted {
		return &catalog.StoreError{
			Code:     catalog.ErrInvalidTransition,
			Message:  "record is already deleted",
			RecordID: id,
		}
	}

	rec.Status = status
	s.records[id] = rec
	return nil
}

// Len returns the number of records in the store. Tests only.
func (s *MemoryCatalogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close is a no-op for the memory store.
func (s *MemoryCatalogStore) Close() error {
	return nil
}
