package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mediasweep/mediasweep/internal/logger"
	"github.com/mediasweep/mediasweep/internal/pacer"
	"github.com/mediasweep/mediasweep/pkg/backend"
	"github.com/mediasweep/mediasweep/pkg/catalog"
	"github.com/mediasweep/mediasweep/pkg/classify"
	"github.com/mediasweep/mediasweep/pkg/metrics"
)

// Executor runs retention policies: it selects candidates, classifies each
// record's locators, reclaims the underlying storage through the matching
// backend, and records the outcome in the catalog.
//
// One Executor handles one run at a time; create a fresh Result-bearing Run
// call per policy. The executor holds no lock across backend calls, so a
// catalog store shared with live traffic stays responsive during a run.
type Executor struct {
	catalog  catalog.Store
	pins     backend.PinBackend
	objects  backend.ObjectBackend
	rules    classify.Rules
	selector *Selector
	pacer    *pacer.Pacer
	bcast    *Broadcaster
	gate     *Gate
	metrics  metrics.RetentionMetrics

	// now is a test hook.
	now func() time.Time
}

// ExecutorConfig carries the executor's collaborators. Catalog is required;
// a nil backend means records classified for that backend fail with a
// recorded item error instead of being silently dropped.
type ExecutorConfig struct {
	Catalog catalog.Store
	Pins    backend.PinBackend
	Objects backend.ObjectBackend
	Rules   classify.Rules

	// BatchPause is the delay inserted between batches. Zero disables
	// pacing.
	BatchPause time.Duration

	// Broadcaster receives progress events. Optional; a private one is
	// created when nil.
	Broadcaster *Broadcaster

	// Gate enables cooperative pause/resume. Optional.
	Gate *Gate

	// Metrics records run counters. Optional; defaults to the package
	// registry state.
	Metrics metrics.RetentionMetrics
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("executor: catalog store is required")
	}
	bcast := cfg.Broadcaster
	if bcast == nil {
		bcast = NewBroadcaster()
	}
	gate := cfg.Gate
	if gate == nil {
		gate = NewGate()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewRetentionMetrics()
	}
	return &Executor{
		catalog:  cfg.Catalog,
		pins:     cfg.Pins,
		objects:  cfg.Objects,
		rules:    cfg.Rules,
		selector: NewSelector(cfg.Catalog, cfg.Rules),
		pacer:    pacer.New(cfg.BatchPause),
		bcast:    bcast,
		gate:     gate,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// Broadcaster returns the broadcaster progress events are published on.
func (e *Executor) Broadcaster() *Broadcaster {
	return e.bcast
}

// Gate returns the gate controlling pause/resume for runs of this executor.
func (e *Executor) Gate() *Gate {
	return e.gate
}

// Run executes the policy to completion.
//
// The run is divided into batches with a pacing delay between them. Each
// record is re-fetched immediately before mutation so a record cleaned by a
// concurrent run is skipped without touching the backends again. Item
// failures are recorded in the result and never abort the run; only
// context cancellation stops it early, and even then Run returns a result
// describing the work already done. Cancellation is consumed between
// records: the record in flight when it arrives is completed and stamped
// before the run stops.
func (e *Executor) Run(ctx context.Context, policy Policy) (*Result, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		OperationID: uuid.New().String(),
		Policy:      policy.Name,
		StartTime:   e.now(),
		Status:      StatusRunning,
	}

	records, err := e.selector.Select(ctx, policy)
	if err != nil {
		// Cancelled is reserved for operator stops; a catalog failure is
		// an errored run.
		if ctx.Err() != nil {
			result.Status = StatusCancelled
		} else {
			result.Status = StatusCompletedWithErrors
		}
		result.EndTime = e.now()
		return result, fmt.Errorf("selection failed: %w", err)
	}
	result.Selected = len(records)

	batchSize := policy.EffectiveBatchSize()
	totalBatches := (len(records) + batchSize - 1) / batchSize

	logger.Info("Run %s [%s]: %d candidates in %d batches of up to %d",
		result.OperationID, policy.Name, len(records), totalBatches, batchSize)

	// seen dedups locators shared across records within this run. Keys are
	// namespaced by mutation type so a hash and an object key can never
	// collide.
	seen := make(map[string]struct{})

	e.publish(result, 0, totalBatches)

	for start := 0; start < len(records); start += batchSize {
		batchNum := start/batchSize + 1
		// The pacer's burst token lets the first batch through immediately;
		// every later batch waits out the configured interval.
		if err := e.pacer.Wait(ctx); err != nil {
			return e.finish(ctx, result, batchNum, totalBatches), err
		}

		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		for _, rec := range records[start:end] {
			if err := e.gate.Wait(ctx); err != nil {
				return e.finish(ctx, result, batchNum, totalBatches), err
			}
			if ctx.Err() != nil {
				return e.finish(ctx, result, batchNum, totalBatches), ctx.Err()
			}

			// The checks above are the only stop points. A cancel that
			// lands mid-record must not abort the item: a record whose
			// backend mutation already happened still needs its catalog
			// stamp, or a re-run would repeat the mutation.
			e.processRecord(context.WithoutCancel(ctx), policy, rec.ID, result, seen)
			result.Processed++
			e.publish(result, batchNum, totalBatches)
		}
		e.publish(result, batchNum, totalBatches)
	}

	return e.finish(ctx, result, totalBatches, totalBatches), nil
}

// finish stamps the terminal status, records metrics, and publishes the
// final progress event.
func (e *Executor) finish(ctx context.Context, result *Result, batch, totalBatches int) *Result {
	result.EndTime = e.now()
	switch {
	case ctx.Err() != nil:
		result.Status = StatusCancelled
	case len(result.Errors) > 0:
		result.Status = StatusCompletedWithErrors
	default:
		result.Status = StatusCompleted
	}
	e.metrics.RunCompleted(string(result.Status))

	e.publish(result, batch, totalBatches)
	logger.Info("%s", result.Summary())
	return result
}

func (e *Executor) publish(result *Result, batch, totalBatches int) {
	e.bcast.Publish(Event{
		OperationID:  result.OperationID,
		Policy:       result.Policy,
		Processed:    result.Processed,
		Total:        result.Selected,
		CurrentBatch: batch,
		TotalBatches: totalBatches,
		Errors:       append([]ItemError(nil), result.Errors...),
		Status:       result.Status,
	})
}

// processRecord handles a single candidate: re-fetch, classify, reclaim
// storage, and mark the catalog. Failures become item errors on the result.
func (e *Executor) processRecord(ctx context.Context, policy Policy, id string, result *Result, seen map[string]struct{}) {
	// Re-fetch for a fresh view: the selection snapshot may be minutes old
	// by the time a late batch reaches this record.
	rec, err := e.catalog.GetByID(ctx, id)
	if err != nil {
		e.itemError(result, id, fmt.Errorf("failed to re-fetch record: %w", err))
		return
	}

	if rec.Cleaned() {
		// Another run claimed it between selection and now. Not an error.
		logger.Debug("Record %s already cleaned, skipping", id)
		result.SkippedClaimed++
		e.metrics.RecordProcessed("skipped_claimed")
		return
	}

	cls := classify.Classify(rec, e.rules)

	if cls.Kind == classify.KindUnknown && !rec.Orphaned() {
		// A locator we cannot attribute to a backend. Deleting blind risks
		// someone else's data, so the record is left untouched.
		e.itemError(result, id, fmt.Errorf("unclassifiable locator %q", rec.StorageLocator))
		return
	}

	if !rec.Orphaned() {
		if err := e.reclaim(ctx, cls, result, seen); err != nil {
			e.itemError(result, id, err)
			return
		}
	}

	meta := catalog.CleanupMeta{
		CleanedAt:      e.now(),
		Reason:         fmt.Sprintf("retention policy %q", policy.Name),
		Backend:        cls.Kind.String(),
		OriginalStatus: rec.Status,
	}
	if err := e.catalog.MarkCleaned(ctx, id, meta); err != nil {
		var storeErr *catalog.StoreError
		if errors.As(err, &storeErr) && storeErr.Code == catalog.ErrAlreadyCleaned {
			// Lost the race after our backend work. The backends are
			// idempotent, so the duplicate mutations were harmless.
			result.SkippedClaimed++
			e.metrics.RecordProcessed("skipped_claimed")
			return
		}
		e.itemError(result, id, fmt.Errorf("failed to mark record cleaned: %w", err))
		return
	}
	if err := e.catalog.SetStatus(ctx, id, catalog.StatusDeleted); err != nil {
		e.itemError(result, id, fmt.Errorf("failed to set status deleted: %w", err))
		return
	}

	result.MarkedCleaned++
	result.BytesFreed += rec.SizeBytes
	e.metrics.RecordProcessed("cleaned")
	e.metrics.BytesFreed(rec.SizeBytes)
}

// reclaim releases the record's storage through the backend its
// classification names. Locators already released earlier in this run are
// skipped.
func (e *Executor) reclaim(ctx context.Context, cls classify.Classification, result *Result, seen map[string]struct{}) error {
	for _, hash := range cls.Hashes {
		key := "pin:" + hash
		if _, dup := seen[key]; dup {
			result.DuplicatesSkipped++
			e.metrics.DuplicateSkipped()
			continue
		}
		if e.pins == nil {
			return fmt.Errorf("no pin backend configured for hash %s", hash)
		}
		removed, err := e.pins.Unpin(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to unpin %s: %w", hash, err)
		}
		seen[key] = struct{}{}
		if removed {
			result.Unpinned++
			e.metrics.BackendMutation("content_addressed", "unpin")
		}
	}

	for _, file := range cls.Files {
		key := "obj:" + file
		if _, dup := seen[key]; dup {
			result.DuplicatesSkipped++
			e.metrics.DuplicateSkipped()
			continue
		}
		if e.objects == nil {
			return fmt.Errorf("no object backend configured for key %s", file)
		}
		removed, err := e.objects.Delete(ctx, file)
		if err != nil {
			return fmt.Errorf("failed to delete object %s: %w", file, err)
		}
		seen[key] = struct{}{}
		if removed {
			result.ObjectsDeleted++
			e.metrics.BackendMutation("object_store", "delete")
		}
	}

	for _, prefix := range cls.Prefixes {
		key := "pfx:" + prefix
		if _, dup := seen[key]; dup {
			result.DuplicatesSkipped++
			e.metrics.DuplicateSkipped()
			continue
		}
		if e.objects == nil {
			return fmt.Errorf("no object backend configured for prefix %s", prefix)
		}
		res, err := e.objects.DeleteByPrefix(ctx, prefix)
		if err != nil {
			return fmt.Errorf("failed to delete prefix %s: %w", prefix, err)
		}
		if res.Errors > 0 {
			return fmt.Errorf("prefix %s: %d of %d objects failed to delete", prefix, res.Errors, res.Deleted+res.Errors)
		}
		seen[key] = struct{}{}
		result.PrefixesDeleted++
		result.ObjectsDeleted += res.Deleted
		e.metrics.BackendMutation("object_store", "delete_prefix")
	}

	return nil
}

func (e *Executor) itemError(result *Result, id string, err error) {
	logger.Warn("Record %s: %v", id, err)
	result.Errors = append(result.Errors, ItemError{RecordID: id, Message: err.Error()})
	e.metrics.RecordProcessed("error")
}
