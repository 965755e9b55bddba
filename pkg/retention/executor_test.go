package retention

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediasweep/mediasweep/pkg/backend"
	"github.com/mediasweep/mediasweep/pkg/backend/backendtest"
	"github.com/mediasweep/mediasweep/pkg/catalog"
	"github.com/mediasweep/mediasweep/pkg/catalog/memory"
	"github.com/mediasweep/mediasweep/pkg/classify"
)

// hashLocator builds a syntactically valid content-address hash from a
// single base58 fill character.
func hashLocator(fill string) string {
	return "Qm" + strings.Repeat(fill, 44)
}

func testRecord(id string, ageDays int, status catalog.Status, locator string) catalog.ContentRecord {
	return catalog.ContentRecord{
		ID:             id,
		Owner:          "user-1",
		CreatedAt:      time.Now().Add(-time.Duration(ageDays) * 24 * time.Hour),
		SizeBytes:      1000,
		Status:         status,
		StorageLocator: locator,
	}
}

func newTestExecutor(t *testing.T, store catalog.Store, pins backend.PinBackend, objects backend.ObjectBackend) *Executor {
	t.Helper()
	exec, err := NewExecutor(ExecutorConfig{
		Catalog: store,
		Pins:    pins,
		Objects: objects,
		Rules:   classify.DefaultRules(),
	})
	require.NoError(t, err)
	return exec
}

func failedPolicy() Policy {
	return Policy{
		Name:       "failed-uploads",
		StatusIn:   []catalog.Status{catalog.StatusFailed, catalog.StatusEncodingFailed},
		MinAgeDays: 7,
	}
}

func TestRunCleansContentAddressedRecord(t *testing.T) {
	hash := hashLocator("a")
	store := memory.NewMemoryCatalogStore()
	require.NoError(t, store.Put(context.Background(), testRecord("rec-1", 30, catalog.StatusFailed, hash)))

	pins := backendtest.NewFakePinBackend(hash)
	objects := backendtest.NewFakeObjectBackend()
	exec := newTestExecutor(t, store, pins, objects)

	result, err := exec.Run(context.Background(), failedPolicy())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, result.Selected)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.MarkedCleaned)
	assert.Equal(t, 1, result.Unpinned)
	assert.Equal(t, uint64(1000), result.BytesFreed)
	assert.Empty(t, result.Errors)
	assert.False(t, pins.Pinned(hash))

	rec, err := store.GetByID(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.True(t, rec.Cleaned())
	assert.Equal(t, catalog.StatusDeleted, rec.Status)
	assert.Equal(t, catalog.StatusFailed, rec.CleanupMeta.OriginalStatus)
	assert.Equal(t, "content_addressed", rec.CleanupMeta.Backend)
	assert.Contains(t, rec.CleanupMeta.Reason, "failed-uploads")
}

func TestRunIsIdempotent(t *testing.T) {
	hash := hashLocator("b")
	store := memory.NewMemoryCatalogStore()
	require.NoError(t, store.Put(context.Background(), testRecord("rec-1", 30, catalog.StatusFailed, hash)))

	pins := backendtest.NewFakePinBackend(hash)
	objects := backendtest.NewFakeObjectBackend()
	exec := newTestExecutor(t, store, pins, objects)

	first, err := exec.Run(context.Background(), failedPolicy())
	require.NoError(t, err)
	require.Equal(t, 1, first.MarkedCleaned)

	// The record gained cleanup metadata, so the second run must select
	// nothing and touch nothing.
	second, err := exec.Run(context.Background(), failedPolicy())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, second.Status)
	assert.Equal(t, 0, second.Selected)
	assert.Equal(t, 0, second.MarkedCleaned)
	assert.Equal(t, 1, pins.UnpinCount(hash))
	assert.Equal(t, 0, objects.MutationCount())
}

func TestRunCleansObjectStoreRecord(t *testing.T) {
	loc := "media/rec-1/master.m3u8"
	store := memory.NewMemoryCatalogStore()
	require.NoError(t, store.Put(context.Background(), testRecord("rec-1", 30, catalog.StatusFailed, loc)))

	objects := backendtest.NewFakeObjectBackend(
		loc,
		"media/rec-1/720p.m3u8",
		"media/rec-1/720p/seg0.ts",
		"media/rec-1/720p/seg1.ts",
		"media/rec-1/thumbs/0.jpg",
		"media/other/master.m3u8", // unrelated, must survive
	)
	pins := backendtest.NewFakePinBackend()
	exec := newTestExecutor(t, store, pins, objects)

	result, err := exec.Run(context.Background(), failedPolicy())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, result.MarkedCleaned)
	assert.False(t, objects.Has(loc))
	assert.False(t, objects.Has("media/rec-1/720p.m3u8"))
	assert.False(t, objects.Has("media/rec-1/720p/seg0.ts"))
	assert.False(t, objects.Has("media/rec-1/thumbs/0.jpg"))
	assert.True(t, objects.Has("media/other/master.m3u8"))

	// Every derived prefix is swept exactly once.
	assert.Equal(t, 1, objects.PrefixCount("media/rec-1/720p/"))
	assert.Equal(t, 1, objects.PrefixCount("media/rec-1/thumbs/"))
}

func TestRunDeletesOriginalAlongsideProcessedOutput(t *testing.T) {
	hash := hashLocator("c")
	original := "originals/rec-1/upload.mp4"
	rec := testRecord("rec-1", 30, catalog.StatusFailed, hash)
	rec.OriginalLocator = original

	store := memory.NewMemoryCatalogStore()
	require.NoError(t, store.Put(context.Background(), rec))

	pins := backendtest.NewFakePinBackend(hash)
	objects := backendtest.NewFakeObjectBackend(original)
	exec := newTestExecutor(t, store, pins, objects)

	result, err := exec.Run(context.Background(), failedPolicy())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Unpinned)
	assert.Equal(t, 1, result.ObjectsDeleted)
	assert.False(t, pins.Pinned(hash))
	assert.False(t, objects.Has(original))
}

func TestRunDeduplicatesSharedLocators(t *testing.T) {
	hash := hashLocator("d")
	recA := testRecord("rec-a", 40, catalog.StatusFailed, hash)
	recB := testRecord("rec-b", 30, catalog.StatusFailed, hash)

	store := memory.NewMemoryCatalogStore()
	require.NoError(t, store.Put(context.Background(), recA))
	require.NoError(t, store.Put(context.Background(), recB))

	pins := backendtest.NewFakePinBackend(hash)
	exec := newTestExecutor(t, store, pins, backendtest.NewFakeObjectBackend())

	result, err := exec.Run(context.Background(), failedPolicy())
	require.NoError(t, err)

	// One backend call, but both records end up cleaned.
	assert.Equal(t, 1, pins.UnpinCount(hash))
	assert.Equal(t, 2, result.MarkedCleaned)
	assert.Equal(t, 1, result.DuplicatesSkipped)
	assert.Equal(t, StatusCompleted, result.Status)
}

func TestRunDeduplicatesSharedObjectPrefixes(t *testing.T) {
	loc := "media/shared/master.m3u8"
	recA := testRecord("rec-a", 40, catalog.StatusFailed, loc)
	recB := testRecord("rec-b", 30, catalog.StatusFailed, loc)

	store := memory.NewMemoryCatalogStore()
	require.NoError(t, store.Put(context.Background(), recA))
	require.NoError(t, store.Put(context.Background(), recB))

	objects := backendtest.NewFakeObjectBackend(
		loc,
		"media/shared/720p/seg0.ts",
		"media/shared/thumbs/0.jpg",
	)
	exec := newTestExecutor(t, store, backendtest.NewFakePinBackend(), objects)

	result, err := exec.Run(context.Background(), failedPolicy())
	require.NoError(t, err)

	// Both records derive the same object set; each prefix is swept once
	// and each file deleted once, yet both records end up cleaned.
	assert.Equal(t, 1, objects.PrefixCount("media/shared/720p/"))
	assert.Equal(t, 1, objects.PrefixCount("media/shared/thumbs/"))
	assert.Equal(t, 2, result.MarkedCleaned)
	assert.Positive(t, result.DuplicatesSkipped)
	assert.Equal(t, StatusCompleted, result.Status)

	recs := []string{"rec-a", "rec-b"}
	for _, id := range recs {
		rec, err := store.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, rec.Cleaned())
	}
}

// brokenQueryStore fails every Query to simulate a catalog outage.
type brokenQueryStore struct {
	catalog.Store
}

func (brokenQueryStore) Query(context.Context, catalog.Query) ([]catalog.ContentRecord, error) {
	return nil, errors.New("catalog unavailable")
}

func TestRunReportsSelectionFailureAsErrored(t *testing.T) {
	store := brokenQueryStore{Store: memory.NewMemoryCatalogStore()}
	exec := newTestExecutor(t, store, backendtest.NewFakePinBackend(), backendtest.NewFakeObjectBackend())

	result, err := exec.Run(context.Background(), failedPolicy())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selection failed")

	// A store outage is an errored run, not an operator cancellation.
	assert.Equal(t, StatusCompletedWithErrors, result.Status)
	assert.False(t, result.EndTime.IsZero())
}

func TestRunIsolatesItemFailures(t *testing.T) {
	hashBad := hashLocator("e")
	hashGood := hashLocator("f")
	store := memory.NewMemoryCatalogStore()
	require.NoError(t, store.Put(context.Background(), testRecord("rec-bad", 40, catalog.StatusFailed, hashBad)))
	require.NoError(t, store.Put(context.Background(), testRecord("rec-good", 30, catalog.StatusFailed, hashGood)))

	pins := backendtest.NewFakePinBackend(hashBad, hashGood)
	pins.FailWith[hashBad] = backendtest.Err(hashBad)
	exec := newTestExecutor(t, store, pins, backendtest.NewFakeObjectBackend())

	result, err := exec.Run(context.Background(), failedPolicy())
	require.NoError(t, err)

	assert.Equal(t, StatusCompletedWithErrors, result.Status)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.MarkedCleaned)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "rec-bad", result.Errors[0].RecordID)

	// The failed record keeps its state so a later run can retry it.
	bad, err := store.GetByID(context.Background(), "rec-bad")
	require.NoError(t, err)
	assert.False(t, bad.Cleaned())
	assert.Equal(t, catalog.StatusFailed, bad.Status)

	good, err := store.GetByID(context.Background(), "rec-good")
	require.NoError(t, err)
	assert.True(t, good.Cleaned())
}

func TestRunRefusesUnclassifiableLocator(t *testing.T) {
	// A bare 32-char hex token is an upload-session artifact, not a
	// deletable object.
	token := strings.Repeat("ab", 16)
	store := memory.NewMemoryCatalogStore()
	require.NoError(t, store.Put(context.Background(), testRecord("rec-1", 30, catalog.StatusFailed, token)))

	pins := backendtest.NewFakePinBackend()
	objects := backendtest.NewFakeObjectBackend()
	exec := newTestExecutor(t, store, pins, objects)

	result, err := exec.Run(context.Background(), failedPolicy())
	require.NoError(t, err)

	assert.Equal(t, StatusCompletedWithErrors, result.Status)
	assert.Equal(t, 0, result.MarkedCleaned)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "unclassifiable")
	assert.Empty(t, pins.UnpinCalls)
	assert.Equal(t, 0, objects.MutationCount())

	rec, err := store.GetByID(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.False(t, rec.Cleaned())
}

func TestRunCleansOrphanedRecordWithoutBackendCalls(t *testing.T) {
	store := memory.NewMemoryCatalogStore()
	require.NoError(t, store.Put(context.Background(), testRecord("rec-1", 60, catalog.StatusActive, "")))

	pins := backendtest.NewFakePinBackend()
	objects := backendtest.NewFakeObjectBackend()
	exec := newTestExecutor(t, store, pins, objects)

	result, err := exec.Run(context.Background(), OrphanedRecords())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, result.MarkedCleaned)
	assert.Empty(t, pins.UnpinCalls)
	assert.Equal(t, 0, objects.MutationCount())

	rec, err := store.GetByID(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.True(t, rec.Cleaned())
	assert.Equal(t, "unknown", rec.CleanupMeta.Backend)
}

// hookedPins triggers a callback on the first Unpin, letting tests mutate
// the catalog mid-run to simulate a concurrent engine.
type hookedPins struct {
	*backendtest.FakePinBackend
	once    bool
	onUnpin func()
}

func (h *hookedPins) Unpin(ctx context.Context, hash string) (bool, error) {
	if !h.once {
		h.once = true
		h.onUnpin()
	}
	return h.FakePinBackend.Unpin(ctx, hash)
}

func TestRunSkipsRecordClaimedByConcurrentRun(t *testing.T) {
	hashA := hashLocator("g")
	hashB := hashLocator("h")
	store := memory.NewMemoryCatalogStore()
	require.NoError(t, store.Put(context.Background(), testRecord("rec-a", 40, catalog.StatusFailed, hashA)))
	require.NoError(t, store.Put(context.Background(), testRecord("rec-b", 30, catalog.StatusFailed, hashB)))

	// While rec-a (oldest, processed first) is being unpinned, another run
	// claims rec-b.
	pins := &hookedPins{
		FakePinBackend: backendtest.NewFakePinBackend(hashA, hashB),
		onUnpin: func() {
			meta := catalog.CleanupMeta{
				CleanedAt:      time.Now(),
				Reason:         "concurrent run",
				Backend:        "content_addressed",
				OriginalStatus: catalog.StatusFailed,
			}
			require.NoError(t, store.MarkCleaned(context.Background(), "rec-b", meta))
		},
	}
	exec := newTestExecutor(t, store, pins, backendtest.NewFakeObjectBackend())

	result, err := exec.Run(context.Background(), failedPolicy())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, result.MarkedCleaned)
	assert.Equal(t, 1, result.SkippedClaimed)
	assert.Empty(t, result.Errors)

	// rec-b's backend was never touched by this run.
	assert.Equal(t, 0, pins.UnpinCount(hashB))
}

func TestRunStopsOnCancellation(t *testing.T) {
	store := memory.NewMemoryCatalogStore()
	hashes := []string{hashLocator("i"), hashLocator("j"), hashLocator("k")}
	ids := []string{"rec-1", "rec-2", "rec-3"}
	for i, h := range hashes {
		require.NoError(t, store.Put(context.Background(), testRecord(ids[i], 40-i, catalog.StatusFailed, h)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	pins := &hookedPins{
		FakePinBackend: backendtest.NewFakePinBackend(hashes...),
		onUnpin:        cancel,
	}
	exec := newTestExecutor(t, store, pins, backendtest.NewFakeObjectBackend())

	result, err := exec.Run(ctx, failedPolicy())
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, StatusCancelled, result.Status)
	assert.Equal(t, 3, result.Selected)
	assert.Less(t, result.Processed, result.Selected)
	// The in-flight record finished; the rest were never started. A cancel
	// arriving mid-record is not an item failure.
	assert.Equal(t, 1, result.MarkedCleaned)
	assert.Empty(t, result.Errors)

	// Its cleanup stamp is durable even though the backend call was
	// running when the cancel arrived.
	rec, err := store.GetByID(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.True(t, rec.Cleaned())
	assert.Equal(t, catalog.StatusDeleted, rec.Status)
	assert.Equal(t, 0, pins.UnpinCount(hashes[1]))
	assert.Equal(t, 0, pins.UnpinCount(hashes[2]))
}

func TestRunHonorsPauseGate(t *testing.T) {
	hash := hashLocator("m")
	store := memory.NewMemoryCatalogStore()
	require.NoError(t, store.Put(context.Background(), testRecord("rec-1", 30, catalog.StatusFailed, hash)))

	gate := NewGate()
	gate.Pause()

	exec, err := NewExecutor(ExecutorConfig{
		Catalog: store,
		Pins:    backendtest.NewFakePinBackend(hash),
		Objects: backendtest.NewFakeObjectBackend(),
		Rules:   classify.DefaultRules(),
		Gate:    gate,
	})
	require.NoError(t, err)

	done := make(chan *Result, 1)
	go func() {
		result, runErr := exec.Run(context.Background(), failedPolicy())
		require.NoError(t, runErr)
		done <- result
	}()

	select {
	case <-done:
		t.Fatal("run finished while gate was paused")
	case <-time.After(50 * time.Millisecond):
	}

	gate.Resume()
	select {
	case result := <-done:
		assert.Equal(t, StatusCompleted, result.Status)
		assert.Equal(t, 1, result.MarkedCleaned)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after resume")
	}
}

func TestRunPublishesProgressEvents(t *testing.T) {
	store := memory.NewMemoryCatalogStore()
	for i, fill := range []string{"n", "p", "q"} {
		id := []string{"rec-1", "rec-2", "rec-3"}[i]
		require.NoError(t, store.Put(context.Background(), testRecord(id, 40-i, catalog.StatusFailed, hashLocator(fill))))
	}

	bcast := NewBroadcaster()
	sub := NewChannelSubscriber(32)
	bcast.Subscribe(sub)

	exec, err := NewExecutor(ExecutorConfig{
		Catalog:     store,
		Pins:        backendtest.NewFakePinBackend(hashLocator("n"), hashLocator("p"), hashLocator("q")),
		Objects:     backendtest.NewFakeObjectBackend(),
		Rules:       classify.DefaultRules(),
		Broadcaster: bcast,
	})
	require.NoError(t, err)

	policy := failedPolicy()
	policy.BatchSize = 2

	result, err := exec.Run(context.Background(), policy)
	require.NoError(t, err)
	sub.Close()

	var events []Event
	for ev := range sub.Events() {
		events = append(events, ev)
	}
	require.NotEmpty(t, events)

	// Processed never decreases, every event carries the run identity, and
	// the final event is terminal.
	prev := 0
	for _, ev := range events {
		assert.Equal(t, result.OperationID, ev.OperationID)
		assert.Equal(t, "failed-uploads", ev.Policy)
		assert.Equal(t, 3, ev.Total)
		assert.Equal(t, 2, ev.TotalBatches)
		assert.GreaterOrEqual(t, ev.Processed, prev)
		prev = ev.Processed
	}
	last := events[len(events)-1]
	assert.Equal(t, StatusCompleted, last.Status)
	assert.Equal(t, 3, last.Processed)
}

func TestRunTracksBytesFreedOnlyForCleanedRecords(t *testing.T) {
	hashOK := hashLocator("r")
	hashFail := hashLocator("s")
	recOK := testRecord("rec-ok", 40, catalog.StatusFailed, hashOK)
	recOK.SizeBytes = 4096
	recFail := testRecord("rec-fail", 30, catalog.StatusFailed, hashFail)
	recFail.SizeBytes = 8192

	store := memory.NewMemoryCatalogStore()
	require.NoError(t, store.Put(context.Background(), recOK))
	require.NoError(t, store.Put(context.Background(), recFail))

	pins := backendtest.NewFakePinBackend(hashOK, hashFail)
	pins.FailWith[hashFail] = backendtest.Err(hashFail)
	exec := newTestExecutor(t, store, pins, backendtest.NewFakeObjectBackend())

	result, err := exec.Run(context.Background(), failedPolicy())
	require.NoError(t, err)

	assert.Equal(t, uint64(4096), result.BytesFreed)
}

func TestRunRespectsBatchPause(t *testing.T) {
	store := memory.NewMemoryCatalogStore()
	for i, fill := range []string{"t", "u"} {
		id := []string{"rec-1", "rec-2"}[i]
		require.NoError(t, store.Put(context.Background(), testRecord(id, 40-i, catalog.StatusFailed, hashLocator(fill))))
	}

	exec, err := NewExecutor(ExecutorConfig{
		Catalog:    store,
		Pins:       backendtest.NewFakePinBackend(hashLocator("t"), hashLocator("u")),
		Objects:    backendtest.NewFakeObjectBackend(),
		Rules:      classify.DefaultRules(),
		BatchPause: 30 * time.Millisecond,
	})
	require.NoError(t, err)

	policy := failedPolicy()
	policy.BatchSize = 1

	start := time.Now()
	result, err := exec.Run(context.Background(), policy)
	require.NoError(t, err)

	assert.Equal(t, 2, result.MarkedCleaned)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
