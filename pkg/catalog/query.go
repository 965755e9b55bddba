package catalog

import "time"

// DefaultScanHorizon bounds every query in time even when the caller sets no
// minimum age. Unbounded scans over a multi-year catalog are how a nightly
// cleanup job turns into a full table walk; queries never look at records
// newer than now minus this horizon unless the predicate narrows it further.
const DefaultScanHorizon = time.Hour

// Query is the candidate-selection predicate evaluated by catalog stores.
//
// All filter fields are conjunctive; zero values mean "no constraint" except
// IncludeCleaned, whose zero value deliberately excludes records that already
// carry CleanupMeta. Results are ordered oldest-first and bounded by Limit.
type Query struct {
	// OwnerIn restricts to records whose Owner is in the set.
	OwnerIn []string

	// StatusIn restricts to records whose Status is in the set.
	StatusIn []Status

	// CreatedBefore is the server-side time bound. Stores must apply it
	// even when zero by substituting now minus DefaultScanHorizon.
	CreatedBefore time.Time

	// MinViews/MaxViews bound the engagement signal. MaxViews of 0 means
	// no upper bound.
	MinViews uint64
	MaxViews uint64

	// OrphanedOnly restricts to records with no locator at all.
	OrphanedOnly bool

	// IncludeCleaned opts in to records already processed by the engine.
	// The default (false) is what makes re-runs idempotent.
	IncludeCleaned bool

	// Limit bounds the result set. Zero means DefaultQueryLimit.
	Limit int
}

// DefaultQueryLimit caps result sets when the caller doesn't set one.
const DefaultQueryLimit = 1000

// EffectiveLimit returns the bounded result size for this query.
func (q *Query) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultQueryLimit
	}
	return q.Limit
}

// EffectiveCreatedBefore returns the time bound to apply, substituting the
// default horizon when the caller set none.
func (q *Query) EffectiveCreatedBefore(now time.Time) time.Time {
	if q.CreatedBefore.IsZero() {
		return now.Add(-DefaultScanHorizon)
	}
	return q.CreatedBefore
}

// Matches reports whether a record satisfies every filter of the query.
//
// The time bound must be resolved by the caller (stores pass the result of
// EffectiveCreatedBefore) so that one query evaluates against one instant.
func (q *Query) Matches(rec *ContentRecord, createdBefore time.Time) bool {
	if !rec.CreatedAt.Before(createdBefore) {
		return false
	}

	if !q.IncludeCleaned && rec.Cleaned() {
		return false
	}

	if len(q.OwnerIn) > 0 && !containsString(q.OwnerIn, rec.Owner) {
		return false
	}

	if len(q.StatusIn) > 0 && !containsStatus(q.StatusIn, rec.Status) {
		return false
	}

	if rec.ViewCount < q.MinViews {
		return false
	}
	if q.MaxViews > 0 && rec.ViewCount > q.MaxViews {
		return false
	}

	if q.OrphanedOnly && !rec.Orphaned() {
		return false
	}

	return true
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsStatus(set []Status, v Status) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
