// Package catalog defines the content catalog data model and the persistent
// store interface the retention engine works against.
//
// The catalog is owned by the upstream ingestion/processing pipeline; the
// retention engine only ever reads records, stamps cleanup metadata, and
// advances record status toward Deleted. It never removes catalog rows.
package catalog

import "time"

// Status is the lifecycle state of a content record.
//
// Transitions only move forward: once a record reaches StatusDeleted it is
// terminal and the engine never resurrects it.
type Status string

const (
	// StatusActive is normal, servable content.
	StatusActive Status = "active"

	// StatusProcessing is content currently being transcoded by the pipeline.
	StatusProcessing Status = "processing"

	// StatusFailed is content whose upload never completed.
	StatusFailed Status = "failed"

	// StatusEncodingFailed is content whose transcode pipeline failed,
	// leaving a source artifact but no playable resolutions.
	StatusEncodingFailed Status = "encoding_failed"

	// StatusManualReview is content flagged for human moderation.
	StatusManualReview Status = "manual_review"

	// StatusDeleted is the terminal state stamped by the retention engine.
	StatusDeleted Status = "deleted"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusProcessing, StatusFailed,
		StatusEncodingFailed, StatusManualReview, StatusDeleted:
		return true
	}
	return false
}

// CleanupMeta records that the retention engine processed a record.
//
// It is written at most once per logical cleanup pass: records carrying
// CleanupMeta are excluded from candidate selection by default, which is what
// makes re-running the same policy a no-op.
type CleanupMeta struct {
	// CleanedAt is when the backend mutation for this record succeeded.
	CleanedAt time.Time `json:"cleaned_at"`

	// Reason summarizes the policy that selected the record and the
	// status it had before cleanup.
	Reason string `json:"reason"`

	// Backend is the storage backend kind the record was classified as
	// at execution time ("content_addressed", "object_store", "unknown").
	Backend string `json:"backend"`

	// OriginalStatus is the record status immediately before the engine
	// advanced it to StatusDeleted.
	OriginalStatus Status `json:"original_status"`
}

// ContentRecord is the unit of work for the retention engine.
//
// Two records may reference the same underlying locator (a re-upload sharing
// a storage prefix, for example). The engine must delete that locator at most
// once per run while still marking both records cleaned.
type ContentRecord struct {
	// ID is an opaque, stable identifier assigned by the catalog.
	ID string `json:"id"`

	// Owner identifies the content creator; ownership-scoped policies
	// filter on it.
	Owner string `json:"owner"`

	// CreatedAt drives age-based predicates.
	CreatedAt time.Time `json:"created_at"`

	// SizeBytes is the best-effort stored size. Zero is valid (legacy rows
	// predate size tracking) and must not break byte accounting.
	SizeBytes uint64 `json:"size_bytes"`

	// ViewCount is an optional engagement signal.
	ViewCount uint64 `json:"view_count"`

	// Status is the record lifecycle state.
	Status Status `json:"status"`

	// StorageLocator is the primary pointer to the stored bytes: either a
	// content-address hash or an object-store key. May be empty for
	// orphaned records.
	StorageLocator string `json:"storage_locator,omitempty"`

	// OriginalLocator points at the pre-processing source artifact, which
	// is deletable independently of the processed output.
	OriginalLocator string `json:"original_locator,omitempty"`

	// CleanupMeta is present iff the retention engine has processed this
	// record at least once.
	CleanupMeta *CleanupMeta `json:"cleanup_meta,omitempty"`
}

// Cleaned reports whether the record has already been processed by the
// retention engine.
func (r *ContentRecord) Cleaned() bool {
	return r.CleanupMeta != nil
}

// Orphaned reports whether the record references no stored bytes at all.
func (r *ContentRecord) Orphaned() bool {
	return r.StorageLocator == "" && r.OriginalLocator == ""
}

// Age returns the record age relative to now.
func (r *ContentRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}
