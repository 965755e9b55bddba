// Package retention implements the policy-driven retention/purge engine:
// candidate selection, read-only preview, and resumable batch execution
// against the content-addressed and object-store backends.
package retention

import (
	"fmt"

	"github.com/mediasweep/mediasweep/pkg/catalog"
)

// Policy is the value object describing one retirement predicate plus the
// run-shaping knobs (limit, batch size).
//
// Historically every preset was its own command with its own copy of the
// select/classify/delete loop. The engine now has exactly one execution path,
// parameterized by this struct; presets are just named values.
type Policy struct {
	// Name labels the policy in cleanup reasons, logs, and progress events.
	Name string

	// OwnerIn restricts candidates to these content owners.
	OwnerIn []string

	// StatusIn restricts candidates to these lifecycle states.
	StatusIn []catalog.Status

	// MinAgeDays restricts candidates to records at least this old.
	MinAgeDays int

	// MinViews/MaxViews bound the engagement signal. Zero MaxViews means
	// no upper bound.
	MinViews uint64
	MaxViews uint64

	// BackendKind restricts candidates to one backend classification
	// ("content_addressed" or "object_store"); empty means any.
	BackendKind string

	// OrphanedOnly restricts candidates to records with no locator at all.
	OrphanedOnly bool

	// IncludeCleaned opts in to re-selecting already-processed records.
	// Leave false: the default exclusion is what makes re-runs no-ops.
	IncludeCleaned bool

	// Limit caps the records one run will consider (default 500).
	Limit int

	// BatchSize is the number of records per paced batch (default 25).
	BatchSize int
}

// Run-shaping defaults.
const (
	DefaultLimit     = 500
	DefaultBatchSize = 25
)

// Validate checks the policy for values the engine cannot execute.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy: name is required")
	}
	if p.Limit < 0 {
		return fmt.Errorf("policy %q: limit must not be negative", p.Name)
	}
	if p.BatchSize < 0 {
		return fmt.Errorf("policy %q: batch size must not be negative", p.Name)
	}
	if p.MaxViews > 0 && p.MinViews > p.MaxViews {
		return fmt.Errorf("policy %q: min_views %d exceeds max_views %d", p.Name, p.MinViews, p.MaxViews)
	}
	switch p.BackendKind {
	case "", "content_addressed", "object_store", "unknown":
	default:
		return fmt.Errorf("policy %q: unknown backend kind %q", p.Name, p.BackendKind)
	}
	for _, s := range p.StatusIn {
		if !s.Valid() {
			return fmt.Errorf("policy %q: unknown status %q", p.Name, s)
		}
	}
	return nil
}

// EffectiveLimit returns the bounded candidate count for this policy.
func (p *Policy) EffectiveLimit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	return p.Limit
}

// EffectiveBatchSize returns the batch size to execute with.
func (p *Policy) EffectiveBatchSize() int {
	if p.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return p.BatchSize
}

// Named presets. These are starting points; deployments tune the numbers in
// configuration rather than in code.

// FailedUploads retires records whose upload or transcode never completed.
func FailedUploads() Policy {
	return Policy{
		Name:       "failed-uploads",
		StatusIn:   []catalog.Status{catalog.StatusFailed, catalog.StatusEncodingFailed},
		MinAgeDays: 7,
	}
}

// ColdContent retires old content nobody watches anymore.
func ColdContent() Policy {
	return Policy{
		Name:       "cold-content",
		StatusIn:   []catalog.Status{catalog.StatusActive},
		MinAgeDays: 180,
		MaxViews:   500,
	}
}

// OrphanedRecords retires catalog rows that reference no stored bytes.
func OrphanedRecords() Policy {
	return Policy{
		Name:         "orphaned-records",
		OrphanedOnly: true,
		MinAgeDays:   30,
	}
}

// Presets returns the built-in policies by name.
func Presets() map[string]Policy {
	return map[string]Policy{
		"failed-uploads":   FailedUploads(),
		"cold-content":     ColdContent(),
		"orphaned-records": OrphanedRecords(),
	}
}
