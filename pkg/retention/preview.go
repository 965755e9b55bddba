package retention

import (
	"context"
	"time"

	"github.com/mediasweep/mediasweep/pkg/catalog"
	"github.com/mediasweep/mediasweep/pkg/classify"
)

// PreviewSampleSize is how many concrete records a preview includes so an
// operator can eyeball what the policy is about to retire.
const PreviewSampleSize = 10

// Preview describes what a policy would do, computed without performing a
// single mutation on the catalog or either backend.
type Preview struct {
	Policy string `json:"policy"`

	// Total and TotalBytes cover every matched record.
	Total      int    `json:"total"`
	TotalBytes uint64 `json:"total_bytes"`

	// ByKind breaks the matches down by backend classification, keyed by
	// classify.Kind strings ("content_addressed", "object_store",
	// "unknown").
	ByKind map[string]int `json:"by_kind"`

	// OldestAge and NewestAge bracket the matched records' ages.
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`

	// Sample holds up to PreviewSampleSize matched records, oldest first.
	Sample []catalog.ContentRecord `json:"sample"`
}

// Analyzer computes previews. It shares its Selector and classification
// rules with the Executor, so the preview describes exactly the records an
// execution of the same policy would visit.
type Analyzer struct {
	selector *Selector
	rules    classify.Rules
	now      func() time.Time
}

// NewAnalyzer creates an Analyzer over the given catalog store.
func NewAnalyzer(store catalog.Store, rules classify.Rules) *Analyzer {
	return &Analyzer{
		selector: NewSelector(store, rules),
		rules:    rules,
		now:      time.Now,
	}
}

// Preview evaluates the policy read-only and reports what an execution
// would retire.
func (a *Analyzer) Preview(ctx context.Context, policy Policy) (*Preview, error) {
	records, err := a.selector.Select(ctx, policy)
	if err != nil {
		return nil, err
	}

	p := &Preview{
		Policy: policy.Name,
		Total:  len(records),
		ByKind: make(map[string]int),
	}

	now := a.now()
	for i := range records {
		rec := &records[i]
		p.TotalBytes += rec.SizeBytes
		p.ByKind[classify.Classify(rec, a.rules).Kind.String()]++

		age := rec.Age(now)
		if age > p.OldestAge {
			p.OldestAge = age
		}
		if p.NewestAge == 0 || age < p.NewestAge {
			p.NewestAge = age
		}
	}

	n := len(records)
	if n > PreviewSampleSize {
		n = PreviewSampleSize
	}
	p.Sample = append(p.Sample, records[:n]...)

	return p, nil
}
