package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/mediasweep/mediasweep/pkg/catalog"
	"github.com/mediasweep/mediasweep/pkg/classify"
)

// Selector translates a Policy into a catalog query and applies the
// post-query filters the catalog cannot evaluate itself (backend kind,
// which requires classification).
//
// Both preview and execution go through the same Selector so the records a
// preview reports are exactly the records a run would touch.
type Selector struct {
	store catalog.Store
	rules classify.Rules

	// now is a test hook.
	now func() time.Time
}

// NewSelector creates a Selector over the given catalog store using the
// given classification rules.
func NewSelector(store catalog.Store, rules classify.Rules) *Selector {
	return &Selector{
		store: store,
		rules: rules,
		now:   time.Now,
	}
}

// Select returns the candidate records for the policy, oldest first.
//
// Cleaned records are excluded unless the policy opts in, and every record
// is bounded away from "now" by the scan horizon so in-flight uploads are
// never swept up.
func (s *Selector) Select(ctx context.Context, policy Policy) ([]catalog.ContentRecord, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	q := s.buildQuery(policy)

	records, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates for policy %q: %w", policy.Name, err)
	}

	if policy.BackendKind == "" {
		return records, nil
	}

	kind := classify.ParseKind(policy.BackendKind)
	filtered := records[:0]
	for i := range records {
		if classify.Classify(&records[i], s.rules).Kind == kind {
			filtered = append(filtered, records[i])
		}
	}
	return filtered, nil
}

func (s *Selector) buildQuery(policy Policy) catalog.Query {
	q := catalog.Query{
		OwnerIn:        policy.OwnerIn,
		StatusIn:       policy.StatusIn,
		MinViews:       policy.MinViews,
		MaxViews:       policy.MaxViews,
		OrphanedOnly:   policy.OrphanedOnly,
		IncludeCleaned: policy.IncludeCleaned,
		Limit:          policy.EffectiveLimit(),
	}
	if policy.MinAgeDays > 0 {
		q.CreatedBefore = s.now().Add(-time.Duration(policy.MinAgeDays) * 24 * time.Hour)
	}
	return q
}
