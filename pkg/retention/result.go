package retention

import (
	"fmt"
	"time"
)

// Result aggregates everything one engine run did. All counters count
// records or backend objects actually touched during this run; work skipped
// because another run got there first is counted separately.
type Result struct {
	OperationID string    `json:"operation_id"`
	Policy      string    `json:"policy"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      Status    `json:"status"`

	// Selected is how many candidates the policy matched; Processed is how
	// many the run actually visited (less than Selected on cancellation).
	Selected  int `json:"selected"`
	Processed int `json:"processed"`

	// MarkedCleaned counts records that gained cleanup metadata this run.
	MarkedCleaned int `json:"marked_cleaned"`

	// SkippedClaimed counts records another run cleaned first. These are
	// not errors.
	SkippedClaimed int `json:"skipped_claimed"`

	// Backend mutation counters.
	Unpinned          int `json:"unpinned"`
	ObjectsDeleted    int `json:"objects_deleted"`
	PrefixesDeleted   int `json:"prefixes_deleted"`
	DuplicatesSkipped int `json:"duplicates_skipped"`

	// BytesFreed sums the recorded size of every record marked cleaned.
	// An approximation: sizes come from the catalog, not the backends.
	BytesFreed uint64 `json:"bytes_freed"`

	Errors []ItemError `json:"errors,omitempty"`
}

// Duration returns how long the run took.
func (r *Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Summary returns a human-readable one-paragraph report of the run.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Run %s [%s] %s in %v: %d/%d records processed, %d cleaned "+
			"(%d unpinned, %d objects deleted, %d prefixes deleted, %d duplicate locators skipped), "+
			"%d claimed elsewhere, %s freed, %d errors",
		r.OperationID, r.Policy, r.Status, r.Duration().Round(time.Millisecond),
		r.Processed, r.Selected, r.MarkedCleaned,
		r.Unpinned, r.ObjectsDeleted, r.PrefixesDeleted, r.DuplicatesSkipped,
		r.SkippedClaimed, formatBytes(r.BytesFreed), len(r.Errors))
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
