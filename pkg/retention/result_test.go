package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResultSummary(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	r := &Result{
		OperationID:   "op-1",
		Policy:        "failed-uploads",
		StartTime:     start,
		EndTime:       start.Add(1500 * time.Millisecond),
		Status:        StatusCompleted,
		Selected:      10,
		Processed:     10,
		MarkedCleaned: 8,
		Unpinned:      5,
		BytesFreed:    2 * 1024 * 1024,
	}

	s := r.Summary()
	assert.Contains(t, s, "op-1")
	assert.Contains(t, s, "failed-uploads")
	assert.Contains(t, s, "10/10 records processed")
	assert.Contains(t, s, "8 cleaned")
	assert.Contains(t, s, "2.0 MiB freed")
	assert.Equal(t, 1500*time.Millisecond, r.Duration())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "1.5 GiB", formatBytes(3*1024*1024*1024/2))
}
