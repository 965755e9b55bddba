package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveCreatedBefore(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	q := &Query{}
	assert.Equal(t, now.Add(-DefaultScanHorizon), q.EffectiveCreatedBefore(now))

	bound := now.Add(-30 * 24 * time.Hour)
	q = &Query{CreatedBefore: bound}
	assert.Equal(t, bound, q.EffectiveCreatedBefore(now))
}

func TestEffectiveLimit(t *testing.T) {
	q := &Query{}
	assert.Equal(t, DefaultQueryLimit, q.EffectiveLimit())

	q.Limit = 25
	assert.Equal(t, 25, q.EffectiveLimit())
}

func TestQueryMatches(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	bound := now.Add(-time.Hour)

	base := ContentRecord{
		ID:             "rec-1",
		Owner:          "alice",
		CreatedAt:      now.Add(-48 * time.Hour),
		ViewCount:      10,
		Status:         StatusFailed,
		StorageLocator: "media/rec-1/master.m3u8",
	}

	tests := []struct {
		name   string
		query  Query
		mutate func(*ContentRecord)
		want   bool
	}{
		{"no filters", Query{}, nil, true},
		{
			name:   "too recent",
			query:  Query{},
			mutate: func(r *ContentRecord) { r.CreatedAt = now.Add(-time.Minute) },
			want:   false,
		},
		{
			name:  "cleaned excluded by default",
			query: Query{},
			mutate: func(r *ContentRecord) {
				r.CleanupMeta = &CleanupMeta{CleanedAt: now, Reason: "test"}
			},
			want: false,
		},
		{
			name:  "cleaned included on opt-in",
			query: Query{IncludeCleaned: true},
			mutate: func(r *ContentRecord) {
				r.CleanupMeta = &CleanupMeta{CleanedAt: now, Reason: "test"}
			},
			want: true,
		},
		{"owner match", Query{OwnerIn: []string{"alice", "bob"}}, nil, true},
		{"owner mismatch", Query{OwnerIn: []string{"bob"}}, nil, false},
		{"status match", Query{StatusIn: []Status{StatusFailed}}, nil, true},
		{"status mismatch", Query{StatusIn: []Status{StatusActive}}, nil, false},
		{"min views not reached", Query{MinViews: 11}, nil, false},
		{"max views exceeded", Query{MaxViews: 9}, nil, false},
		{"views in range", Query{MinViews: 5, MaxViews: 15}, nil, true},
		{"orphaned only, has locator", Query{OrphanedOnly: true}, nil, false},
		{
			name:  "orphaned only, no locators",
			query: Query{OrphanedOnly: true},
			mutate: func(r *ContentRecord) {
				r.StorageLocator = ""
				r.OriginalLocator = ""
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base
			if tt.mutate != nil {
				tt.mutate(&rec)
			}
			assert.Equal(t, tt.want, tt.query.Matches(&rec, bound))
		})
	}
}

func TestRecordHelpers(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	rec := ContentRecord{ID: "r", CreatedAt: now.Add(-72 * time.Hour)}
	assert.True(t, rec.Orphaned())
	assert.False(t, rec.Cleaned())
	assert.Equal(t, 72*time.Hour, rec.Age(now))

	rec.OriginalLocator = "originals/r.mp4"
	assert.False(t, rec.Orphaned())

	rec.CleanupMeta = &CleanupMeta{CleanedAt: now}
	assert.True(t, rec.Cleaned())
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusActive, StatusProcessing, StatusFailed, StatusEncodingFailed, StatusManualReview, StatusDeleted} {
		assert.True(t, s.Valid(), "status %s", s)
	}
	assert.False(t, Status("bogus").Valid())
}
