// Package snapshot keeps the append-only history of campaign totals.
package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
)

// ErrDuplicateSnapshot is returned when a campaign already has a snapshot in the bucket.
var ErrDuplicateSnapshot = errors.New("snapshot already recorded for this period")

// Store is an append-only snapshot history. List returns snapshots oldest first.
type Store interface {
	Append(ctx context.Context, s model.Snapshot) error
	List(ctx context.Context, campaignID string) ([]model.Snapshot, error)
}

// DefaultBucket is the write period used when none is configured.
const DefaultBucket = time.Hour

// BucketOf returns the start of the write period containing t.
func BucketOf(t time.Time, width time.Duration) time.Time {
	if width <= 0 {
		width = DefaultBucket
	}
	return t.UTC().Truncate(width)
}

// Prepare fills in the ID and normalizes the timestamp of s before it is stored.
func Prepare(s model.Snapshot) (model.Snapshot, error) {
	if s.CampaignID == "" {
		return s, apperr.Validation("campaign_id_missing", "snapshot has no campaign")
	}
	if s.RecordedAt.IsZero() {
		return s, apperr.Validation("recorded_at_missing", "snapshot has no timestamp")
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.RecordedAt = s.RecordedAt.UTC()
	if s.Values == nil {
		s.Values = model.MetricValues{}
	}
	if s.Ratios == nil {
		s.Ratios = model.Ratios{}
	}
	return s, nil
}

// CheckAppend enforces monotonic, one-per-bucket history given the latest stored
// snapshot. latest may be nil.
func CheckAppend(latest *model.Snapshot, s model.Snapshot, width time.Duration) error {
	if latest == nil {
		return nil
	}
	if BucketOf(latest.RecordedAt, width).Equal(BucketOf(s.RecordedAt, width)) {
		return ErrDuplicateSnapshot
	}
	if s.RecordedAt.Before(latest.RecordedAt) {
		return apperr.Validation("snapshot_out_of_order",
			"snapshot at %s is older than the latest at %s", s.RecordedAt.Format(time.RFC3339), latest.RecordedAt.Format(time.RFC3339))
	}
	return nil
}

type history struct {
	mu        sync.Mutex
	snapshots atomic.Pointer[[]model.Snapshot]
}

// MemoryStore serializes appends per campaign. Readers load a published slice that is
// never modified afterwards, so reads do not wait on writers.
type MemoryStore struct {
	bucket    time.Duration
	campaigns sync.Map // campaignID -> *history
}

// NewMemoryStore creates a store that allows one snapshot per bucket.
func NewMemoryStore(bucket time.Duration) *MemoryStore {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	return &MemoryStore{bucket: bucket}
}

func (m *MemoryStore) history(campaignID string) *history {
	h, _ := m.campaigns.LoadOrStore(campaignID, &history{})
	return h.(*history)
}

// Append adds s to its campaign's history.
func (m *MemoryStore) Append(ctx context.Context, s model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := Prepare(s)
	if err != nil {
		return err
	}
	h := m.history(s.CampaignID)
	h.mu.Lock()
	defer h.mu.Unlock()

	var cur []model.Snapshot
	if p := h.snapshots.Load(); p != nil {
		cur = *p
	}
	var latest *model.Snapshot
	if len(cur) > 0 {
		latest = &cur[len(cur)-1]
	}
	if err := CheckAppend(latest, s, m.bucket); err != nil {
		return err
	}
	next := make([]model.Snapshot, len(cur), len(cur)+1)
	copy(next, cur)
	s.Values = s.Values.Clone()
	next = append(next, s)
	h.snapshots.Store(&next)
	return nil
}

// List returns the campaign's snapshots oldest first. The slice is owned by the caller.
func (m *MemoryStore) List(ctx context.Context, campaignID string) ([]model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := m.campaigns.Load(campaignID)
	if !ok {
		return []model.Snapshot{}, nil
	}
	p := v.(*history).snapshots.Load()
	if p == nil {
		return []model.Snapshot{}, nil
	}
	return append([]model.Snapshot(nil), (*p)...), nil
}
