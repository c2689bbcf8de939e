package ch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"marketpulse/internal/model"
	"marketpulse/internal/snapshot"
)

var _ snapshot.Store = (*SnapshotStore)(nil)

// SnapshotStore keeps snapshot history in ClickHouse. Appends for one campaign are
// serialized in-process; the (campaign_id, bucket) key collapses anything that slips
// past a second writer.
type SnapshotStore struct {
	client *Client
	bucket time.Duration
	locks  sync.Map // campaignID -> *sync.Mutex
}

// NewSnapshotStore creates a store allowing one snapshot per bucket.
func NewSnapshotStore(client *Client, bucket time.Duration) *SnapshotStore {
	if bucket <= 0 {
		bucket = snapshot.DefaultBucket
	}
	return &SnapshotStore{client: client, bucket: bucket}
}

func (s *SnapshotStore) lock(campaignID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(campaignID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *SnapshotStore) Append(ctx context.Context, snap model.Snapshot) error {
	snap, err := snapshot.Prepare(snap)
	if err != nil {
		return err
	}
	mu := s.lock(snap.CampaignID)
	mu.Lock()
	defer mu.Unlock()

	latest, err := s.latest(ctx, snap.CampaignID)
	if err != nil {
		return err
	}
	if err := snapshot.CheckAppend(latest, snap, s.bucket); err != nil {
		return err
	}
	values, ratios, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.client.db.ExecContext(ctx, `
INSERT INTO snapshots (campaign_id, bucket, snapshot_id, recorded_at, metric_values, ratios)
VALUES (?, ?, ?, ?, ?, ?)`,
		snap.CampaignID,
		snapshot.BucketOf(snap.RecordedAt, s.bucket),
		snap.ID,
		snap.RecordedAt,
		values,
		ratios,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) latest(ctx context.Context, campaignID string) (*model.Snapshot, error) {
	rows, err := s.client.db.QueryContext(ctx, `
SELECT snapshot_id, recorded_at, metric_values, ratios
FROM snapshots FINAL
WHERE campaign_id = ?
ORDER BY recorded_at DESC
LIMIT 1`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	defer rows.Close()
	out, err := scanSnapshots(rows, campaignID)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

func (s *SnapshotStore) List(ctx context.Context, campaignID string) ([]model.Snapshot, error) {
	rows, err := s.client.db.QueryContext(ctx, `
SELECT snapshot_id, recorded_at, metric_values, ratios
FROM snapshots FINAL
WHERE campaign_id = ?
ORDER BY recorded_at ASC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows, campaignID)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanSnapshots(rows rowScanner, campaignID string) ([]model.Snapshot, error) {
	out := []model.Snapshot{}
	for rows.Next() {
		var id, values, ratios string
		var recorded time.Time
		if err := rows.Scan(&id, &recorded, &values, &ratios); err != nil {
			return nil, err
		}
		snap, err := decodeSnapshot(campaignID, id, recorded, values, ratios)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func encodeSnapshot(s model.Snapshot) (string, string, error) {
	values, err := json.Marshal(s.Values)
	if err != nil {
		return "", "", err
	}
	ratios, err := json.Marshal(s.Ratios)
	if err != nil {
		return "", "", err
	}
	return string(values), string(ratios), nil
}

func decodeSnapshot(campaignID, id string, recorded time.Time, values, ratios string) (model.Snapshot, error) {
	snap := model.Snapshot{ID: id, CampaignID: campaignID, RecordedAt: recorded.UTC()}
	if err := json.Unmarshal([]byte(values), &snap.Values); err != nil {
		return snap, fmt.Errorf("decode snapshot %s values: %w", id, err)
	}
	if err := json.Unmarshal([]byte(ratios), &snap.Ratios); err != nil {
		return snap, fmt.Errorf("decode snapshot %s ratios: %w", id, err)
	}
	if snap.Values == nil {
		snap.Values = model.MetricValues{}
	}
	return snap, nil
}
