package model

import "time"

// Snapshot is an immutable recording of a campaign's totals and ratios at one instant.
type Snapshot struct {
	ID         string       `json:"id"`
	CampaignID string       `json:"campaign_id"`
	RecordedAt time.Time    `json:"recorded_at"`
	Values     MetricValues `json:"values"`
	Ratios     Ratios       `json:"ratios"`
}
