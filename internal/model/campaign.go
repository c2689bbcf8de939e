package model

import "time"

// CampaignStatus mirrors the lifecycle states campaigns are created with upstream.
type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignDraft     CampaignStatus = "draft"
)

// Valid reports whether s is a known lifecycle state.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignActive, CampaignPaused, CampaignCompleted, CampaignDraft:
		return true
	}
	return false
}

// Campaign is registered by the campaign owner upstream. Metric and revenue operations
// only read it.
type Campaign struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Status    CampaignStatus `json:"status" yaml:"status"`
	Currency  string         `json:"currency" yaml:"currency"`
	StartDate time.Time      `json:"start_date" yaml:"start_date"`
	EndDate   time.Time      `json:"end_date,omitempty" yaml:"end_date"`
}

// SourceStatus is the connection state of one data source for a campaign, as reported by
// the authorization layer. Disconnected sources contribute nothing to totals.
type SourceStatus struct {
	SourceID    string `json:"source_id" yaml:"source_id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Connected   bool   `json:"connected" yaml:"connected"`
}
