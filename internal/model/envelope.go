package model

import "time"

// EnvelopeKind tags what an adapter pushed.
type EnvelopeKind string

const (
	EnvelopeMetrics    EnvelopeKind = "metrics"
	EnvelopeRevenue    EnvelopeKind = "revenue"
	EnvelopeConnection EnvelopeKind = "connection"
	EnvelopeSpend      EnvelopeKind = "spend"
)

// Envelope is the payload accepted by the ingest API and stored in the raw topic.
type Envelope struct {
	ID         string         `json:"id"`
	Kind       EnvelopeKind   `json:"kind"`
	SourceID   string         `json:"source_id"`
	CampaignID string         `json:"campaign_id" binding:"required"`
	Record     map[string]any `json:"record,omitempty"`
	Rows       []RevenueRow   `json:"rows,omitempty"`
	Connection *SourceStatus  `json:"connection,omitempty"`
	Spend      *Money         `json:"spend,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}

// CanonicalEnvelope is the normalized document ready for ClickHouse ingestion.
type CanonicalEnvelope struct {
	ID         string              `json:"id"`
	Kind       EnvelopeKind        `json:"kind"`
	SourceID   string              `json:"source_id"`
	CampaignID string              `json:"campaign_id"`
	Metrics    *CanonicalMetricSet `json:"metrics,omitempty"`
	Rows       []RevenueRow        `json:"rows,omitempty"`
	Connection *SourceStatus       `json:"connection,omitempty"`
	Spend      *Money              `json:"spend,omitempty"`
	IngestedAt time.Time           `json:"_ingested_at"`
}
