// Package provider defines how the engine reaches external sources and ships a YAML
// fixture implementation used for demos and tests.
package provider

import (
	"context"

	"marketpulse/internal/model"
)

// DataProvider fetches campaign data from connected sources. Campaign records themselves
// live in the config store. Implementations own retries and timeouts; failures are
// returned as apperr source errors and are never replaced by zero values.
type DataProvider interface {
	// Sources reports connection status for every source known for the campaign.
	Sources(ctx context.Context, campaignID string) ([]model.SourceStatus, error)
	FetchCanonicalMetrics(ctx context.Context, sourceID, campaignID string) (model.CanonicalMetricSet, error)
	// FetchRevenueRows returns rows no older than lookbackDays. Undated rows are included.
	FetchRevenueRows(ctx context.Context, sourceType model.SourceType, campaignID string, lookbackDays int) ([]model.RevenueRow, error)
	// FetchSpendAmount returns the lifetime spend total for the mapping's source.
	FetchSpendAmount(ctx context.Context, m model.SpendMapping) (model.Money, error)
}
