package ch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
	"marketpulse/internal/normalize"
	"marketpulse/internal/provider"
)

var _ provider.DataProvider = (*LiveProvider)(nil)

// LiveProvider serves data adapters pushed through the ingest pipeline, read from the
// tables the loader writes.
type LiveProvider struct {
	client   *Client
	registry *normalize.Registry
	now      func() time.Time
}

// NewLiveProvider wires a provider over ClickHouse.
func NewLiveProvider(client *Client, reg *normalize.Registry) *LiveProvider {
	return &LiveProvider{client: client, registry: reg, now: time.Now}
}

// Sources merges reported connection states with every source that has pushed metrics.
// A source without a reported state is treated as connected.
func (p *LiveProvider) Sources(ctx context.Context, campaignID string) ([]model.SourceStatus, error) {
	rows, err := p.client.db.QueryContext(ctx, `
SELECT source_id, argMax(display_name, _ingested_at), argMax(connected, _ingested_at)
FROM source_connections
WHERE campaign_id = ?
GROUP BY source_id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()
	byID := map[string]model.SourceStatus{}
	for rows.Next() {
		var s model.SourceStatus
		var connected uint8
		if err := rows.Scan(&s.SourceID, &s.DisplayName, &connected); err != nil {
			return nil, err
		}
		s.Connected = connected == 1
		byID[s.SourceID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids, err := p.metricSources(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			byID[id] = model.SourceStatus{SourceID: id, Connected: true}
		}
	}
	return p.statusList(byID), nil
}

func (p *LiveProvider) metricSources(ctx context.Context, campaignID string) ([]string, error) {
	rows, err := p.client.db.QueryContext(ctx, `
SELECT DISTINCT source_id FROM source_metrics WHERE campaign_id = ?`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query metric sources: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *LiveProvider) statusList(byID map[string]model.SourceStatus) []model.SourceStatus {
	out := make([]model.SourceStatus, 0, len(byID))
	for _, s := range byID {
		if s.DisplayName == "" {
			if t, ok := p.registry.Table(s.SourceID); ok {
				s.DisplayName = t.DisplayName
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// FetchCanonicalMetrics returns the most recent metric set the source pushed. Adapters
// report lifetime totals, so older pushes are superseded rather than summed.
func (p *LiveProvider) FetchCanonicalMetrics(ctx context.Context, sourceID, campaignID string) (model.CanonicalMetricSet, error) {
	out := model.CanonicalMetricSet{CampaignID: campaignID, SourceID: sourceID, Values: model.MetricValues{}}
	for _, k := range model.BaseMetrics {
		out.Values[k] = 0
	}
	row := p.client.db.QueryRowContext(ctx, `
SELECT argMax(metric_values, (collected_at, _ingested_at)), max(collected_at), count()
FROM source_metrics
WHERE campaign_id = ? AND source_id = ?`, campaignID, sourceID)
	var values map[string]float64
	var collected time.Time
	var n uint64
	if err := row.Scan(&values, &collected, &n); err != nil {
		return out, apperr.SourceFailure(sourceID, "query_failed", err)
	}
	if n == 0 {
		out.CollectedAt = p.now().UTC()
		return out, nil
	}
	for k, v := range values {
		out.Values[model.MetricKey(k)] = v
	}
	out.CollectedAt = collected.UTC()
	return out, nil
}

// FetchRevenueRows reads deduplicated rows within the lookback window. Undated rows are
// always included.
func (p *LiveProvider) FetchRevenueRows(ctx context.Context, sourceType model.SourceType, campaignID string, lookbackDays int) ([]model.RevenueRow, error) {
	cutoff := p.now().UTC().AddDate(0, 0, -lookbackDays)
	rows, err := p.client.db.QueryContext(ctx, `
SELECT row_id, ifNull(toUnixTimestamp64Milli(occurred_at), 0), currency, presentment_currency, attributes
FROM revenue_rows FINAL
WHERE campaign_id = ? AND source_type = ? AND (occurred_at IS NULL OR occurred_at >= ?)
ORDER BY row_id`, campaignID, string(sourceType), cutoff)
	if err != nil {
		return nil, apperr.SourceFailure(string(sourceType), "query_failed", err)
	}
	defer rows.Close()
	out := []model.RevenueRow{}
	for rows.Next() {
		var r model.RevenueRow
		var occurredMs int64
		var attrs string
		if err := rows.Scan(&r.ID, &occurredMs, &r.Currency, &r.PresentmentCurrency, &attrs); err != nil {
			return nil, err
		}
		r.OccurredAt = fromUnixMilli(occurredMs)
		if err := json.Unmarshal([]byte(attrs), &r.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of row %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FetchSpendAmount returns the latest total pushed for the mapping's source. Adapters
// resolve scope before pushing, so the mapping only contributes the fallback currency.
func (p *LiveProvider) FetchSpendAmount(ctx context.Context, m model.SpendMapping) (model.Money, error) {
	row := p.client.db.QueryRowContext(ctx, `
SELECT argMax(amount, _ingested_at), argMax(currency, _ingested_at), count()
FROM spend_totals
WHERE campaign_id = ? AND source_type = ?`, m.CampaignID, string(m.SourceType))
	var amount, currency string
	var n uint64
	if err := row.Scan(&amount, &currency, &n); err != nil {
		return model.Money{}, apperr.SourceFailure(string(m.SourceType), "query_failed", err)
	}
	if n == 0 {
		return model.Zero(m.Currency), nil
	}
	return parseSpend(amount, currency, m.Currency)
}

func parseSpend(amount, currency, fallback string) (model.Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return model.Money{}, fmt.Errorf("parse spend amount %q: %w", amount, err)
	}
	if currency == "" {
		currency = fallback
	}
	return model.Money{Amount: d, Currency: currency}, nil
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
