package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
	"marketpulse/internal/normalize"
)

const fixtureYAML = `
campaigns:
  - id: summer-25
    name: Summer launch
    status: active
    currency: USD
    start_date: 2025-06-01T00:00:00Z
    sources:
      - source_id: meta_ads
        records:
          - impressions: "1,000"
            clicks: 20
            spend: "$150.50"
          - impressions: 500
            clicks: 5
      - source_id: linkedin_ads
        connected: false
        records:
          - impressions: 999
      - source_id: tiktok_ads
        error: auth_expired
    revenue:
      order_system:
        rows:
          - id: o-1
            occurred_at: 2025-06-29T10:00:00Z
            currency: USD
            attributes: {discount_code: SUMMER10, total_price: 100}
          - id: o-2
            occurred_at: 2025-01-01T10:00:00Z
            currency: USD
            attributes: {discount_code: SUMMER10, total_price: 900}
          - id: o-3
            currency: USD
            attributes: {discount_code: SUMMER10, total_price: 5}
      crm_system:
        error: rate_limited
    spend:
      spreadsheet:
        rows:
          - {Campaign: Summer, Spend: "40"}
          - {Campaign: Winter, Spend: "60"}
`

var fixedNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func loadTestFixture(t *testing.T) *Fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.yml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o600))
	f, err := LoadFixture(path)
	require.NoError(t, err)
	return NewFixture(f, normalize.NewRegistry(), func() time.Time { return fixedNow })
}

func TestFixtureCampaignAndSources(t *testing.T) {
	ctx := context.Background()
	fx := loadTestFixture(t)

	var c model.Campaign
	for _, fc := range fx.Campaigns() {
		if fc.ID == "summer-25" {
			c = fc
		}
	}
	require.Equal(t, "USD", c.Currency)
	require.Equal(t, model.CampaignActive, c.Status)

	none, err := fx.Sources(ctx, "nope")
	require.NoError(t, err)
	require.Empty(t, none, "a campaign without fixture data has no sources yet")
	_, err = fx.FetchCanonicalMetrics(ctx, "meta_ads", "nope")
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))

	sources, err := fx.Sources(ctx, "summer-25")
	require.NoError(t, err)
	require.Len(t, sources, 3)
	require.True(t, sources[0].Connected)
	require.Equal(t, "Meta Ads", sources[0].DisplayName)
	require.False(t, sources[1].Connected)
}

func TestFixtureMetricsAreNormalized(t *testing.T) {
	ctx := context.Background()
	fx := loadTestFixture(t)

	set, err := fx.FetchCanonicalMetrics(ctx, "meta_ads", "summer-25")
	require.NoError(t, err)
	require.Equal(t, 1500.0, set.Get(model.MetricImpressions))
	require.Equal(t, 25.0, set.Get(model.MetricClicks))
	require.Equal(t, 150.5, set.Get(model.MetricSpend))
	_, ok := set.Values[model.MetricLeads]
	require.True(t, ok, "base metrics are always present")

	_, err = fx.FetchCanonicalMetrics(ctx, "tiktok_ads", "summer-25")
	e, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.KindSource, e.Kind)
	require.Equal(t, apperr.CodeAuthExpired, e.Code)
}

func TestFixtureRevenueRespectsLookback(t *testing.T) {
	ctx := context.Background()
	fx := loadTestFixture(t)

	rows, err := fx.FetchRevenueRows(ctx, model.SourceOrderSystem, "summer-25", 30)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "o-1", rows[0].ID)
	require.Equal(t, "o-3", rows[1].ID)

	_, err = fx.FetchRevenueRows(ctx, model.SourceCRMSystem, "summer-25", 30)
	e, _ := apperr.As(err)
	require.Equal(t, apperr.CodeRateLimited, e.Code)

	rows, err = fx.FetchRevenueRows(ctx, model.SourceManual, "summer-25", 30)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestFixtureSpend(t *testing.T) {
	fx := loadTestFixture(t)
	total, err := fx.FetchSpendAmount(context.Background(), model.SpendMapping{
		CampaignID: "summer-25", SourceType: model.SourceSpreadsheet, SpendField: "Spend",
		ScopeField: "Campaign", ScopeValues: []string{"Summer"}, Currency: "usd",
	})
	require.NoError(t, err)
	require.Equal(t, "40", total.Amount.String())
	require.Equal(t, "USD", total.Currency)
}
