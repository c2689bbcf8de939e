package pipeline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
	"marketpulse/internal/normalize"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func TestCanonicalizeMetrics(t *testing.T) {
	env := model.Envelope{
		ID: "e-1", Kind: model.EnvelopeMetrics, SourceID: "meta_ads", CampaignID: "summer-25",
		Record:     map[string]any{"impressions": "1,200", "clicks": "n/a"},
		ReceivedAt: now.Add(-time.Minute),
	}
	out, err := Canonicalize(env, normalize.NewRegistry(), now)
	require.NoError(t, err)
	require.NotNil(t, out.Metrics)
	require.Equal(t, 1200.0, out.Metrics.Get(model.MetricImpressions))
	require.Equal(t, 0.0, out.Metrics.Get(model.MetricClicks))
	require.Equal(t, now.Add(-time.Minute), out.Metrics.CollectedAt)
	require.Equal(t, now, out.IngestedAt)

	env.SourceID = "myspace_ads"
	_, err = Canonicalize(env, normalize.NewRegistry(), now)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCanonicalizeRevenueAddsUTM(t *testing.T) {
	env := model.Envelope{
		Kind: model.EnvelopeRevenue, SourceID: "order_system", CampaignID: "summer-25",
		Rows: []model.RevenueRow{{
			Currency: "usd",
			Attributes: map[string]any{
				"total_price":  "99.00",
				"landing_site": "https://shop.example.com/?utm_source=ads&utm_medium=cpc&utm_campaign=launch",
				"utm_source":   "newsletter",
			},
		}},
	}
	out, err := Canonicalize(env, normalize.NewRegistry(), now)
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	row := out.Rows[0]
	require.Equal(t, "newsletter", row.Attributes["utm_source"], "explicit attributes win")
	require.Equal(t, "cpc", row.Attributes["utm_medium"])
	require.Equal(t, "launch", row.Attributes["utm_campaign"])
	require.Equal(t, "USD", row.Currency)
	require.Len(t, row.ID, 64)

	again := EnrichRevenueRow("order_system", "summer-25", env.Rows[0])
	require.Equal(t, row.ID, again.ID, "content hash is stable")
	_, touched := env.Rows[0].Attributes["utm_medium"]
	require.False(t, touched, "input rows are not modified")
}

func TestCanonicalizeSpendAndConnection(t *testing.T) {
	reg := normalize.NewRegistry()
	spend := model.Money{Amount: decimal.RequireFromString("120.50"), Currency: "usd"}
	out, err := Canonicalize(model.Envelope{Kind: model.EnvelopeSpend, SourceID: "spreadsheet", CampaignID: "c", Spend: &spend}, reg, now)
	require.NoError(t, err)
	require.Equal(t, "USD", out.Spend.Currency)

	bad := model.Money{Amount: decimal.NewFromInt(-1), Currency: "USD"}
	_, err = Canonicalize(model.Envelope{Kind: model.EnvelopeSpend, SourceID: "spreadsheet", CampaignID: "c", Spend: &bad}, reg, now)
	require.Error(t, err)

	_, err = Canonicalize(model.Envelope{Kind: model.EnvelopeConnection, CampaignID: "c"}, reg, now)
	e, _ := apperr.As(err)
	require.Equal(t, "connection_missing", e.Code)

	_, err = Canonicalize(model.Envelope{Kind: model.EnvelopeRevenue, SourceID: "shopify", CampaignID: "c"}, reg, now)
	e, _ = apperr.As(err)
	require.Equal(t, "source_type_invalid", e.Code)

	out, err = Canonicalize(model.Envelope{Kind: model.EnvelopeConnection, SourceID: "meta_ads", CampaignID: "c",
		Connection: &model.SourceStatus{Connected: false}}, reg, now)
	require.NoError(t, err)
	require.Equal(t, "meta_ads", out.Connection.SourceID)

	_, err = Canonicalize(model.Envelope{Kind: "telemetry", CampaignID: "c"}, reg, now)
	require.Error(t, err)
	_, err = Canonicalize(model.Envelope{Kind: model.EnvelopeSpend}, reg, now)
	e, _ = apperr.As(err)
	require.Equal(t, "campaign_id_missing", e.Code)
}
