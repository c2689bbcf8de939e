//go:build e2e

package ch

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/model"
	"marketpulse/internal/normalize"
	"marketpulse/internal/snapshot"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("CLICKHOUSE_DSN")
	if dsn == "" {
		t.Skip("CLICKHOUSE_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, client.EnsureSchema(ctx))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLiveProviderReadsLoadedEnvelopes(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	campaignID := "e2e-" + uuid.NewString()
	now := time.Now().UTC()
	spend := model.NewMoney(75, "USD")

	require.NoError(t, client.InsertBatch(ctx, []model.CanonicalEnvelope{
		{
			ID: uuid.NewString(), Kind: model.EnvelopeMetrics, SourceID: "meta_ads", CampaignID: campaignID,
			Metrics: &model.CanonicalMetricSet{
				CampaignID: campaignID, SourceID: "meta_ads", CollectedAt: now,
				Values: model.MetricValues{model.MetricClicks: 40, model.MetricImpressions: 1000},
			},
			IngestedAt: now,
		},
		{
			ID: uuid.NewString(), Kind: model.EnvelopeConnection, SourceID: "linkedin_ads", CampaignID: campaignID,
			Connection: &model.SourceStatus{SourceID: "linkedin_ads", Connected: false}, IngestedAt: now,
		},
		{
			ID: uuid.NewString(), Kind: model.EnvelopeRevenue, SourceID: string(model.SourceOrderSystem), CampaignID: campaignID,
			Rows: []model.RevenueRow{
				{ID: "o-1", OccurredAt: now.Add(-time.Hour), Currency: "USD", Attributes: map[string]any{"total": 10.0}},
				{ID: "o-2", Currency: "USD", Attributes: map[string]any{"total": 5.0}},
				{ID: "o-old", OccurredAt: now.AddDate(0, 0, -400), Currency: "USD", Attributes: map[string]any{"total": 1.0}},
			},
			IngestedAt: now,
		},
		{
			ID: uuid.NewString(), Kind: model.EnvelopeSpend, SourceID: string(model.SourceSpreadsheet), CampaignID: campaignID,
			Spend: &spend, IngestedAt: now,
		},
	}))

	p := NewLiveProvider(client, normalize.NewRegistry())

	sources, err := p.Sources(ctx, campaignID)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	require.Equal(t, "linkedin_ads", sources[0].SourceID)
	require.False(t, sources[0].Connected)
	require.True(t, sources[1].Connected)

	set, err := p.FetchCanonicalMetrics(ctx, "meta_ads", campaignID)
	require.NoError(t, err)
	require.Equal(t, 40.0, set.Get(model.MetricClicks))
	require.Zero(t, set.Get(model.MetricLeads))

	rows, err := p.FetchRevenueRows(ctx, model.SourceOrderSystem, campaignID, 90)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.True(t, rows[1].OccurredAt.IsZero())

	total, err := p.FetchSpendAmount(ctx, model.SpendMapping{CampaignID: campaignID, SourceType: model.SourceSpreadsheet, Currency: "USD"})
	require.NoError(t, err)
	require.Equal(t, "75", total.Amount.String())
}

func TestSnapshotStoreOnePerBucket(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	s := NewSnapshotStore(client, time.Hour)
	campaignID := "e2e-" + uuid.NewString()
	at := time.Now().UTC().Truncate(time.Hour).Add(5 * time.Minute)

	require.NoError(t, s.Append(ctx, model.Snapshot{CampaignID: campaignID, RecordedAt: at, Values: model.MetricValues{model.MetricClicks: 1}}))
	err := s.Append(ctx, model.Snapshot{CampaignID: campaignID, RecordedAt: at.Add(time.Minute)})
	require.True(t, errors.Is(err, snapshot.ErrDuplicateSnapshot))
	require.NoError(t, s.Append(ctx, model.Snapshot{CampaignID: campaignID, RecordedAt: at.Add(time.Hour)}))

	list, err := s.List(ctx, campaignID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, 1.0, list[0].Values.Get(model.MetricClicks))
}
