package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketpulse/internal/config"
	"marketpulse/internal/model"
)

const fixtureYAML = `
campaigns:
  - id: spring-25
    name: Spring
    status: active
    currency: USD
    sources:
      - source_id: google_ads
        records:
          - metrics:
              impressions: 2000
              clicks: 40
              cost: 80
  - id: winter-24
    name: Winter
    status: completed
    currency: USD
`

func TestBuildFixtureRuntime(t *testing.T) {
	dir := t.TempDir()
	fixtures := filepath.Join(dir, "fixtures.yml")
	require.NoError(t, os.WriteFile(fixtures, []byte(fixtureYAML), 0o600))

	cfg := config.Config{
		DataProvider:    config.ProviderFixture,
		FixturesPath:    fixtures,
		ConfigDBDriver:  "sqlite3",
		ConfigDBDSN:     "file:" + filepath.Join(dir, "config.db"),
		MaxLookbackDays: 365,
		SnapshotBucket:  time.Hour,
	}
	ctx := context.Background()
	rt, err := Build(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	active, err := rt.Engine.ActiveCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "spring-25", active[0].ID)

	totals, err := rt.Engine.AggregatedTotals(ctx, "spring-25")
	require.NoError(t, err)
	require.Equal(t, 40.0, totals.Values.Get(model.MetricClicks))

	_, err = rt.Engine.RecordSnapshot(ctx, "spring-25")
	require.NoError(t, err)
}

func TestBuildRejectsMissingFixtures(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		DataProvider:   config.ProviderFixture,
		FixturesPath:   filepath.Join(dir, "missing.yml"),
		ConfigDBDriver: "sqlite3",
		ConfigDBDSN:    "file:" + filepath.Join(dir, "config.db"),
		SnapshotBucket: time.Hour,
	}
	_, err := Build(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}
