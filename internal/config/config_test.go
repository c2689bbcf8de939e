package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketpulse/internal/model"
	"marketpulse/internal/normalize"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("SNAPSHOT_BUCKET", "24h")
	t.Setenv("LOADER_BATCH_INTERVAL_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "sources.raw", cfg.KafkaTopicRaw)
	require.Equal(t, 24*time.Hour, cfg.SnapshotBucket)
	require.Equal(t, 250*time.Millisecond, cfg.BatchInterval)
	require.Equal(t, 365, cfg.MaxLookbackDays)
	require.Equal(t, ProviderLive, cfg.DataProvider)
}

func TestLoadReadsEnvFile(t *testing.T) {
	t.Setenv("ENV_FILE", writeFile(t, ".env", "DATA_PROVIDER=fixture\nMAX_LOOKBACK_DAYS=90\n"))
	t.Setenv("DATA_PROVIDER", "")
	t.Setenv("MAX_LOOKBACK_DAYS", "")
	os.Unsetenv("DATA_PROVIDER")
	os.Unsetenv("MAX_LOOKBACK_DAYS")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ProviderFixture, cfg.DataProvider)
	require.Equal(t, 90, cfg.MaxLookbackDays)
}

func TestValidate(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DATA_PROVIDER", "magic")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("DATA_PROVIDER", "fixture")
	t.Setenv("CONFIG_DB_DRIVER", "mysql")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("CONFIG_DB_DRIVER", "postgres")
	t.Setenv("MAX_LOOKBACK_DAYS", "0")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadAdapters(t *testing.T) {
	cfg := Config{AdaptersConfigPath: writeFile(t, "adapters.yml", `
adapters:
  shop-sync:
    api_key: key-1
    hmac_secret: s3cret
`)}
	require.NoError(t, cfg.LoadAdapters())
	require.Equal(t, "key-1", cfg.Adapters["shop-sync"].APIKey)
	creds := cfg.Credentials()
	require.Equal(t, "s3cret", creds["shop-sync"].HMACSecret)

	cfg.AdaptersConfigPath = writeFile(t, "bad.yml", "adapters:\n  x:\n    hmac_secret: y\n")
	require.Error(t, cfg.LoadAdapters())
}

func TestLoadSources(t *testing.T) {
	reg := normalize.NewRegistry()
	cfg := Config{SourcesConfigPath: writeFile(t, "sources.yml", `
sources:
  - source_id: snapchat_ads
    display_name: Snapchat Ads
    kind: ad_platform
    fields:
      paid_impressions: impressions
      swipes: clicks
`)}
	require.NoError(t, cfg.LoadSources(reg))
	set, err := reg.Normalize("snapchat_ads", "c-1", map[string]any{"swipes": 7})
	require.NoError(t, err)
	require.Equal(t, 7.0, set.Get(model.MetricClicks))

	cfg.SourcesConfigPath = writeFile(t, "bad.yml", "sources:\n  - source_id: x\n    kind: ad_platform\n    fields:\n      a: not_a_metric\n")
	require.Error(t, cfg.LoadSources(reg))

	require.NoError(t, (&Config{}).LoadSources(reg))
}
