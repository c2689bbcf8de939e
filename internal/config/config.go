package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"marketpulse/internal/auth"
	"marketpulse/internal/normalize"
)

const (
	ProviderLive    = "live"
	ProviderFixture = "fixture"
)

// Config holds shared service configuration sourced from environment variables.
type Config struct {
	Env                   string
	LogLevel              string
	IngestAddr            string
	APIAddr               string
	NormalizerMetricsAddr string
	LoaderMetricsAddr     string
	SnapshotMetricsAddr   string
	KafkaBrokers          []string
	KafkaTopicRaw         string
	KafkaTopicCanonical   string
	ClickHouseDSN         string
	ConfigDBDriver        string
	ConfigDBDSN           string
	DataProvider          string
	FixturesPath          string
	MaxLookbackDays       int
	SnapshotSchedule      string
	SnapshotBucket        time.Duration
	CORSAllowOrigins      []string
	BatchSize             int
	BatchInterval         time.Duration
	Adapters              map[string]AdapterCredential
	AdaptersConfigPath    string
	SourceTables          []normalize.FieldTable
	SourcesConfigPath     string
}

// AdapterCredential defines API key / HMAC secrets for a source adapter pushing data.
type AdapterCredential struct {
	APIKey     string `yaml:"api_key"`
	HMACSecret string `yaml:"hmac_secret"`
}

type adaptersFile struct {
	Adapters map[string]AdapterCredential `yaml:"adapters"`
}

type sourcesFile struct {
	Sources []normalize.FieldTable `yaml:"sources"`
}

// Load reads an optional .env file, then process environment variables, applying defaults
// when unset, then the YAML files they point to.
func Load() (Config, error) {
	if err := godotenv.Load(getenv("ENV_FILE", ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	cfg := Config{
		Env:                   getenv("APP_ENV", "development"),
		LogLevel:              getenv("LOG_LEVEL", "info"),
		IngestAddr:            getenv("INGEST_ADDR", ":8080"),
		APIAddr:               getenv("API_ADDR", ":8081"),
		NormalizerMetricsAddr: getenv("NORMALIZER_METRICS_ADDR", ":9100"),
		LoaderMetricsAddr:     getenv("LOADER_METRICS_ADDR", ":9101"),
		SnapshotMetricsAddr:   getenv("SNAPSHOTTER_METRICS_ADDR", ":9102"),
		KafkaBrokers:          splitAndTrim(getenv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopicRaw:         getenv("KAFKA_TOPIC_RAW", "sources.raw"),
		KafkaTopicCanonical:   getenv("KAFKA_TOPIC_CANONICAL", "sources.canonical"),
		ClickHouseDSN:         getenv("CLICKHOUSE_DSN", "clickhouse://default:@localhost:9000?database=default&dial_timeout=5s&compress=true"),
		ConfigDBDriver:        getenv("CONFIG_DB_DRIVER", "sqlite3"),
		ConfigDBDSN:           getenv("CONFIG_DB_DSN", "file:marketpulse.db?_foreign_keys=on"),
		DataProvider:          getenv("DATA_PROVIDER", ProviderLive),
		FixturesPath:          getenv("FIXTURES_PATH", "config/fixtures.dev.yml"),
		MaxLookbackDays:       atoiDefault("MAX_LOOKBACK_DAYS", 365),
		SnapshotSchedule:      getenv("SNAPSHOT_SCHEDULE", "@hourly"),
		SnapshotBucket:        parseDurationDefault("SNAPSHOT_BUCKET", time.Hour),
		CORSAllowOrigins:      splitAndTrimAllowEmpty(getenv("CORS_ALLOW_ORIGINS", "*")),
		BatchSize:             atoiDefault("LOADER_BATCH_SIZE", 500),
		BatchInterval:         durationDefault("LOADER_BATCH_INTERVAL_MS", 800),
		AdaptersConfigPath:    getenv("ADAPTERS_CONFIG_PATH", "config/adapters.dev.yml"),
		SourcesConfigPath:     os.Getenv("SOURCES_CONFIG_PATH"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no binary can run with.
func (c Config) Validate() error {
	switch c.DataProvider {
	case ProviderLive, ProviderFixture:
	default:
		return fmt.Errorf("DATA_PROVIDER must be %q or %q, got %q", ProviderLive, ProviderFixture, c.DataProvider)
	}
	switch c.ConfigDBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("CONFIG_DB_DRIVER must be sqlite3 or postgres, got %q", c.ConfigDBDriver)
	}
	if c.MaxLookbackDays <= 0 {
		return fmt.Errorf("MAX_LOOKBACK_DAYS must be positive, got %d", c.MaxLookbackDays)
	}
	if c.SnapshotBucket <= 0 {
		return fmt.Errorf("SNAPSHOT_BUCKET must be positive, got %s", c.SnapshotBucket)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("LOADER_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.BatchInterval <= 0 {
		return fmt.Errorf("LOADER_BATCH_INTERVAL_MS must be positive, got %s", c.BatchInterval)
	}
	return nil
}

// LoadAdapters reads the adapter credentials checked by the ingest API and by campaign
// registration on the metrics API.
func (c *Config) LoadAdapters() error {
	adapters, err := loadAdaptersConfig(c.AdaptersConfigPath)
	if err != nil {
		return fmt.Errorf("load adapters config: %w", err)
	}
	c.Adapters = adapters
	return nil
}

// Credentials converts the loaded adapters for the auth checks.
func (c Config) Credentials() map[string]auth.Credential {
	out := make(map[string]auth.Credential, len(c.Adapters))
	for id, a := range c.Adapters {
		out[id] = auth.Credential{APIKey: a.APIKey, HMACSecret: a.HMACSecret}
	}
	return out
}

// LoadSources reads extra field tables and registers them on reg. A missing
// SOURCES_CONFIG_PATH is not an error; the built-in tables remain.
func (c *Config) LoadSources(reg *normalize.Registry) error {
	if c.SourcesConfigPath == "" {
		return nil
	}
	data, err := os.ReadFile(c.SourcesConfigPath)
	if err != nil {
		return fmt.Errorf("load sources config: %w", err)
	}
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse sources config: %w", err)
	}
	for _, t := range file.Sources {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("source %s in %s: %w", t.SourceID, c.SourcesConfigPath, err)
		}
	}
	c.SourceTables = file.Sources
	return nil
}

func getenv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}

func splitAndTrim(v string) []string {
	return splitAndTrimAllowEmpty(v)
}

func splitAndTrimAllowEmpty(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func atoiDefault(key string, def int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func durationDefault(key string, defMS int) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return time.Duration(defMS) * time.Millisecond
}

func parseDurationDefault(key string, def time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}

func loadAdaptersConfig(path string) (map[string]AdapterCredential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file adaptersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Adapters) == 0 {
		return nil, fmt.Errorf("no adapters configured in %s", path)
	}
	out := make(map[string]AdapterCredential, len(file.Adapters))
	for id, cred := range file.Adapters {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if cred.APIKey == "" {
			return nil, fmt.Errorf("adapter %s missing api_key in %s", id, path)
		}
		out[id] = cred
	}
	return out, nil
}
