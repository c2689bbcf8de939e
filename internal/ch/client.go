// Package ch stores canonical source data and snapshots in ClickHouse and serves them
// back to the engine.
package ch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Client wraps a ClickHouse connection.
type Client struct {
	db *sql.DB
}

// New creates a ClickHouse client from a DSN.
func New(ctx context.Context, dsn string) (*Client, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// Close releases database resources.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Ping ensures the database is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("clickhouse ping: %w", err)
	}
	return nil
}

// Each pushed document is append-only; ReplacingMergeTree collapses re-deliveries and
// lets a newer spend total or connection state replace the older one.
var schema = []string{
	`
CREATE TABLE IF NOT EXISTS source_metrics
(
  campaign_id   LowCardinality(String),
  source_id     LowCardinality(String),
  envelope_id   String,
  metric_values Map(LowCardinality(String), Float64),
  collected_at  DateTime64(3, 'UTC'),
  _ingested_at  DateTime64(3, 'UTC')
)
ENGINE = ReplacingMergeTree(_ingested_at)
ORDER BY (campaign_id, source_id, collected_at)`,
	`
CREATE TABLE IF NOT EXISTS revenue_rows
(
  campaign_id          LowCardinality(String),
  source_type          LowCardinality(String),
  row_id               String,
  occurred_at          Nullable(DateTime64(3, 'UTC')),
  currency             LowCardinality(String),
  presentment_currency LowCardinality(String),
  attributes           String,
  _ingested_at         DateTime64(3, 'UTC')
)
ENGINE = ReplacingMergeTree(_ingested_at)
ORDER BY (campaign_id, source_type, row_id)`,
	`
CREATE TABLE IF NOT EXISTS source_connections
(
  campaign_id  LowCardinality(String),
  source_id    LowCardinality(String),
  display_name String,
  connected    UInt8,
  _ingested_at DateTime64(3, 'UTC')
)
ENGINE = ReplacingMergeTree(_ingested_at)
ORDER BY (campaign_id, source_id)`,
	`
CREATE TABLE IF NOT EXISTS spend_totals
(
  campaign_id  LowCardinality(String),
  source_type  LowCardinality(String),
  amount       String,
  currency     LowCardinality(String),
  _ingested_at DateTime64(3, 'UTC')
)
ENGINE = ReplacingMergeTree(_ingested_at)
ORDER BY (campaign_id, source_type)`,
	`
CREATE TABLE IF NOT EXISTS snapshots
(
  campaign_id   LowCardinality(String),
  bucket        DateTime('UTC'),
  snapshot_id   String,
  recorded_at   DateTime64(3, 'UTC'),
  metric_values String,
  ratios        String
)
ENGINE = ReplacingMergeTree(recorded_at)
ORDER BY (campaign_id, bucket)`,
}

// EnsureSchema creates the tables if they do not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := c.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
