package ch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"marketpulse/internal/model"
)

// Batch groups canonical envelopes by table.
type Batch struct {
	Metrics     []model.CanonicalEnvelope
	Revenue     []model.CanonicalEnvelope
	Connections []model.CanonicalEnvelope
	Spend       []model.CanonicalEnvelope
}

// Split sorts envelopes into their tables. Envelopes of unknown kind are dropped.
func Split(envs []model.CanonicalEnvelope) Batch {
	var b Batch
	for _, e := range envs {
		switch {
		case e.Kind == model.EnvelopeMetrics && e.Metrics != nil:
			b.Metrics = append(b.Metrics, e)
		case e.Kind == model.EnvelopeRevenue:
			b.Revenue = append(b.Revenue, e)
		case e.Kind == model.EnvelopeConnection && e.Connection != nil:
			b.Connections = append(b.Connections, e)
		case e.Kind == model.EnvelopeSpend && e.Spend != nil:
			b.Spend = append(b.Spend, e)
		}
	}
	return b
}

// InsertBatch writes a batch of canonical envelopes in one transaction.
func (c *Client) InsertBatch(ctx context.Context, envs []model.CanonicalEnvelope) error {
	if len(envs) == 0 {
		return nil
	}
	b := Split(envs)
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	steps := []func(context.Context, *sql.Tx, Batch) error{
		insertMetrics, insertRevenue, insertConnections, insertSpend,
	}
	for _, step := range steps {
		if err := step(ctx, tx, b); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func insertMetrics(ctx context.Context, tx *sql.Tx, b Batch) error {
	if len(b.Metrics) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO source_metrics (campaign_id, source_id, envelope_id, metric_values, collected_at, _ingested_at)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range b.Metrics {
		if _, err := stmt.ExecContext(ctx,
			e.CampaignID,
			e.SourceID,
			e.ID,
			metricMap(e.Metrics.Values),
			e.Metrics.CollectedAt,
			e.IngestedAt,
		); err != nil {
			return fmt.Errorf("insert source metrics: %w", err)
		}
	}
	return nil
}

func insertRevenue(ctx context.Context, tx *sql.Tx, b Batch) error {
	if len(b.Revenue) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO revenue_rows (campaign_id, source_type, row_id, occurred_at, currency, presentment_currency, attributes, _ingested_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range b.Revenue {
		for _, r := range e.Rows {
			attrs, err := json.Marshal(r.Attributes)
			if err != nil {
				return err
			}
			var occurred *time.Time
			if !r.OccurredAt.IsZero() {
				t := r.OccurredAt
				occurred = &t
			}
			if _, err := stmt.ExecContext(ctx,
				e.CampaignID,
				e.SourceID,
				r.ID,
				occurred,
				r.Currency,
				r.PresentmentCurrency,
				string(attrs),
				e.IngestedAt,
			); err != nil {
				return fmt.Errorf("insert revenue row: %w", err)
			}
		}
	}
	return nil
}

func insertConnections(ctx context.Context, tx *sql.Tx, b Batch) error {
	if len(b.Connections) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO source_connections (campaign_id, source_id, display_name, connected, _ingested_at)
VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range b.Connections {
		var connected uint8
		if e.Connection.Connected {
			connected = 1
		}
		if _, err := stmt.ExecContext(ctx, e.CampaignID, e.SourceID, e.Connection.DisplayName, connected, e.IngestedAt); err != nil {
			return fmt.Errorf("insert connection: %w", err)
		}
	}
	return nil
}

func insertSpend(ctx context.Context, tx *sql.Tx, b Batch) error {
	if len(b.Spend) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO spend_totals (campaign_id, source_type, amount, currency, _ingested_at)
VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range b.Spend {
		if _, err := stmt.ExecContext(ctx, e.CampaignID, e.SourceID, e.Spend.Amount.String(), e.Spend.Currency, e.IngestedAt); err != nil {
			return fmt.Errorf("insert spend total: %w", err)
		}
	}
	return nil
}

func metricMap(v model.MetricValues) map[string]float64 {
	out := make(map[string]float64, len(v))
	for k, val := range v {
		out[string(k)] = val
	}
	return out
}
