package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"marketpulse/internal/model"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// SQL is a ConfigStore backed by SQLite or Postgres. Each configuration object is kept as
// a JSON document next to the columns it is looked up by.
type SQL struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// OpenSQL connects with driver and creates the tables if needed.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported config db driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("config db ping: %w", err)
	}
	s := &SQL{db: db, driver: driver, now: time.Now}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases database resources.
func (s *SQL) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the configuration tables if they do not exist.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS campaigns (
			id TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS revenue_mappings (
			campaign_id TEXT NOT NULL,
			source_type TEXT NOT NULL,
			doc TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (campaign_id, source_type)
		)`,
		`CREATE TABLE IF NOT EXISTS spend_mappings (
			campaign_id TEXT NOT NULL,
			source_type TEXT NOT NULL,
			doc TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (campaign_id, source_type)
		)`,
		`CREATE TABLE IF NOT EXISTS kpis (
			campaign_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			doc TEXT NOT NULL,
			PRIMARY KEY (campaign_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS benchmarks (
			campaign_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			doc TEXT NOT NULL,
			PRIMARY KEY (campaign_id, position)
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure config schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *SQL) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQL) Campaign(ctx context.Context, id string) (model.Campaign, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT doc FROM campaigns WHERE id = ?`), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Campaign{}, campaignNotFound(id)
	}
	if err != nil {
		return model.Campaign{}, err
	}
	var c model.Campaign
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return model.Campaign{}, fmt.Errorf("decode campaign %s: %w", id, err)
	}
	return c, nil
}

func (s *SQL) Campaigns(ctx context.Context) ([]model.Campaign, error) {
	return queryDocs[model.Campaign](ctx, s, `SELECT doc FROM campaigns ORDER BY id`)
}

func (s *SQL) PutCampaign(ctx context.Context, c model.Campaign) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
INSERT INTO campaigns (id, doc) VALUES (?, ?)
ON CONFLICT (id) DO UPDATE SET doc = excluded.doc`), c.ID, string(doc))
	return err
}

func (s *SQL) RevenueMappings(ctx context.Context, campaignID string) ([]model.RevenueMapping, error) {
	return queryDocs[model.RevenueMapping](ctx, s,
		`SELECT doc FROM revenue_mappings WHERE campaign_id = ? ORDER BY source_type`, campaignID)
}

func (s *SQL) SaveRevenueMapping(ctx context.Context, m model.RevenueMapping) error {
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = s.now().UTC()
	}
	return s.upsertMapping(ctx, "revenue_mappings", m.CampaignID, string(m.SourceType), m.UpdatedAt, m)
}

func (s *SQL) SpendMappings(ctx context.Context, campaignID string) ([]model.SpendMapping, error) {
	return queryDocs[model.SpendMapping](ctx, s,
		`SELECT doc FROM spend_mappings WHERE campaign_id = ? ORDER BY source_type`, campaignID)
}

func (s *SQL) SaveSpendMapping(ctx context.Context, m model.SpendMapping) error {
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = s.now().UTC()
	}
	return s.upsertMapping(ctx, "spend_mappings", m.CampaignID, string(m.SourceType), m.UpdatedAt, m)
}

func (s *SQL) upsertMapping(ctx context.Context, table, campaignID, sourceType string, updatedAt time.Time, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (campaign_id, source_type, doc, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (campaign_id, source_type) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`, table)
	_, err = s.db.ExecContext(ctx, s.rebind(query), campaignID, sourceType, string(doc), updatedAt.Format(time.RFC3339Nano))
	return err
}

func (s *SQL) KPIs(ctx context.Context, campaignID string) ([]model.KPI, error) {
	return queryDocs[model.KPI](ctx, s, `SELECT doc FROM kpis WHERE campaign_id = ? ORDER BY position`, campaignID)
}

func (s *SQL) Benchmarks(ctx context.Context, campaignID string) ([]model.Benchmark, error) {
	return queryDocs[model.Benchmark](ctx, s, `SELECT doc FROM benchmarks WHERE campaign_id = ? ORDER BY position`, campaignID)
}

func (s *SQL) SaveGoals(ctx context.Context, campaignID string, kpis []model.KPI, benchmarks []model.Benchmark) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.replaceList(ctx, tx, "kpis", campaignID, docs(kpis)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := s.replaceList(ctx, tx, "benchmarks", campaignID, docs(benchmarks)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func docs[T any](items []T) []any {
	out := make([]any, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}

// replaceList swaps a campaign's ordered list inside tx.
func (s *SQL) replaceList(ctx context.Context, tx *sql.Tx, table, campaignID string, items []any) error {
	if _, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE campaign_id = ?`, table)), campaignID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(fmt.Sprintf(`INSERT INTO %s (campaign_id, position, doc) VALUES (?, ?, ?)`, table)))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, item := range items {
		doc, err := json.Marshal(item)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, campaignID, i, string(doc)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCampaign removes the campaign row and everything keyed by it in one transaction.
func (s *SQL) DeleteCampaign(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM campaigns WHERE id = ?`), id)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		_ = tx.Rollback()
		return campaignNotFound(id)
	}
	for _, table := range []string{"revenue_mappings", "spend_mappings", "kpis", "benchmarks"} {
		if _, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE campaign_id = ?`, table)), id); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func queryDocs[T any](ctx context.Context, s *SQL, query string, args ...any) ([]T, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(doc), &v); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
