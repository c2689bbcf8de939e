package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"marketpulse/internal/apperr"
	"marketpulse/internal/health"
	"marketpulse/internal/model"
	"marketpulse/internal/snapshot"
	"marketpulse/internal/trend"
)

// Goals are a campaign's KPIs and benchmarks.
type Goals struct {
	KPIs       []model.KPI       `json:"kpis"`
	Benchmarks []model.Benchmark `json:"benchmarks"`
}

// Goals returns the stored KPIs and benchmarks.
func (s *Service) Goals(ctx context.Context, campaignID string) (Goals, error) {
	if _, err := s.campaign(ctx, campaignID); err != nil {
		return Goals{}, err
	}
	kpis, err := s.config.KPIs(ctx, campaignID)
	if err != nil {
		return Goals{}, err
	}
	benchmarks, err := s.config.Benchmarks(ctx, campaignID)
	if err != nil {
		return Goals{}, err
	}
	return Goals{KPIs: kpis, Benchmarks: benchmarks}, nil
}

// SaveGoals replaces the campaign's KPIs and benchmarks.
func (s *Service) SaveGoals(ctx context.Context, campaignID string, g Goals) error {
	if _, err := s.campaign(ctx, campaignID); err != nil {
		return err
	}
	for i, k := range g.KPIs {
		if strings.TrimSpace(k.Name) == "" {
			return apperr.Validation("kpi_name_missing", "kpi %d has no name", i)
		}
		if !validUnit(k.Unit) {
			return apperr.Validation("unit_invalid", "kpi %q has unknown unit %q", k.Name, k.Unit)
		}
	}
	for i, b := range g.Benchmarks {
		if strings.TrimSpace(b.Name) == "" {
			return apperr.Validation("benchmark_name_missing", "benchmark %d has no name", i)
		}
		if !validUnit(b.Unit) {
			return apperr.Validation("unit_invalid", "benchmark %q has unknown unit %q", b.Name, b.Unit)
		}
	}
	return s.config.SaveGoals(ctx, campaignID, g.KPIs, g.Benchmarks)
}

func validUnit(u model.Unit) bool {
	switch u {
	case "", model.UnitNone, model.UnitPercent, model.UnitCurrency:
		return true
	}
	return false
}

// HealthScore scores the campaign's goals. Goals without a stored current value are read
// from live totals by metric name; live totals are only fetched when needed.
func (s *Service) HealthScore(ctx context.Context, campaignID string) (health.Report, error) {
	g, err := s.Goals(ctx, campaignID)
	if err != nil {
		return health.Report{}, err
	}
	needsLive := false
	for _, k := range g.KPIs {
		needsLive = needsLive || (k.Current == nil && k.Metric != "")
	}
	for _, b := range g.Benchmarks {
		needsLive = needsLive || (b.Current == nil && b.Metric != "")
	}
	if needsLive {
		totals, err := s.AggregatedTotals(ctx, campaignID)
		if err != nil {
			return health.Report{}, err
		}
		for i := range g.KPIs {
			if g.KPIs[i].Current == nil {
				g.KPIs[i].Current = totals.Metric(g.KPIs[i].Metric)
			}
		}
		for i := range g.Benchmarks {
			if g.Benchmarks[i].Current == nil {
				g.Benchmarks[i].Current = totals.Metric(g.Benchmarks[i].Metric)
			}
		}
	}
	return health.Score(g.KPIs, g.Benchmarks), nil
}

// Metric looks name up among ratios first, then metric values. Undefined ratios and
// unknown names return nil.
func (t Totals) Metric(name string) *float64 {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	for _, k := range model.AllRatios {
		if string(k) == name {
			v, ok := t.Ratios.Get(k)
			if !ok {
				return nil
			}
			return &v
		}
	}
	if v, ok := t.Values[model.MetricKey(name)]; ok {
		return &v
	}
	return nil
}

// Comparison compares live totals with the snapshot matching baseline.
func (s *Service) Comparison(ctx context.Context, campaignID string, baseline trend.Baseline) (trend.Comparison, error) {
	totals, err := s.AggregatedTotals(ctx, campaignID)
	if err != nil {
		return trend.Comparison{}, err
	}
	history, err := s.snapshots.List(ctx, campaignID)
	if err != nil {
		return trend.Comparison{}, err
	}
	return trend.Compare(totals.Snapshot(), history, baseline), nil
}

// TrendResult is a trend series together with the view it supports.
type TrendResult struct {
	CampaignID  string            `json:"campaign_id"`
	Granularity trend.Granularity `json:"granularity"`
	View        trend.View        `json:"view"`
	Snapshots   int               `json:"snapshot_count"`
	trend.Series
}

// TrendSeries buckets the snapshot history and collapses unchanged points.
func (s *Service) TrendSeries(ctx context.Context, campaignID string, g trend.Granularity) (TrendResult, error) {
	if _, err := s.campaign(ctx, campaignID); err != nil {
		return TrendResult{}, err
	}
	history, err := s.snapshots.List(ctx, campaignID)
	if err != nil {
		return TrendResult{}, err
	}
	return TrendResult{
		CampaignID:  campaignID,
		Granularity: g,
		View:        trend.ViewState(len(history)),
		Snapshots:   len(history),
		Series:      trend.NewSeries(trend.Bucket(history, g)),
	}, nil
}

// RecordSnapshot appends the campaign's current totals to its history. A second call in
// the same period returns snapshot.ErrDuplicateSnapshot.
func (s *Service) RecordSnapshot(ctx context.Context, campaignID string) (model.Snapshot, error) {
	totals, err := s.AggregatedTotals(ctx, campaignID)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap, err := snapshot.Prepare(totals.Snapshot())
	if err != nil {
		return model.Snapshot{}, err
	}
	if err := s.snapshots.Append(ctx, snap); err != nil {
		return model.Snapshot{}, err
	}
	s.log.Debug("snapshot recorded", zap.String("campaign_id", campaignID), zap.Time("recorded_at", snap.RecordedAt))
	return snap, nil
}
