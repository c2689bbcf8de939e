// Package health scores a campaign against its KPIs and benchmarks and picks the single
// most useful next action.
package health

import (
	"fmt"
	"math"

	"marketpulse/internal/model"
)

const (
	LabelExcellent      = "Excellent"
	LabelGood           = "Good"
	LabelNeedsAttention = "Needs Attention"
	LabelCritical       = "Critical"
	LabelNotEnoughData  = "Not enough data configured"
)

// ActionKind says where a priority action came from.
type ActionKind string

const (
	ActionKPI       ActionKind = "kpi"
	ActionBenchmark ActionKind = "benchmark"
	ActionMaintain  ActionKind = "maintain"
)

const maintainMessage = "maintain current performance"

// Action is the recommended focus for a campaign.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Name    string     `json:"name,omitempty"`
	Metric  string     `json:"metric,omitempty"`
	Current float64    `json:"current,omitempty"`
	Target  float64    `json:"target,omitempty"`
	Gap     float64    `json:"gap,omitempty"`
	Message string     `json:"message"`
}

// Report is the outcome of Score. Score is nil when nothing is configured, which callers
// render as LabelNotEnoughData rather than 0.
type Report struct {
	Score    *int   `json:"score"`
	Label    string `json:"label"`
	Priority Action `json:"priority_action"`
	Above    int    `json:"above"`
	Total    int    `json:"total"`
}

// Score counts KPIs at or above target and benchmarks at or above the industry average.
// A nil Current counts as 0.
func Score(kpis []model.KPI, benchmarks []model.Benchmark) Report {
	rep := Report{Total: len(kpis) + len(benchmarks)}
	for _, k := range kpis {
		if current(k.Current) >= k.Target {
			rep.Above++
		}
	}
	for _, b := range benchmarks {
		if current(b.Current) >= b.IndustryAverage {
			rep.Above++
		}
	}
	rep.Priority = Priority(kpis, benchmarks)
	if rep.Total == 0 {
		rep.Label = LabelNotEnoughData
		return rep
	}
	s := int(math.Round(100 * float64(rep.Above) / float64(rep.Total)))
	rep.Score = &s
	rep.Label = Label(s)
	return rep
}

// Label maps a score to its band.
func Label(score int) string {
	switch {
	case score >= 80:
		return LabelExcellent
	case score >= 60:
		return LabelGood
	case score >= 40:
		return LabelNeedsAttention
	default:
		return LabelCritical
	}
}

// Priority picks the KPI furthest below target, ties going to the earlier one. Without
// such a KPI it falls back to the first benchmark below average.
func Priority(kpis []model.KPI, benchmarks []model.Benchmark) Action {
	best := -1
	bestGap := 0.0
	for i, k := range kpis {
		cur := current(k.Current)
		if cur >= k.Target {
			continue
		}
		gap := k.Target - cur
		if best < 0 || gap > bestGap {
			best, bestGap = i, gap
		}
	}
	if best >= 0 {
		k := kpis[best]
		return Action{
			Kind:    ActionKPI,
			Name:    k.Name,
			Metric:  k.Metric,
			Current: current(k.Current),
			Target:  k.Target,
			Gap:     bestGap,
			Message: fmt.Sprintf("improve %s: %s below target", k.Name, formatValue(bestGap, k.Unit)),
		}
	}
	for _, b := range benchmarks {
		cur := current(b.Current)
		if cur >= b.IndustryAverage {
			continue
		}
		gap := b.IndustryAverage - cur
		return Action{
			Kind:    ActionBenchmark,
			Name:    b.Name,
			Metric:  b.Metric,
			Current: cur,
			Target:  b.IndustryAverage,
			Gap:     gap,
			Message: fmt.Sprintf("close the gap on %s: %s below industry average", b.Name, formatValue(gap, b.Unit)),
		}
	}
	return Action{Kind: ActionMaintain, Message: maintainMessage}
}

func current(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func formatValue(v float64, unit model.Unit) string {
	switch unit {
	case model.UnitPercent:
		return fmt.Sprintf("%.2f%%", v)
	case model.UnitCurrency:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%g", v)
	}
}
