// Package trend compares live totals against recorded snapshots and turns snapshot
// history into chartable series.
package trend

import (
	"sort"
	"strings"
	"time"

	"marketpulse/internal/apperr"
	"marketpulse/internal/derived"
	"marketpulse/internal/model"
)

// Baseline names how far back a comparison looks.
type Baseline string

const (
	BaselinePrevious  Baseline = "previous"
	BaselineYesterday Baseline = "yesterday"
	BaselineLastWeek  Baseline = "last_week"
	BaselineLastMonth Baseline = "last_month"
)

var baselineAge = map[Baseline]time.Duration{
	BaselinePrevious:  0,
	BaselineYesterday: 24 * time.Hour,
	BaselineLastWeek:  7 * 24 * time.Hour,
	BaselineLastMonth: 30 * 24 * time.Hour,
}

// ParseBaseline accepts the labels above; an empty label means BaselinePrevious.
func ParseBaseline(s string) (Baseline, error) {
	b := Baseline(strings.ToLower(strings.TrimSpace(s)))
	if b == "" {
		return BaselinePrevious, nil
	}
	if _, ok := baselineAge[b]; !ok {
		return "", apperr.Validation("baseline_invalid", "unknown comparison baseline %q", s)
	}
	return b, nil
}

// Age is the minimum age a snapshot needs to serve as b.
func (b Baseline) Age() time.Duration { return baselineAge[b] }

// TrackedMetrics are compared and charted in this order.
var TrackedMetrics = []model.MetricKey{
	model.MetricImpressions,
	model.MetricClicks,
	model.MetricSpend,
	model.MetricConversions,
	model.MetricLeads,
	model.MetricTotalEngagements,
	model.MetricReach,
	model.MetricRevenue,
}

// Direction is the sign of a change.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	Flat Direction = "flat"
)

func (d Direction) invert() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	}
	return Flat
}

// Change describes how one metric moved. Movement is the raw sign; Direction is inverted
// for cost metrics so that Up always reads as good news.
type Change struct {
	Metric    string    `json:"metric"`
	Current   float64   `json:"current"`
	Previous  float64   `json:"previous"`
	Change    float64   `json:"change"`
	PctChange float64   `json:"pct_change"`
	Movement  Direction `json:"movement"`
	Direction Direction `json:"direction"`
	Improved  bool      `json:"improved"`
}

// Comparison pairs live totals with a baseline snapshot. Available is false when no
// snapshot exists; Changes is then empty rather than zero-filled.
type Comparison struct {
	Baseline  Baseline        `json:"baseline"`
	Available bool            `json:"available"`
	Fallback  bool            `json:"fallback"`
	Current   model.Snapshot  `json:"current"`
	Previous  *model.Snapshot `json:"previous"`
	Changes   []Change        `json:"changes"`
}

// Compare selects the newest snapshot at least baseline's age relative to
// current.RecordedAt. When none is old enough the newest snapshot is used and Fallback is
// set. snapshots may be in any order.
func Compare(current model.Snapshot, snapshots []model.Snapshot, baseline Baseline) Comparison {
	cmp := Comparison{Baseline: baseline, Current: current, Changes: []Change{}}
	if len(snapshots) == 0 {
		return cmp
	}
	ordered := sortedCopy(snapshots)
	now := current.RecordedAt
	minAge := baseline.Age()

	var picked *model.Snapshot
	for i := len(ordered) - 1; i >= 0; i-- {
		if now.Sub(ordered[i].RecordedAt) >= minAge {
			picked = &ordered[i]
			break
		}
	}
	if picked == nil {
		picked = &ordered[len(ordered)-1]
		cmp.Fallback = true
	}
	prev := *picked
	cmp.Previous = &prev
	cmp.Available = true
	cmp.Changes = Deltas(current, prev)
	return cmp
}

// Deltas computes per-metric changes between two snapshots. Ratio changes are only
// reported when the ratio is defined on both sides.
func Deltas(current, previous model.Snapshot) []Change {
	out := make([]Change, 0, len(TrackedMetrics)+len(model.AllRatios))
	for _, k := range TrackedMetrics {
		out = append(out, delta(string(k), current.Values.Get(k), previous.Values.Get(k)))
	}
	for _, k := range model.AllRatios {
		cur, okCur := current.Ratios.Get(k)
		prev, okPrev := previous.Ratios.Get(k)
		if !okCur || !okPrev {
			continue
		}
		out = append(out, delta(string(k), cur, prev))
	}
	return out
}

func delta(metric string, current, previous float64) Change {
	c := Change{
		Metric:    metric,
		Current:   current,
		Previous:  previous,
		Change:    current - previous,
		PctChange: PctChange(current, previous),
	}
	switch {
	case c.Change > 0:
		c.Movement = Up
	case c.Change < 0:
		c.Movement = Down
	default:
		c.Movement = Flat
	}
	c.Direction = c.Movement
	if derived.IsCostMetric(metric) {
		c.Direction = c.Movement.invert()
	}
	c.Improved = derived.Favorable(metric, c.Change)
	return c
}

// PctChange is the change relative to previous. Growth from zero reads as 100%.
func PctChange(current, previous float64) float64 {
	if previous > 0 {
		return (current - previous) / previous * 100
	}
	if current > 0 {
		return 100
	}
	return 0
}

func sortedCopy(snapshots []model.Snapshot) []model.Snapshot {
	out := append([]model.Snapshot(nil), snapshots...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out
}
