package trend

import (
	"strings"
	"time"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
)

// Granularity is the bucket width for trend charts.
type Granularity string

const (
	Hourly Granularity = "hourly"
	Daily  Granularity = "daily"
	Weekly Granularity = "weekly"
)

// ParseGranularity accepts hourly, daily or weekly; empty means daily.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return Daily, nil
	case Hourly, Daily, Weekly:
		return g, nil
	}
	return "", apperr.Validation("granularity_invalid", "unknown granularity %q", s)
}

// BucketStart truncates t (in UTC) to the start of its bucket. Weeks start on Monday.
func (g Granularity) BucketStart(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case Hourly:
		return t.Truncate(time.Hour)
	case Weekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// Bucket keeps the latest snapshot in each bucket, ordered oldest first.
func Bucket(snapshots []model.Snapshot, g Granularity) []model.Snapshot {
	ordered := sortedCopy(snapshots)
	out := make([]model.Snapshot, 0, len(ordered))
	var last time.Time
	for i, s := range ordered {
		b := g.BucketStart(s.RecordedAt)
		if i > 0 && b.Equal(last) {
			out[len(out)-1] = s
			continue
		}
		out = append(out, s)
		last = b
	}
	return out
}

// Point is one entry of a trend chart.
type Point struct {
	RecordedAt time.Time          `json:"recorded_at"`
	Values     model.MetricValues `json:"values"`
	Ratios     model.Ratios       `json:"ratios"`
}

// Series is a chartable history. Insufficient is set when fewer than two distinct points
// remain; callers show the aggregated single-point view instead.
type Series struct {
	Points       []Point `json:"points"`
	Insufficient bool    `json:"insufficient_data"`
}

// NewSeries emits one point per snapshot and collapses runs of consecutive snapshots
// whose tracked metrics are identical, keeping the first of each run.
func NewSeries(snapshots []model.Snapshot) Series {
	ordered := sortedCopy(snapshots)
	points := make([]Point, 0, len(ordered))
	for i, s := range ordered {
		if i > 0 && sameTracked(ordered[i-1], s) {
			continue
		}
		points = append(points, Point{RecordedAt: s.RecordedAt, Values: s.Values, Ratios: s.Ratios})
	}
	return Series{Points: points, Insufficient: len(points) < 2}
}

func sameTracked(a, b model.Snapshot) bool {
	for _, k := range TrackedMetrics {
		if a.Values.Get(k) != b.Values.Get(k) {
			return false
		}
	}
	for _, k := range model.AllRatios {
		av, aok := a.Ratios.Get(k)
		bv, bok := b.Ratios.Get(k)
		if aok != bok || av != bv {
			return false
		}
	}
	return true
}

// View is the presentation state driven by how many snapshots exist.
type View string

const (
	NoSnapshots    View = "no_snapshots"
	SingleSnapshot View = "single_snapshot"
	MultiSnapshot  View = "multi_snapshot"
)

// ViewState maps a snapshot count to its view. Counts only grow, so the state only moves
// forward.
func ViewState(count int) View {
	switch {
	case count <= 0:
		return NoSnapshots
	case count == 1:
		return SingleSnapshot
	default:
		return MultiSnapshot
	}
}
