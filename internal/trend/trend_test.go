package trend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func snap(age time.Duration, clicks, spend float64) model.Snapshot {
	return model.Snapshot{
		CampaignID: "c-1",
		RecordedAt: now.Add(-age),
		Values:     model.MetricValues{model.MetricClicks: clicks, model.MetricSpend: spend},
		Ratios:     model.Ratios{},
	}
}

func find(t *testing.T, changes []Change, metric string) Change {
	t.Helper()
	for _, c := range changes {
		if c.Metric == metric {
			return c
		}
	}
	t.Fatalf("metric %s not in changes", metric)
	return Change{}
}

func TestCompareWithoutSnapshotsIsUnavailable(t *testing.T) {
	cmp := Compare(snap(0, 10, 5), nil, BaselineYesterday)
	require.False(t, cmp.Available)
	require.Nil(t, cmp.Previous)
	require.Empty(t, cmp.Changes)
}

func TestCompareFallsBackToNewest(t *testing.T) {
	history := []model.Snapshot{snap(24*time.Hour, 100, 50)}
	cmp := Compare(snap(0, 150, 40), history, BaselineLastWeek)
	require.True(t, cmp.Available)
	require.True(t, cmp.Fallback)
	require.Equal(t, history[0].RecordedAt, cmp.Previous.RecordedAt)

	clicks := find(t, cmp.Changes, "clicks")
	require.Equal(t, 50.0, clicks.Change)
	require.Equal(t, 50.0, clicks.PctChange)
	require.Equal(t, Up, clicks.Direction)
	require.True(t, clicks.Improved)

	spend := find(t, cmp.Changes, "spend")
	require.Equal(t, Down, spend.Movement)
	require.Equal(t, Up, spend.Direction, "lower spend reads as good news")
	require.True(t, spend.Improved)
}

func TestComparePicksNewestOldEnough(t *testing.T) {
	history := []model.Snapshot{
		snap(40*24*time.Hour, 1, 0),
		snap(8*24*time.Hour, 2, 0),
		snap(7*24*time.Hour, 3, 0),
		snap(2*time.Hour, 4, 0),
	}
	cmp := Compare(snap(0, 5, 0), history, BaselineLastWeek)
	require.False(t, cmp.Fallback)
	require.Equal(t, 3.0, cmp.Previous.Values.Get(model.MetricClicks))

	cmp = Compare(snap(0, 5, 0), history, BaselinePrevious)
	require.Equal(t, 4.0, cmp.Previous.Values.Get(model.MetricClicks))

	cmp = Compare(snap(0, 5, 0), history, BaselineLastMonth)
	require.Equal(t, 1.0, cmp.Previous.Values.Get(model.MetricClicks))
}

func TestPctChange(t *testing.T) {
	require.Equal(t, 100.0, PctChange(5, 0))
	require.Equal(t, 0.0, PctChange(0, 0))
	require.Equal(t, -50.0, PctChange(5, 10))
}

func TestDeltasSkipUndefinedRatios(t *testing.T) {
	cur := snap(0, 10, 10)
	cur.Ratios = model.Ratios{model.RatioCPC: 1, model.RatioCTR: 2}
	prev := snap(time.Hour, 5, 10)
	prev.Ratios = model.Ratios{model.RatioCPC: 2}

	changes := Deltas(cur, prev)
	cpc := find(t, changes, "cpc")
	require.Equal(t, Down, cpc.Movement)
	require.Equal(t, Up, cpc.Direction)
	for _, c := range changes {
		require.NotEqual(t, "ctr", c.Metric)
	}

	spend := find(t, changes, "spend")
	require.Equal(t, Flat, spend.Direction)
	require.False(t, spend.Improved)
}

func TestSeriesCollapsesIdenticalRuns(t *testing.T) {
	history := []model.Snapshot{
		snap(6*time.Hour, 1, 1), // A
		snap(5*time.Hour, 1, 1), // A
		snap(4*time.Hour, 1, 1), // A
		snap(3*time.Hour, 2, 1), // B
		snap(2*time.Hour, 2, 1), // B
		snap(1*time.Hour, 3, 1), // C
	}
	s := NewSeries(history)
	require.False(t, s.Insufficient)
	require.Len(t, s.Points, 3)
	require.Equal(t, history[0].RecordedAt, s.Points[0].RecordedAt)
	require.Equal(t, history[3].RecordedAt, s.Points[1].RecordedAt)

	flat := NewSeries(history[:3])
	require.True(t, flat.Insufficient)
	require.Len(t, flat.Points, 1)

	require.True(t, NewSeries(nil).Insufficient)
}

func TestSeriesRatioDefinednessCounts(t *testing.T) {
	a := snap(2*time.Hour, 1, 1)
	b := snap(time.Hour, 1, 1)
	b.Ratios = model.Ratios{model.RatioCTR: 0}
	require.Len(t, NewSeries([]model.Snapshot{a, b}).Points, 2)
}

func TestBucketKeepsLatest(t *testing.T) {
	base := time.Date(2025, 6, 30, 9, 0, 0, 0, time.UTC) // a Monday
	at := func(d time.Duration, clicks float64) model.Snapshot {
		return model.Snapshot{RecordedAt: base.Add(d), Values: model.MetricValues{model.MetricClicks: clicks}}
	}
	history := []model.Snapshot{at(50*time.Minute, 2), at(10*time.Minute, 1), at(70*time.Minute, 3), at(26*time.Hour, 4)}

	hourly := Bucket(history, Hourly)
	require.Len(t, hourly, 3)
	require.Equal(t, 2.0, hourly[0].Values.Get(model.MetricClicks))

	daily := Bucket(history, Daily)
	require.Len(t, daily, 2)
	require.Equal(t, 3.0, daily[0].Values.Get(model.MetricClicks))

	weekly := Bucket(history, Weekly)
	require.Len(t, weekly, 1)
	require.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), Weekly.BucketStart(base.AddDate(0, 0, 6)))
}

func TestParsers(t *testing.T) {
	b, err := ParseBaseline("")
	require.NoError(t, err)
	require.Equal(t, BaselinePrevious, b)
	_, err = ParseBaseline("last_year")
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	g, err := ParseGranularity("Weekly")
	require.NoError(t, err)
	require.Equal(t, Weekly, g)
	_, err = ParseGranularity("minutely")
	require.Error(t, err)
}

func TestViewState(t *testing.T) {
	require.Equal(t, NoSnapshots, ViewState(0))
	require.Equal(t, SingleSnapshot, ViewState(1))
	require.Equal(t, MultiSnapshot, ViewState(7))
}
