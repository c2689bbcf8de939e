package health

import (
	"testing"

	"github.com/stretchr/testify/require"

	"marketpulse/internal/model"
)

func f(v float64) *float64 { return &v }

func TestScoreUndefinedWithoutGoals(t *testing.T) {
	rep := Score(nil, nil)
	require.Nil(t, rep.Score)
	require.Equal(t, LabelNotEnoughData, rep.Label)
	require.Equal(t, ActionMaintain, rep.Priority.Kind)
}

func TestScoreCountsEqualAsAbove(t *testing.T) {
	kpis := []model.KPI{
		{Name: "ROAS", Metric: "roas", Target: 4, Current: f(4)},
		{Name: "Leads", Metric: "leads", Target: 100, Current: f(99)},
	}
	benchmarks := []model.Benchmark{
		{Name: "CTR", Metric: "ctr", Current: f(1.9), IndustryAverage: 1.9},
	}
	rep := Score(kpis, benchmarks)
	require.NotNil(t, rep.Score)
	require.Equal(t, 67, *rep.Score)
	require.Equal(t, LabelGood, rep.Label)
	require.Equal(t, 2, rep.Above)
	require.Equal(t, 3, rep.Total)
}

func TestScoreRounding(t *testing.T) {
	kpis := make([]model.KPI, 8)
	for i := range kpis {
		kpis[i] = model.KPI{Name: "k", Target: 1, Current: f(0)}
	}
	kpis[0].Current = f(1)
	// 1/8 = 12.5 rounds half away from zero.
	rep := Score(kpis, nil)
	require.Equal(t, 13, *rep.Score)
	require.Equal(t, LabelCritical, rep.Label)
}

func TestLabelBands(t *testing.T) {
	cases := map[int]string{
		100: LabelExcellent, 80: LabelExcellent, 79: LabelGood, 60: LabelGood,
		59: LabelNeedsAttention, 40: LabelNeedsAttention, 39: LabelCritical, 0: LabelCritical,
	}
	for score, want := range cases {
		require.Equal(t, want, Label(score), score)
	}
}

func TestPriorityLargestGapFirstWins(t *testing.T) {
	kpis := []model.KPI{
		{Name: "Conversions", Metric: "conversions", Target: 50, Current: f(40)},
		{Name: "Leads", Metric: "leads", Target: 120, Current: f(100)},
		{Name: "Clicks", Metric: "clicks", Target: 30, Current: f(10)},
	}
	act := Priority(kpis, nil)
	require.Equal(t, ActionKPI, act.Kind)
	require.Equal(t, "Leads", act.Name, "ties keep input order")
	require.Equal(t, 20.0, act.Gap)
}

func TestPriorityFallsBackToBenchmark(t *testing.T) {
	kpis := []model.KPI{{Name: "ROAS", Target: 2, Current: f(3)}}
	benchmarks := []model.Benchmark{
		{Name: "CTR", Metric: "ctr", Current: f(2), IndustryAverage: 1.5},
		{Name: "CVR", Metric: "cvr", Current: f(1), IndustryAverage: 3, Unit: model.UnitPercent},
		{Name: "ER", Metric: "er", Current: f(0), IndustryAverage: 5},
	}
	act := Priority(kpis, benchmarks)
	require.Equal(t, ActionBenchmark, act.Kind)
	require.Equal(t, "CVR", act.Name)
	require.Contains(t, act.Message, "2.00%")
}

func TestPriorityMaintain(t *testing.T) {
	act := Priority([]model.KPI{{Name: "ROAS", Target: 2, Current: f(2)}}, nil)
	require.Equal(t, ActionMaintain, act.Kind)
	require.Equal(t, "maintain current performance", act.Message)
}

func TestMissingCurrentCountsAsZero(t *testing.T) {
	rep := Score([]model.KPI{{Name: "Leads", Target: 10}}, nil)
	require.Equal(t, 0, *rep.Score)
	require.Equal(t, 10.0, rep.Priority.Gap)
}
