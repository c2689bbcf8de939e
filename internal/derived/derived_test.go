package derived

import (
	"testing"

	"github.com/stretchr/testify/require"

	"marketpulse/internal/model"
)

func TestComputeCampaignExample(t *testing.T) {
	values := model.MetricValues{
		model.MetricImpressions:            10000,
		model.MetricAdvertisingImpressions: 10000,
		model.MetricClicks:                 250,
		model.MetricSpend:                  500,
		model.MetricConversions:            20,
		model.MetricRevenue:                3000,
	}
	r := Compute(values)

	expect := map[model.RatioKey]float64{
		model.RatioCTR:  2.5,
		model.RatioCPC:  2,
		model.RatioCPM:  50,
		model.RatioCVR:  8,
		model.RatioCPA:  25,
		model.RatioROI:  500,
		model.RatioROAS: 6,
	}
	for k, want := range expect {
		got, ok := r.Get(k)
		require.True(t, ok, "%s undefined", k)
		require.InDelta(t, want, got, 1e-9, "%s", k)
	}
	_, ok := r.Get(model.RatioCPL)
	require.False(t, ok, "no leads means CPL is undefined")
}

func TestComputeZeroDenominatorsAreUndefined(t *testing.T) {
	r := Compute(model.MetricValues{
		model.MetricClicks:      10,
		model.MetricConversions: 3,
		model.MetricRevenue:     100,
	})
	for _, k := range []model.RatioKey{model.RatioCTR, model.RatioCPM, model.RatioER, model.RatioROI, model.RatioROAS} {
		_, ok := r.Get(k)
		require.False(t, ok, "%s should be undefined", k)
	}
	cpc, ok := r.Get(model.RatioCPC)
	require.True(t, ok)
	require.Zero(t, cpc, "zero spend over ten clicks is a real 0, not undefined")

	empty := Compute(nil)
	require.Empty(t, empty)
}

func TestZeroCTRIsDistinctFromUndefined(t *testing.T) {
	r := Compute(model.MetricValues{model.MetricAdvertisingImpressions: 100})
	ctr, ok := r.Get(model.RatioCTR)
	require.True(t, ok)
	require.Zero(t, ctr)
}

func TestForPlatformUsesOwnImpressions(t *testing.T) {
	r := ForPlatform(model.MetricValues{
		model.MetricImpressions: 2000,
		model.MetricClicks:      40,
		model.MetricSpend:       100,
	}, 400)
	ctr, _ := r.Get(model.RatioCTR)
	roas, _ := r.Get(model.RatioROAS)
	er, _ := r.Get(model.RatioER)
	require.InDelta(t, 2.0, ctr, 1e-9)
	require.InDelta(t, 4.0, roas, 1e-9)
	require.InDelta(t, 2.0, er, 1e-9)
}

func TestFavorable(t *testing.T) {
	require.False(t, Favorable("spend", 10))
	require.True(t, Favorable("spend", -10))
	require.True(t, Favorable("cpa", -1))
	require.True(t, Favorable("revenue", 1))
	require.True(t, Favorable("roas", 0.5))
	require.False(t, Favorable("clicks", -1))
	require.False(t, Favorable("clicks", 0))
	require.True(t, IsCostMetric("cpm"))
	require.False(t, IsCostMetric("roi"))
}
