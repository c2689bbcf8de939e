// Package derived computes ratio metrics from canonical totals.
//
// A ratio whose denominator is zero is undefined and left out of the result; callers
// render it as "not available" rather than 0.
package derived

import "marketpulse/internal/model"

// Compute derives every ratio from values. Revenue is read from model.MetricRevenue and
// must already exclude revenue classified as tracked elsewhere.
func Compute(values model.MetricValues) model.Ratios {
	var (
		impressions = values.Get(model.MetricAdvertisingImpressions)
		clicks      = values.Get(model.MetricClicks)
		spend       = values.Get(model.MetricSpend)
		conversions = values.Get(model.MetricConversions)
		leads       = values.Get(model.MetricLeads)
		engagements = values.Get(model.MetricAllEngagements)
		revenue     = values.Get(model.MetricRevenue)
	)
	out := make(model.Ratios, len(model.AllRatios))
	set := func(k model.RatioKey, num, den, scale float64) {
		if den == 0 {
			return
		}
		out[k] = num / den * scale
	}
	set(model.RatioCTR, clicks, impressions, 100)
	set(model.RatioCPC, spend, clicks, 1)
	set(model.RatioCPM, spend, impressions, 1000)
	set(model.RatioCVR, conversions, clicks, 100)
	set(model.RatioCPA, spend, conversions, 1)
	set(model.RatioCPL, spend, leads, 1)
	set(model.RatioER, engagements, impressions, 100)
	set(model.RatioROI, revenue-spend, spend, 100)
	set(model.RatioROAS, revenue, spend, 1)
	return out
}

// ForPlatform derives ratios for a single source. Advertising impressions and
// engagements are taken from the source's own values.
func ForPlatform(values model.MetricValues, revenue float64) model.Ratios {
	v := values.Clone()
	v[model.MetricAdvertisingImpressions] = values.Get(model.MetricImpressions)
	v[model.MetricAllEngagements] = values.Get(model.MetricClicks) + values.Get(model.MetricTotalEngagements)
	v[model.MetricRevenue] = revenue
	return Compute(v)
}
