package model

import (
	"encoding/json"
	"time"
)

// MetricKey names a canonical, source-agnostic metric.
type MetricKey string

const (
	MetricImpressions      MetricKey = "impressions"
	MetricClicks           MetricKey = "clicks"
	MetricSpend            MetricKey = "spend"
	MetricConversions      MetricKey = "conversions"
	MetricLeads            MetricKey = "leads"
	MetricTotalEngagements MetricKey = "total_engagements"
	MetricReach            MetricKey = "reach"

	MetricVideoViews       MetricKey = "video_views"
	MetricViralImpressions MetricKey = "viral_impressions"
	MetricPageviews        MetricKey = "pageviews"
	MetricSessions         MetricKey = "sessions"

	// Pass-through aggregates computed across sources.
	MetricAdvertisingImpressions MetricKey = "advertising_impressions"
	MetricAllImpressions         MetricKey = "total_impressions"
	MetricAdvertisingEngagements MetricKey = "advertising_engagements"
	MetricAllEngagements         MetricKey = "total_engagements_all"

	MetricRevenue MetricKey = "revenue"
)

// BaseMetrics must be present (possibly zero) in every canonical metric set.
var BaseMetrics = []MetricKey{
	MetricImpressions,
	MetricClicks,
	MetricSpend,
	MetricConversions,
	MetricLeads,
	MetricTotalEngagements,
	MetricReach,
}

// OptionalMetrics may be reported by some sources only.
var OptionalMetrics = []MetricKey{
	MetricVideoViews,
	MetricViralImpressions,
	MetricPageviews,
	MetricSessions,
}

// IsSourceMetric reports whether k can be produced by a source field table.
func IsSourceMetric(k MetricKey) bool {
	for _, m := range BaseMetrics {
		if m == k {
			return true
		}
	}
	for _, m := range OptionalMetrics {
		if m == k {
			return true
		}
	}
	return false
}

// MetricValues maps metric keys to non-negative finite values. Absent keys read as zero.
type MetricValues map[MetricKey]float64

// Get returns the value for k, or 0 when absent.
func (v MetricValues) Get(k MetricKey) float64 {
	if v == nil {
		return 0
	}
	return v[k]
}

// Clone returns an independent copy.
func (v MetricValues) Clone() MetricValues {
	out := make(MetricValues, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// CanonicalMetricSet is one source's normalized metrics for one campaign.
type CanonicalMetricSet struct {
	CampaignID  string       `json:"campaign_id" yaml:"campaign_id"`
	SourceID    string       `json:"source_id" yaml:"source_id"`
	Values      MetricValues `json:"values" yaml:"values"`
	CollectedAt time.Time    `json:"collected_at" yaml:"collected_at"`
}

// Get returns the value for k, or 0 when absent.
func (s CanonicalMetricSet) Get(k MetricKey) float64 { return s.Values.Get(k) }

// RatioKey names a derived ratio metric.
type RatioKey string

const (
	RatioCTR  RatioKey = "ctr"
	RatioCPC  RatioKey = "cpc"
	RatioCPM  RatioKey = "cpm"
	RatioCVR  RatioKey = "cvr"
	RatioCPA  RatioKey = "cpa"
	RatioCPL  RatioKey = "cpl"
	RatioER   RatioKey = "er"
	RatioROI  RatioKey = "roi"
	RatioROAS RatioKey = "roas"
)

// AllRatios lists every derived ratio in display order.
var AllRatios = []RatioKey{RatioCTR, RatioCPC, RatioCPM, RatioCVR, RatioCPA, RatioCPL, RatioER, RatioROI, RatioROAS}

// Ratios holds derived metrics. A key is absent when its denominator was zero; absence
// means "undefined" and is rendered as null, never as 0.
type Ratios map[RatioKey]float64

// Get returns the ratio and whether it is defined.
func (r Ratios) Get(k RatioKey) (float64, bool) {
	v, ok := r[k]
	return v, ok
}

// MarshalJSON renders every known ratio, using null for undefined ones.
func (r Ratios) MarshalJSON() ([]byte, error) {
	out := make(map[RatioKey]*float64, len(AllRatios))
	for _, k := range AllRatios {
		if v, ok := r[k]; ok {
			v := v
			out[k] = &v
		} else {
			out[k] = nil
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON drops null entries so they stay undefined.
func (r *Ratios) UnmarshalJSON(data []byte) error {
	var in map[RatioKey]*float64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(Ratios, len(in))
	for k, v := range in {
		if v != nil {
			out[k] = *v
		}
	}
	*r = out
	return nil
}
