package normalize

import (
	"sort"

	"marketpulse/internal/model"
)

// Contribution records what one source added to a campaign's totals, so an unexpected
// total can be traced back to its sources.
type Contribution struct {
	SourceID    string             `json:"source_id"`
	DisplayName string             `json:"display_name"`
	Kind        SourceKind         `json:"kind"`
	Connected   bool               `json:"connected"`
	Contributed bool               `json:"contributed"`
	Values      model.MetricValues `json:"values,omitempty"`
}

// Totals are the summed canonical metrics of all contributing sources.
type Totals struct {
	Values        model.MetricValues `json:"values"`
	Contributions []Contribution     `json:"contributions"`
}

// Aggregate sums sets over connected sources and computes the pass-through aggregates:
//
//	advertising_impressions = Σ impressions over ad-platform sources
//	total_impressions       = advertising_impressions + pageviews
//	advertising_engagements = Σ (clicks + total_engagements) over ad-platform sources
//	total_engagements_all   = advertising_engagements + sessions
//
// A source reported as disconnected contributes nothing; a source without a status entry
// is assumed connected. Custom integrations count as advertising sources.
func (r *Registry) Aggregate(sets []model.CanonicalMetricSet, statuses []model.SourceStatus) Totals {
	connected := make(map[string]bool, len(statuses))
	names := make(map[string]string, len(statuses))
	for _, s := range statuses {
		connected[s.SourceID] = s.Connected
		names[s.SourceID] = s.DisplayName
	}

	values := make(model.MetricValues)
	for _, k := range model.BaseMetrics {
		values[k] = 0
	}
	bySource := make(map[string]*Contribution)
	var advImpressions, advEngagements float64

	for _, set := range sets {
		c, ok := bySource[set.SourceID]
		if !ok {
			c = r.contribution(set.SourceID, names[set.SourceID])
			c.Connected = true
			if on, known := connected[set.SourceID]; known {
				c.Connected = on
			}
			bySource[set.SourceID] = c
		}
		if !c.Connected {
			continue
		}
		c.Contributed = true
		if c.Values == nil {
			c.Values = make(model.MetricValues)
		}
		for k, v := range set.Values {
			if !model.IsSourceMetric(k) {
				continue
			}
			v = SafeNumber(v)
			values[k] += v
			c.Values[k] += v
		}
		if c.Kind == KindAdPlatform || c.Kind == KindCustom {
			advImpressions += SafeNumber(set.Get(model.MetricImpressions))
			advEngagements += SafeNumber(set.Get(model.MetricClicks)) + SafeNumber(set.Get(model.MetricTotalEngagements))
		}
	}

	for _, s := range statuses {
		if _, ok := bySource[s.SourceID]; !ok {
			c := r.contribution(s.SourceID, s.DisplayName)
			c.Connected = s.Connected
			bySource[s.SourceID] = c
		}
	}

	values[model.MetricAdvertisingImpressions] = advImpressions
	values[model.MetricAllImpressions] = advImpressions + values.Get(model.MetricPageviews)
	values[model.MetricAdvertisingEngagements] = advEngagements
	values[model.MetricAllEngagements] = advEngagements + values.Get(model.MetricSessions)

	out := Totals{Values: values, Contributions: make([]Contribution, 0, len(bySource))}
	for _, c := range bySource {
		out.Contributions = append(out.Contributions, *c)
	}
	sort.Slice(out.Contributions, func(i, j int) bool {
		return out.Contributions[i].SourceID < out.Contributions[j].SourceID
	})
	return out
}

func (r *Registry) contribution(sourceID, displayName string) *Contribution {
	c := &Contribution{SourceID: sourceID, DisplayName: displayName, Kind: r.Kind(sourceID)}
	if t, ok := r.Table(sourceID); ok && c.DisplayName == "" {
		c.DisplayName = t.DisplayName
	}
	if c.DisplayName == "" {
		c.DisplayName = sourceID
	}
	return c
}
