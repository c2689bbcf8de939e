package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"marketpulse/internal/apperr"
	"marketpulse/internal/crosswalk"
	"marketpulse/internal/derived"
	"marketpulse/internal/model"
	"marketpulse/internal/normalize"
)

// ExternalSpend is one lifetime spend total imported from outside the ad platforms.
type ExternalSpend struct {
	SourceType model.SourceType `json:"source_type"`
	Amount     model.Money      `json:"amount"`
}

// PlatformBreakdown carries a single ad platform's own figures and ratios.
type PlatformBreakdown struct {
	SourceID    string             `json:"source_id"`
	DisplayName string             `json:"display_name"`
	Values      model.MetricValues `json:"values"`
	Revenue     float64            `json:"revenue"`
	Ratios      model.Ratios       `json:"ratios"`
}

// Revenue summarizes every configured revenue mapping. Total excludes resolutions
// classified as already tracked onsite; those stay listed for audit.
type Revenue struct {
	Total       model.Money            `json:"total"`
	Resolutions []crosswalk.Resolution `json:"resolutions"`
}

// Totals is the aggregated view of a campaign.
type Totals struct {
	CampaignID    string                   `json:"campaign_id"`
	Currency      string                   `json:"currency"`
	Values        model.MetricValues       `json:"values"`
	Ratios        model.Ratios             `json:"derived"`
	Revenue       Revenue                  `json:"revenue"`
	ExternalSpend []ExternalSpend          `json:"external_spend"`
	Contributions []normalize.Contribution `json:"contributions"`
	Platforms     []PlatformBreakdown      `json:"platforms"`
	ComputedAt    time.Time                `json:"computed_at"`
}

// Snapshot converts totals into a snapshot recorded at ComputedAt.
func (t Totals) Snapshot() model.Snapshot {
	return model.Snapshot{
		CampaignID: t.CampaignID,
		RecordedAt: t.ComputedAt,
		Values:     t.Values.Clone(),
		Ratios:     t.Ratios,
	}
}

// AggregatedTotals fetches every connected source, sums canonical metrics, adds external
// spend and attributed revenue, and derives ratios.
func (s *Service) AggregatedTotals(ctx context.Context, campaignID string) (Totals, error) {
	c, err := s.campaign(ctx, campaignID)
	if err != nil {
		return Totals{}, err
	}
	statuses, err := s.provider.Sources(ctx, campaignID)
	if err != nil {
		return Totals{}, s.observe(err, zap.String("campaign_id", campaignID))
	}
	sets, err := s.fetchSets(ctx, campaignID, statuses)
	if err != nil {
		return Totals{}, err
	}
	agg := s.registry.Aggregate(sets, statuses)

	out := Totals{
		CampaignID:    campaignID,
		Currency:      model.CurrencyCode(c.Currency),
		Values:        agg.Values,
		Contributions: agg.Contributions,
		ExternalSpend: []ExternalSpend{},
		ComputedAt:    s.now().UTC(),
	}

	if err := s.addExternalSpend(ctx, c, &out); err != nil {
		return Totals{}, err
	}

	conversions := connectedConversions(agg)
	mappings, err := s.config.RevenueMappings(ctx, campaignID)
	if err != nil {
		return Totals{}, err
	}
	out.Revenue.Resolutions = make([]crosswalk.Resolution, 0, len(mappings))
	for _, m := range mappings {
		res, err := s.resolve(ctx, c, m, conversions)
		if err != nil {
			return Totals{}, err
		}
		out.Revenue.Resolutions = append(out.Revenue.Resolutions, res)
	}
	total, err := crosswalk.Combine(c.Currency, out.Revenue.Resolutions)
	if err != nil {
		return Totals{}, err
	}
	out.Revenue.Total = total
	out.Values[model.MetricRevenue] = total.Float()
	out.Ratios = derived.Compute(out.Values)
	out.Platforms = s.platforms(agg, out.Revenue.Resolutions)
	return out, nil
}

func (s *Service) fetchSets(ctx context.Context, campaignID string, statuses []model.SourceStatus) ([]model.CanonicalMetricSet, error) {
	sets := make([]model.CanonicalMetricSet, 0, len(statuses))
	for _, st := range statuses {
		if !st.Connected {
			continue
		}
		set, err := s.provider.FetchCanonicalMetrics(ctx, st.SourceID, campaignID)
		if err != nil {
			return nil, s.observe(err, zap.String("campaign_id", campaignID))
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func (s *Service) addExternalSpend(ctx context.Context, c model.Campaign, out *Totals) error {
	mappings, err := s.config.SpendMappings(ctx, c.ID)
	if err != nil {
		return err
	}
	for _, m := range mappings {
		amount, err := s.provider.FetchSpendAmount(ctx, m)
		if err != nil {
			return s.observe(err, zap.String("campaign_id", c.ID))
		}
		if cur := model.CurrencyCode(c.Currency); cur != "" && amount.Currency != "" && model.CurrencyCode(amount.Currency) != cur {
			return apperr.Validation("currency_mismatch",
				"%s spend is in %s but campaign %s reports in %s", m.SourceType, amount.Currency, c.ID, c.Currency)
		}
		out.Values[model.MetricSpend] += amount.Float()
		out.ExternalSpend = append(out.ExternalSpend, ExternalSpend{SourceType: m.SourceType, Amount: amount})
	}
	return nil
}

// connectedConversions maps each contributing source to its conversion count.
func connectedConversions(agg normalize.Totals) map[string]float64 {
	out := make(map[string]float64, len(agg.Contributions))
	for _, c := range agg.Contributions {
		if c.Contributed {
			out[c.SourceID] = c.Values.Get(model.MetricConversions)
		}
	}
	return out
}

// resolve fetches rows for m and applies it. Previews, saves and totals all go through
// here so they agree for identical inputs.
func (s *Service) resolve(ctx context.Context, c model.Campaign, m model.RevenueMapping, conversions map[string]float64) (crosswalk.Resolution, error) {
	if err := crosswalk.ValidateRevenueMapping(m, s.maxLookbackDays); err != nil {
		return crosswalk.Resolution{}, err
	}
	rows, err := s.provider.FetchRevenueRows(ctx, m.SourceType, c.ID, m.LookbackDays)
	if err != nil {
		return crosswalk.Resolution{}, s.observe(err, zap.String("campaign_id", c.ID))
	}
	return crosswalk.Resolve(rows, m, crosswalk.Options{
		AsOf:                s.now(),
		Currency:            c.Currency,
		PlatformConversions: conversions[m.ConversionSourceID],
		MaxLookbackDays:     s.maxLookbackDays,
	})
}

func (s *Service) platforms(agg normalize.Totals, resolutions []crosswalk.Resolution) []PlatformBreakdown {
	revenueBySource := make(map[string]float64)
	for _, r := range resolutions {
		if r.ValueMode != model.DerivedConversionValue || !r.IncludedInTotal || r.ConversionValue == nil {
			continue
		}
		revenueBySource[r.ConversionSourceID] += r.PlatformConversions * *r.ConversionValue
	}
	out := make([]PlatformBreakdown, 0, len(agg.Contributions))
	for _, c := range agg.Contributions {
		if !c.Contributed || c.Kind == normalize.KindAnalytics {
			continue
		}
		rev := revenueBySource[c.SourceID]
		out = append(out, PlatformBreakdown{
			SourceID:    c.SourceID,
			DisplayName: c.DisplayName,
			Values:      c.Values,
			Revenue:     rev,
			Ratios:      derived.ForPlatform(c.Values, rev),
		})
	}
	return out
}
