package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"marketpulse/internal/apperr"
	"marketpulse/internal/crosswalk"
	"marketpulse/internal/model"
)

// DefaultDiscoveryLookbackDays bounds the rows scanned when listing attribution values.
const DefaultDiscoveryLookbackDays = 90

// DiscoveryQuery selects which attribution values to list.
type DiscoveryQuery struct {
	SourceType   model.SourceType
	Key          string
	Filter       string
	Limit        int
	LookbackDays int
}

// DiscoverValues lists the most frequent values of an attribution key so a user can pick
// accepted values. It never changes how revenue is resolved.
func (s *Service) DiscoverValues(ctx context.Context, campaignID string, q DiscoveryQuery) ([]crosswalk.ValueCount, error) {
	if _, err := s.campaign(ctx, campaignID); err != nil {
		return nil, err
	}
	if !q.SourceType.Valid() {
		return nil, apperr.Validation("source_type_invalid", "unknown source type %q", q.SourceType)
	}
	if strings.TrimSpace(q.Key) == "" {
		return nil, apperr.Validation("attribution_key_missing", "choose an attribution key to list its values")
	}
	lookback := q.LookbackDays
	if lookback <= 0 {
		lookback = DefaultDiscoveryLookbackDays
	}
	if lookback > s.maxLookbackDays {
		lookback = s.maxLookbackDays
	}
	rows, err := s.provider.FetchRevenueRows(ctx, q.SourceType, campaignID, lookback)
	if err != nil {
		return nil, s.observe(err, zap.String("campaign_id", campaignID))
	}
	return crosswalk.Discover(rows, q.Key, q.Filter, q.Limit), nil
}

// PreviewCrosswalk resolves a draft without saving it.
func (s *Service) PreviewCrosswalk(ctx context.Context, campaignID string, draft crosswalk.Draft) (crosswalk.Resolution, error) {
	c, err := s.campaign(ctx, campaignID)
	if err != nil {
		return crosswalk.Resolution{}, err
	}
	m := draft.Mapping(campaignID)
	if err := s.checkRekey(ctx, m); err != nil {
		return crosswalk.Resolution{}, err
	}
	return s.resolveOne(ctx, c, m)
}

// SaveResult is returned after a revenue mapping is stored. Mode and classification are
// reported with the figure they produced.
type SaveResult struct {
	Mapping           model.RevenueMapping `json:"mapping"`
	TotalRevenue      model.Money          `json:"total_revenue"`
	PresentmentTotals []model.Money        `json:"presentment_totals,omitempty"`
	Mode              model.ValueMode      `json:"mode"`
	Classification    model.Classification `json:"classification"`
	IncludedInTotal   bool                 `json:"included_in_total"`
	Resolution        crosswalk.Resolution `json:"resolution"`
}

// SaveRevenueMapping validates, resolves and stores m, replacing any mapping the campaign
// already has for the same source type. Nothing is written when validation or the source
// fetch fails.
func (s *Service) SaveRevenueMapping(ctx context.Context, campaignID string, m model.RevenueMapping) (SaveResult, error) {
	c, err := s.campaign(ctx, campaignID)
	if err != nil {
		return SaveResult{}, err
	}
	m = crosswalk.DraftFrom(m).Mapping(campaignID)
	if err := s.checkRekey(ctx, m); err != nil {
		return SaveResult{}, err
	}
	res, err := s.resolveOne(ctx, c, m)
	if err != nil {
		return SaveResult{}, err
	}
	m.UpdatedAt = s.now().UTC()
	if err := s.config.SaveRevenueMapping(ctx, m); err != nil {
		return SaveResult{}, err
	}
	s.log.Info("revenue mapping saved",
		zap.String("campaign_id", campaignID),
		zap.String("source_type", string(m.SourceType)),
		zap.Int("matched_rows", res.MatchedRows),
		zap.String("classification", string(m.Classification)))
	return SaveResult{
		Mapping:           m,
		TotalRevenue:      res.AttributedRevenue,
		PresentmentTotals: res.PresentmentTotals,
		Mode:              res.ValueMode,
		Classification:    res.Classification,
		IncludedInTotal:   res.IncludedInTotal,
		Resolution:        res,
	}, nil
}

// checkRekey compares m with the mapping already stored for its source type.
func (s *Service) checkRekey(ctx context.Context, m model.RevenueMapping) error {
	stored, err := s.config.RevenueMappings(ctx, m.CampaignID)
	if err != nil {
		return err
	}
	for _, prev := range stored {
		if prev.SourceType == m.SourceType {
			return crosswalk.CheckRekey(prev, m)
		}
	}
	return nil
}

func (s *Service) resolveOne(ctx context.Context, c model.Campaign, m model.RevenueMapping) (crosswalk.Resolution, error) {
	if err := crosswalk.ValidateRevenueMapping(m, s.maxLookbackDays); err != nil {
		return crosswalk.Resolution{}, err
	}
	conversions := map[string]float64{}
	if m.ValueMode == model.DerivedConversionValue {
		n, err := s.conversionsFor(ctx, c.ID, m.ConversionSourceID)
		if err != nil {
			return crosswalk.Resolution{}, err
		}
		conversions[m.ConversionSourceID] = n
	}
	return s.resolve(ctx, c, m, conversions)
}

// conversionsFor returns the platform's conversions, or 0 when it is disconnected.
func (s *Service) conversionsFor(ctx context.Context, campaignID, sourceID string) (float64, error) {
	statuses, err := s.provider.Sources(ctx, campaignID)
	if err != nil {
		return 0, s.observe(err, zap.String("campaign_id", campaignID))
	}
	connected := true
	for _, st := range statuses {
		if st.SourceID == sourceID {
			connected = st.Connected
		}
	}
	if !connected {
		return 0, nil
	}
	set, err := s.provider.FetchCanonicalMetrics(ctx, sourceID, campaignID)
	if err != nil {
		return 0, s.observe(err, zap.String("campaign_id", campaignID))
	}
	return set.Get(model.MetricConversions), nil
}

// RevenueMappings lists the campaign's saved revenue mappings.
func (s *Service) RevenueMappings(ctx context.Context, campaignID string) ([]model.RevenueMapping, error) {
	if _, err := s.campaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.config.RevenueMappings(ctx, campaignID)
}

// SaveSpendMapping validates and stores m. Its currency must be the campaign's; amounts
// are never converted.
func (s *Service) SaveSpendMapping(ctx context.Context, campaignID string, m model.SpendMapping) (model.SpendMapping, error) {
	c, err := s.campaign(ctx, campaignID)
	if err != nil {
		return model.SpendMapping{}, err
	}
	m.CampaignID = campaignID
	m.SpendField = strings.TrimSpace(m.SpendField)
	m.ScopeField = strings.TrimSpace(m.ScopeField)
	m.ScopeValues = crosswalk.CleanValues(m.ScopeValues)
	m.Currency = model.CurrencyCode(m.Currency)
	if err := crosswalk.ValidateSpendMapping(m); err != nil {
		return model.SpendMapping{}, err
	}
	if cur := model.CurrencyCode(c.Currency); cur != "" && m.Currency != cur {
		return model.SpendMapping{}, apperr.Validation("currency_mismatch",
			"spend is reported in %s but campaign %s reports in %s", m.Currency, campaignID, c.Currency)
	}
	m.UpdatedAt = s.now().UTC()
	if err := s.config.SaveSpendMapping(ctx, m); err != nil {
		return model.SpendMapping{}, err
	}
	return m, nil
}

// SpendMappings lists the campaign's saved spend mappings.
func (s *Service) SpendMappings(ctx context.Context, campaignID string) ([]model.SpendMapping, error) {
	if _, err := s.campaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.config.SpendMappings(ctx, campaignID)
}
