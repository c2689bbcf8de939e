package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
)

// Campaigns lists every registered campaign ordered by id.
func (s *Service) Campaigns(ctx context.Context) ([]model.Campaign, error) {
	return s.config.Campaigns(ctx)
}

// Campaign returns one registered campaign.
func (s *Service) Campaign(ctx context.Context, campaignID string) (model.Campaign, error) {
	return s.campaign(ctx, campaignID)
}

// ActiveCampaigns lists configured campaigns in the active state.
func (s *Service) ActiveCampaigns(ctx context.Context) ([]model.Campaign, error) {
	all, err := s.config.Campaigns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Campaign, 0, len(all))
	for _, c := range all {
		if c.Status == model.CampaignActive {
			out = append(out, c)
		}
	}
	return out, nil
}

// RegisterCampaign creates or replaces a campaign pushed by its owner. Mappings and goals
// already stored for the id are kept.
func (s *Service) RegisterCampaign(ctx context.Context, c model.Campaign) (model.Campaign, error) {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	c.Currency = model.CurrencyCode(c.Currency)
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	switch {
	case c.ID == "":
		return model.Campaign{}, apperr.Validation("campaign_id_missing", "campaign has no id")
	case c.Name == "":
		return model.Campaign{}, apperr.Validation("campaign_name_missing", "campaign %s has no name", c.ID)
	case !c.Status.Valid():
		return model.Campaign{}, apperr.Validation("campaign_status_invalid", "unknown campaign status %q", c.Status)
	case len(c.Currency) != 3:
		return model.Campaign{}, apperr.Validation("currency_invalid", "campaign %s needs a 3-letter currency code, got %q", c.ID, c.Currency)
	case !c.EndDate.IsZero() && c.EndDate.Before(c.StartDate):
		return model.Campaign{}, apperr.Validation("date_range_invalid", "campaign %s ends before it starts", c.ID)
	}
	if err := s.config.PutCampaign(ctx, c); err != nil {
		return model.Campaign{}, err
	}
	s.log.Info("campaign registered",
		zap.String("campaign_id", c.ID),
		zap.String("status", string(c.Status)),
		zap.String("currency", c.Currency))
	return c, nil
}

// RemoveCampaign deletes a campaign together with its mappings and goals. Recorded
// snapshots stay in the snapshot store.
func (s *Service) RemoveCampaign(ctx context.Context, campaignID string) error {
	if err := s.config.DeleteCampaign(ctx, campaignID); err != nil {
		return err
	}
	s.log.Info("campaign removed", zap.String("campaign_id", campaignID))
	return nil
}

// Sources reports the connection state of every source known for the campaign.
func (s *Service) Sources(ctx context.Context, campaignID string) ([]model.SourceStatus, error) {
	if _, err := s.campaign(ctx, campaignID); err != nil {
		return nil, err
	}
	statuses, err := s.provider.Sources(ctx, campaignID)
	if err != nil {
		return nil, s.observe(err, zap.String("campaign_id", campaignID))
	}
	for i, st := range statuses {
		if st.DisplayName != "" {
			continue
		}
		if t, ok := s.registry.Table(st.SourceID); ok {
			statuses[i].DisplayName = t.DisplayName
		} else {
			statuses[i].DisplayName = st.SourceID
		}
	}
	return statuses, nil
}
