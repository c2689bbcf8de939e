package provider

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"marketpulse/internal/apperr"
	"marketpulse/internal/crosswalk"
	"marketpulse/internal/model"
	"marketpulse/internal/normalize"
)

// FixtureFile is the YAML layout read by LoadFixture.
type FixtureFile struct {
	Campaigns []FixtureCampaign `yaml:"campaigns"`
}

// FixtureCampaign is one campaign with the raw data its sources would return.
type FixtureCampaign struct {
	model.Campaign `yaml:",inline"`
	Sources        []FixtureSource                     `yaml:"sources"`
	Revenue        map[model.SourceType]FixtureRevenue `yaml:"revenue"`
	Spend          map[model.SourceType]FixtureSpend   `yaml:"spend"`
}

// FixtureSource holds raw platform records. Error, when set, is returned as a source
// failure with that code.
type FixtureSource struct {
	SourceID    string           `yaml:"source_id"`
	DisplayName string           `yaml:"display_name"`
	Connected   *bool            `yaml:"connected"`
	Records     []map[string]any `yaml:"records"`
	Error       string           `yaml:"error"`
}

type FixtureRevenue struct {
	Rows  []model.RevenueRow `yaml:"rows"`
	Error string             `yaml:"error"`
}

type FixtureSpend struct {
	Rows  []map[string]any `yaml:"rows"`
	Error string           `yaml:"error"`
}

// Fixture serves canned data through the same normalization path live data takes.
type Fixture struct {
	registry  *normalize.Registry
	now       func() time.Time
	mu        sync.RWMutex
	campaigns map[string]FixtureCampaign
}

// NewFixture builds a provider over f. now defaults to time.Now.
func NewFixture(f FixtureFile, registry *normalize.Registry, now func() time.Time) *Fixture {
	if now == nil {
		now = time.Now
	}
	fx := &Fixture{registry: registry, now: now, campaigns: make(map[string]FixtureCampaign, len(f.Campaigns))}
	for _, c := range f.Campaigns {
		fx.campaigns[c.ID] = c
	}
	return fx
}

// LoadFixture reads a fixture YAML file.
func LoadFixture(path string) (FixtureFile, error) {
	var f FixtureFile
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read fixtures: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse fixtures: %w", err)
	}
	for i, c := range f.Campaigns {
		if c.ID == "" {
			return f, fmt.Errorf("fixture campaign %d has no id", i)
		}
	}
	return f, nil
}

// Campaigns lists the fixture campaigns, used to seed a config store.
func (f *Fixture) Campaigns() []model.Campaign {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]model.Campaign, 0, len(f.campaigns))
	for _, c := range f.campaigns {
		out = append(out, c.Campaign)
	}
	return out
}

// campaign returns the canned data for id. A campaign without fixture data has no
// sources yet, like a freshly registered one.
func (f *Fixture) campaign(id string) FixtureCampaign {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.campaigns[id]
}

func (f *Fixture) Sources(ctx context.Context, campaignID string) ([]model.SourceStatus, error) {
	c := f.campaign(campaignID)
	out := make([]model.SourceStatus, 0, len(c.Sources))
	for _, s := range c.Sources {
		connected := s.Connected == nil || *s.Connected
		name := s.DisplayName
		if name == "" {
			if t, ok := f.registry.Table(s.SourceID); ok {
				name = t.DisplayName
			}
		}
		out = append(out, model.SourceStatus{SourceID: s.SourceID, DisplayName: name, Connected: connected})
	}
	return out, nil
}

func (f *Fixture) FetchCanonicalMetrics(ctx context.Context, sourceID, campaignID string) (model.CanonicalMetricSet, error) {
	c := f.campaign(campaignID)
	for _, s := range c.Sources {
		if s.SourceID != sourceID {
			continue
		}
		if s.Error != "" {
			return model.CanonicalMetricSet{}, apperr.SourceFailure(sourceID, s.Error, nil)
		}
		out := model.CanonicalMetricSet{CampaignID: campaignID, SourceID: sourceID, Values: model.MetricValues{}, CollectedAt: f.now().UTC()}
		for _, k := range model.BaseMetrics {
			out.Values[k] = 0
		}
		for _, rec := range s.Records {
			set, err := f.registry.Normalize(sourceID, campaignID, rec)
			if err != nil {
				return model.CanonicalMetricSet{}, err
			}
			for k, v := range set.Values {
				out.Values[k] += v
			}
		}
		return out, nil
	}
	return model.CanonicalMetricSet{}, apperr.NotFound("source_not_found", "source %q is not configured for campaign %q", sourceID, campaignID)
}

func (f *Fixture) FetchRevenueRows(ctx context.Context, sourceType model.SourceType, campaignID string, lookbackDays int) ([]model.RevenueRow, error) {
	c := f.campaign(campaignID)
	rev, ok := c.Revenue[sourceType]
	if !ok {
		return []model.RevenueRow{}, nil
	}
	if rev.Error != "" {
		return nil, apperr.SourceFailure(string(sourceType), rev.Error, nil)
	}
	cutoff := f.now().UTC().AddDate(0, 0, -lookbackDays)
	out := make([]model.RevenueRow, 0, len(rev.Rows))
	for _, r := range rev.Rows {
		if !r.OccurredAt.IsZero() && r.OccurredAt.Before(cutoff) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *Fixture) FetchSpendAmount(ctx context.Context, m model.SpendMapping) (model.Money, error) {
	c := f.campaign(m.CampaignID)
	sp, ok := c.Spend[m.SourceType]
	if !ok {
		return model.Zero(m.Currency), nil
	}
	if sp.Error != "" {
		return model.Money{}, apperr.SourceFailure(string(m.SourceType), sp.Error, nil)
	}
	rows := make([]crosswalk.SpendRow, len(sp.Rows))
	for i, r := range sp.Rows {
		rows[i] = r
	}
	total, _, err := crosswalk.ResolveSpend(rows, m)
	return total, err
}
