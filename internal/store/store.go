// Package store persists the campaign configuration the engine reads: campaigns, revenue
// and spend mappings, KPIs and benchmarks.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
)

// ConfigStore holds per-campaign configuration. Revenue and spend mappings are unique per
// (campaign, source type); saving one replaces the previous mapping for that source type.
type ConfigStore interface {
	Campaign(ctx context.Context, id string) (model.Campaign, error)
	Campaigns(ctx context.Context) ([]model.Campaign, error)
	PutCampaign(ctx context.Context, c model.Campaign) error
	// DeleteCampaign removes the campaign with its mappings and goals.
	DeleteCampaign(ctx context.Context, id string) error

	RevenueMappings(ctx context.Context, campaignID string) ([]model.RevenueMapping, error)
	SaveRevenueMapping(ctx context.Context, m model.RevenueMapping) error
	SpendMappings(ctx context.Context, campaignID string) ([]model.SpendMapping, error)
	SaveSpendMapping(ctx context.Context, m model.SpendMapping) error

	KPIs(ctx context.Context, campaignID string) ([]model.KPI, error)
	Benchmarks(ctx context.Context, campaignID string) ([]model.Benchmark, error)
	// SaveGoals replaces both goal lists at once; readers never see one list updated
	// without the other.
	SaveGoals(ctx context.Context, campaignID string, kpis []model.KPI, benchmarks []model.Benchmark) error
}

func campaignNotFound(id string) error {
	return apperr.NotFound("campaign_not_found", "campaign %q not found", id)
}

type mappingKey struct {
	campaignID string
	sourceType model.SourceType
}

// Memory is a ConfigStore for tests and fixture mode.
type Memory struct {
	mu         sync.RWMutex
	now        func() time.Time
	campaigns  map[string]model.Campaign
	revenue    map[mappingKey]model.RevenueMapping
	spend      map[mappingKey]model.SpendMapping
	kpis       map[string][]model.KPI
	benchmarks map[string][]model.Benchmark
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:        time.Now,
		campaigns:  make(map[string]model.Campaign),
		revenue:    make(map[mappingKey]model.RevenueMapping),
		spend:      make(map[mappingKey]model.SpendMapping),
		kpis:       make(map[string][]model.KPI),
		benchmarks: make(map[string][]model.Benchmark),
	}
}

func (m *Memory) Campaign(ctx context.Context, id string) (model.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return model.Campaign{}, campaignNotFound(id)
	}
	return c, nil
}

func (m *Memory) Campaigns(ctx context.Context) ([]model.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PutCampaign(ctx context.Context, c model.Campaign) error {
	if c.ID == "" {
		return apperr.Validation("campaign_id_missing", "campaign has no id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = c
	return nil
}

func (m *Memory) DeleteCampaign(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return campaignNotFound(id)
	}
	delete(m.campaigns, id)
	for k := range m.revenue {
		if k.campaignID == id {
			delete(m.revenue, k)
		}
	}
	for k := range m.spend {
		if k.campaignID == id {
			delete(m.spend, k)
		}
	}
	delete(m.kpis, id)
	delete(m.benchmarks, id)
	return nil
}

func (m *Memory) RevenueMappings(ctx context.Context, campaignID string) ([]model.RevenueMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.RevenueMapping
	for k, v := range m.revenue {
		if k.campaignID == campaignID {
			v.AcceptedValues = append([]string(nil), v.AcceptedValues...)
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceType < out[j].SourceType })
	return out, nil
}

func (m *Memory) SaveRevenueMapping(ctx context.Context, rm model.RevenueMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm.AcceptedValues = append([]string(nil), rm.AcceptedValues...)
	if rm.UpdatedAt.IsZero() {
		rm.UpdatedAt = m.now().UTC()
	}
	m.revenue[mappingKey{rm.CampaignID, rm.SourceType}] = rm
	return nil
}

func (m *Memory) SpendMappings(ctx context.Context, campaignID string) ([]model.SpendMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.SpendMapping
	for k, v := range m.spend {
		if k.campaignID == campaignID {
			v.ScopeValues = append([]string(nil), v.ScopeValues...)
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceType < out[j].SourceType })
	return out, nil
}

func (m *Memory) SaveSpendMapping(ctx context.Context, sm model.SpendMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sm.ScopeValues = append([]string(nil), sm.ScopeValues...)
	if sm.UpdatedAt.IsZero() {
		sm.UpdatedAt = m.now().UTC()
	}
	m.spend[mappingKey{sm.CampaignID, sm.SourceType}] = sm
	return nil
}

func (m *Memory) KPIs(ctx context.Context, campaignID string) ([]model.KPI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.KPI(nil), m.kpis[campaignID]...), nil
}

func (m *Memory) Benchmarks(ctx context.Context, campaignID string) ([]model.Benchmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Benchmark(nil), m.benchmarks[campaignID]...), nil
}

func (m *Memory) SaveGoals(ctx context.Context, campaignID string, kpis []model.KPI, benchmarks []model.Benchmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kpis[campaignID] = append([]model.KPI(nil), kpis...)
	m.benchmarks[campaignID] = append([]model.Benchmark(nil), benchmarks...)
	return nil
}
