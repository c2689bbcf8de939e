// Package normalize maps each source's raw metric payload onto canonical metric sets and
// sums them into per-campaign totals.
package normalize

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
)

// SourceKind groups sources by how their metrics feed the pass-through aggregates.
type SourceKind string

const (
	KindAdPlatform SourceKind = "ad_platform"
	KindAnalytics  SourceKind = "analytics"
	KindCustom     SourceKind = "custom"
)

// FieldTable maps one source's raw field names (dotted paths for nested payloads) to
// canonical metric keys.
type FieldTable struct {
	SourceID    string                     `yaml:"source_id"`
	DisplayName string                     `yaml:"display_name"`
	Kind        SourceKind                 `yaml:"kind"`
	Fields      map[string]model.MetricKey `yaml:"fields"`
}

// Validate checks the table before it can be registered.
func (t FieldTable) Validate() error {
	if strings.TrimSpace(t.SourceID) == "" {
		return apperr.Validation("source_id_missing", "field table without source_id")
	}
	switch t.Kind {
	case KindAdPlatform, KindAnalytics, KindCustom:
	default:
		return apperr.Validation("source_kind_invalid", "source %s: unknown kind %q", t.SourceID, t.Kind)
	}
	if len(t.Fields) == 0 {
		return apperr.Validation("field_table_empty", "source %s: no fields mapped", t.SourceID)
	}
	seen := make(map[string]struct{}, len(t.Fields))
	for raw, target := range t.Fields {
		path := strings.TrimSpace(raw)
		if path == "" {
			return apperr.Validation("field_path_empty", "source %s: empty raw field", t.SourceID)
		}
		if _, dup := seen[path]; dup {
			return apperr.Validation("field_path_duplicate", "source %s: raw field %q mapped twice", t.SourceID, path)
		}
		seen[path] = struct{}{}
		if !model.IsSourceMetric(target) {
			return apperr.Validation("metric_unknown", "source %s: %q maps to unknown metric %q", t.SourceID, raw, target)
		}
	}
	return nil
}

// Registry holds the validated field tables, keyed by source id.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]FieldTable
}

// NewRegistry returns a registry preloaded with the built-in tables.
func NewRegistry() *Registry {
	r := &Registry{tables: make(map[string]FieldTable)}
	for _, t := range BuiltinTables() {
		if err := r.Register(t); err != nil {
			panic(fmt.Sprintf("builtin field table %s: %v", t.SourceID, err))
		}
	}
	return r
}

// Register validates t and adds or replaces it.
func (r *Registry) Register(t FieldTable) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.DisplayName == "" {
		t.DisplayName = t.SourceID
	}
	fields := make(map[string]model.MetricKey, len(t.Fields))
	for raw, target := range t.Fields {
		fields[strings.TrimSpace(raw)] = target
	}
	t.Fields = fields
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[t.SourceID] = t
	return nil
}

// Table returns the table for sourceID.
func (r *Registry) Table(sourceID string) (FieldTable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[sourceID]
	return t, ok
}

// Kind returns the kind of sourceID, defaulting to custom for unknown sources.
func (r *Registry) Kind(sourceID string) SourceKind {
	if t, ok := r.Table(sourceID); ok {
		return t.Kind
	}
	return KindCustom
}

// Sources lists registered source ids in lexical order.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tables))
	for id := range r.tables {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Normalize applies sourceID's field table to raw. Every base metric is present in the
// result; unparseable values become 0. Only an unregistered source is an error.
func (r *Registry) Normalize(sourceID, campaignID string, raw map[string]any) (model.CanonicalMetricSet, error) {
	t, ok := r.Table(sourceID)
	if !ok {
		return model.CanonicalMetricSet{}, apperr.Validation("source_unknown", "no field table for source %q", sourceID)
	}
	values := make(model.MetricValues, len(model.BaseMetrics)+len(t.Fields))
	for _, k := range model.BaseMetrics {
		values[k] = 0
	}
	for path, target := range t.Fields {
		v, found := lookup(raw, path)
		if !found {
			continue
		}
		// Several raw fields may feed the same canonical metric (e.g. a platform that
		// splits engagements into likes/comments/shares).
		values[target] += SafeNumber(v)
	}
	return model.CanonicalMetricSet{
		CampaignID:  campaignID,
		SourceID:    sourceID,
		Values:      values,
		CollectedAt: time.Now().UTC(),
	}, nil
}

func lookup(raw map[string]any, path string) (any, bool) {
	if v, ok := raw[path]; ok {
		return v, true
	}
	parts := strings.Split(path, ".")
	if len(parts) == 1 {
		return nil, false
	}
	var cur any = raw
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
