package crosswalk

import (
	"sort"
	"strings"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
)

// Draft is an in-progress revenue mapping edited before it is saved.
type Draft struct {
	SourceType         model.SourceType     `json:"source_type"`
	AttributionKey     string               `json:"attribution_key"`
	AcceptedValues     []string             `json:"accepted_values"`
	RevenueField       string               `json:"revenue_field"`
	PresentmentField   string               `json:"presentment_field,omitempty"`
	LookbackDays       int                  `json:"lookback_days"`
	Classification     model.Classification `json:"classification"`
	ValueMode          model.ValueMode      `json:"value_mode"`
	ConversionSourceID string               `json:"conversion_source_id,omitempty"`
}

// SetAttributionKey switches the key. Values chosen for a previous key belong to that
// key's value domain and are cleared.
func (d *Draft) SetAttributionKey(key string) {
	key = strings.TrimSpace(key)
	if key != d.AttributionKey {
		d.AcceptedValues = nil
	}
	d.AttributionKey = key
}

// SetAcceptedValues replaces the accepted values after cleaning them.
func (d *Draft) SetAcceptedValues(values []string) {
	d.AcceptedValues = CleanValues(values)
}

// Mapping converts the draft into a mapping for campaignID.
func (d Draft) Mapping(campaignID string) model.RevenueMapping {
	return model.RevenueMapping{
		CampaignID:         campaignID,
		SourceType:         d.SourceType,
		AttributionKey:     strings.TrimSpace(d.AttributionKey),
		AcceptedValues:     CleanValues(d.AcceptedValues),
		RevenueField:       strings.TrimSpace(d.RevenueField),
		PresentmentField:   strings.TrimSpace(d.PresentmentField),
		LookbackDays:       d.LookbackDays,
		Classification:     d.Classification,
		ValueMode:          d.ValueMode,
		ConversionSourceID: strings.TrimSpace(d.ConversionSourceID),
	}
}

// DraftFrom opens a saved mapping for editing.
func DraftFrom(m model.RevenueMapping) Draft {
	return Draft{
		SourceType:         m.SourceType,
		AttributionKey:     m.AttributionKey,
		AcceptedValues:     append([]string(nil), m.AcceptedValues...),
		RevenueField:       m.RevenueField,
		PresentmentField:   m.PresentmentField,
		LookbackDays:       m.LookbackDays,
		Classification:     m.Classification,
		ValueMode:          m.ValueMode,
		ConversionSourceID: m.ConversionSourceID,
	}
}

// CheckRekey rejects next when it moves stored to a different attribution key but still
// carries stored's accepted values unchanged. Those values belong to the old key's value
// domain.
func CheckRekey(stored, next model.RevenueMapping) error {
	edit := DraftFrom(stored)
	edit.SetAttributionKey(next.AttributionKey)
	if len(edit.AcceptedValues) > 0 || len(CleanValues(stored.AcceptedValues)) == 0 {
		return nil
	}
	if !sameValues(stored.AcceptedValues, next.AcceptedValues) {
		return nil
	}
	return apperr.Validation("accepted_values_stale",
		"accepted values were chosen for %q; choose values for %q or clear them",
		strings.TrimSpace(stored.AttributionKey), edit.AttributionKey)
}

func sameValues(a, b []string) bool {
	a, b = CleanValues(a), CleanValues(b)
	if len(a) != len(b) {
		return false
	}
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
