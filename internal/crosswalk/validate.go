package crosswalk

import (
	"strings"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
)

// DefaultMaxLookbackDays bounds revenue scans when no limit is configured.
const DefaultMaxLookbackDays = 365

// ValidateRevenueMapping rejects incomplete or ambiguous mappings before anything is
// resolved or written.
func ValidateRevenueMapping(m model.RevenueMapping, maxLookbackDays int) error {
	if maxLookbackDays <= 0 {
		maxLookbackDays = DefaultMaxLookbackDays
	}
	if !m.SourceType.Valid() {
		return apperr.Validation("source_type_invalid", "unknown source type %q", m.SourceType)
	}
	if strings.TrimSpace(m.RevenueField) == "" {
		return apperr.Validation("revenue_field_missing", "a revenue field must be selected")
	}
	if m.LookbackDays < 1 || m.LookbackDays > maxLookbackDays {
		return apperr.Validation("lookback_out_of_range", "lookback must be between 1 and %d days, got %d", maxLookbackDays, m.LookbackDays)
	}
	switch m.Classification {
	case model.OnsiteAlreadyTracked, model.OffsiteNotTracked:
	default:
		return apperr.Validation("classification_invalid", "classification must be %s or %s", model.OnsiteAlreadyTracked, model.OffsiteNotTracked)
	}
	switch m.ValueMode {
	case model.RevenueToDate:
	case model.DerivedConversionValue:
		if strings.TrimSpace(m.ConversionSourceID) == "" {
			return apperr.Validation("conversion_source_missing", "derived conversion value needs the platform whose conversions divide revenue")
		}
	default:
		return apperr.Validation("value_mode_invalid", "value mode must be %s or %s", model.RevenueToDate, model.DerivedConversionValue)
	}
	if len(CleanValues(m.AcceptedValues)) > 0 && strings.TrimSpace(m.AttributionKey) == "" {
		return apperr.Validation("attribution_key_missing", "accepted values were chosen without an attribution key")
	}
	return nil
}

// ValidateSpendMapping enforces that a campaign-scoping column and its accepted values
// are configured together.
func ValidateSpendMapping(m model.SpendMapping) error {
	if !m.SourceType.Valid() {
		return apperr.Validation("source_type_invalid", "unknown source type %q", m.SourceType)
	}
	if strings.TrimSpace(m.SpendField) == "" {
		return apperr.Validation("spend_field_missing", "a spend field must be selected")
	}
	if len(strings.TrimSpace(m.Currency)) != 3 {
		return apperr.Validation("currency_invalid", "spend currency must be an ISO 4217 code, got %q", m.Currency)
	}
	hasField := strings.TrimSpace(m.ScopeField) != ""
	hasValues := len(CleanValues(m.ScopeValues)) > 0
	switch {
	case hasField && !hasValues:
		return apperr.Validation("scope_values_missing", "campaign column %q selected without any values", m.ScopeField)
	case !hasField && hasValues:
		return apperr.Validation("scope_field_missing", "campaign values selected without a campaign column")
	}
	return nil
}
