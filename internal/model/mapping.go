package model

import "time"

// SourceType identifies the kind of external revenue or spend system.
type SourceType string

const (
	SourceOrderSystem SourceType = "order_system"
	SourceCRMSystem   SourceType = "crm_system"
	SourceManual      SourceType = "manual"
	SourceFile        SourceType = "file"
	SourceSpreadsheet SourceType = "spreadsheet"
)

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	switch t {
	case SourceOrderSystem, SourceCRMSystem, SourceManual, SourceFile, SourceSpreadsheet:
		return true
	}
	return false
}

// Classification controls whether attributed revenue joins the combined total.
type Classification string

const (
	// OnsiteAlreadyTracked revenue is already counted by an analytics platform and is
	// reported for audit only.
	OnsiteAlreadyTracked Classification = "onsite_already_tracked"
	// OffsiteNotTracked revenue is added to the combined total.
	OffsiteNotTracked Classification = "offsite_not_tracked"
)

// ValueMode selects how summed revenue feeds ROI/ROAS.
type ValueMode string

const (
	RevenueToDate          ValueMode = "revenue_to_date"
	DerivedConversionValue ValueMode = "derived_conversion_value"
)

// RevenueMapping is the crosswalk from a campaign to rows of one revenue source.
type RevenueMapping struct {
	CampaignID         string         `json:"campaign_id" yaml:"campaign_id"`
	SourceType         SourceType     `json:"source_type" yaml:"source_type"`
	AttributionKey     string         `json:"attribution_key" yaml:"attribution_key"`
	AcceptedValues     []string       `json:"accepted_values" yaml:"accepted_values"`
	RevenueField       string         `json:"revenue_field" yaml:"revenue_field"`
	PresentmentField   string         `json:"presentment_field,omitempty" yaml:"presentment_field"`
	LookbackDays       int            `json:"lookback_days" yaml:"lookback_days"`
	Classification     Classification `json:"classification" yaml:"classification"`
	ValueMode          ValueMode      `json:"value_mode" yaml:"value_mode"`
	ConversionSourceID string         `json:"conversion_source_id,omitempty" yaml:"conversion_source_id"`
	UpdatedAt          time.Time      `json:"updated_at" yaml:"updated_at"`
}

// SpendMapping describes how a non-ad-platform source reports spend. Spend is always a
// lifetime "to date" total; re-importing replaces it.
type SpendMapping struct {
	CampaignID  string     `json:"campaign_id" yaml:"campaign_id"`
	SourceType  SourceType `json:"source_type" yaml:"source_type"`
	SpendField  string     `json:"spend_field" yaml:"spend_field"`
	ScopeField  string     `json:"scope_field,omitempty" yaml:"scope_field"`
	ScopeValues []string   `json:"scope_values,omitempty" yaml:"scope_values"`
	Currency    string     `json:"currency" yaml:"currency"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
}

// RevenueRow is one external order or opportunity.
type RevenueRow struct {
	ID                  string         `json:"id" yaml:"id"`
	OccurredAt          time.Time      `json:"occurred_at" yaml:"occurred_at"`
	Currency            string         `json:"currency" yaml:"currency"`
	PresentmentCurrency string         `json:"presentment_currency,omitempty" yaml:"presentment_currency"`
	Attributes          map[string]any `json:"attributes" yaml:"attributes"`
}
