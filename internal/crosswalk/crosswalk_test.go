package crosswalk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
)

var asOf = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func order(id, code string, total any, age time.Duration) model.RevenueRow {
	return model.RevenueRow{
		ID:         id,
		OccurredAt: asOf.Add(-age),
		Currency:   "USD",
		Attributes: map[string]any{"discount_code": code, "total_price": total, "utm_campaign": "summer"},
	}
}

func shopifyMapping(values ...string) model.RevenueMapping {
	return model.RevenueMapping{
		CampaignID:     "c-1",
		SourceType:     model.SourceOrderSystem,
		AttributionKey: "discount_code",
		AcceptedValues: values,
		RevenueField:   "total_price",
		LookbackDays:   30,
		Classification: model.OffsiteNotTracked,
		ValueMode:      model.RevenueToDate,
	}
}

func sampleRows() []model.RevenueRow {
	return []model.RevenueRow{
		order("1", "SUMMER10", 1000.0, time.Hour),
		order("2", " SUMMER10 ", "1500", 48*time.Hour),
		order("3", "summer10", 999.0, time.Hour),
		order("4", "SUMMER10X", 999.0, time.Hour),
		order("5", "FALL", 200.0, time.Hour),
		order("6", "SUMMER10", 500.0, 24*time.Hour),
		order("7", "SUMMER10", 10000.0, 40*24*time.Hour),
		order("8", "SUMMER10", "garbage", time.Hour),
		{ID: "9", OccurredAt: asOf.Add(-time.Hour), Currency: "USD", Attributes: map[string]any{"total_price": 77.0}},
	}
}

func TestDiscoverTopValues(t *testing.T) {
	got := Discover(sampleRows(), "discount_code", "", 2)
	require.Equal(t, []ValueCount{{Value: "SUMMER10", Rows: 5}, {Value: "FALL", Rows: 1}}, got)

	filtered := Discover(sampleRows(), "discount_code", "summer", 10)
	require.Len(t, filtered, 3)
	require.Equal(t, "SUMMER10", filtered[0].Value)
	require.Equal(t, "SUMMER10X", filtered[1].Value)
	require.Equal(t, "summer10", filtered[2].Value)

	require.Empty(t, Discover(sampleRows(), "nope", "", 0))
}

func TestResolveExactTrimmedMatch(t *testing.T) {
	res, err := Resolve(sampleRows(), shopifyMapping("SUMMER10"), Options{AsOf: asOf})
	require.NoError(t, err)
	// rows 1, 2, 6, 8 match; 3 differs by case, 4 is a superstring, 7 is outside the window.
	require.Equal(t, 4, res.MatchedRows)
	require.Equal(t, "3000", res.SummedRevenue.Amount.String())
	require.Equal(t, "USD", res.SummedRevenue.Currency)
	require.Equal(t, []string{"SUMMER10"}, res.SampleValues)
	require.True(t, res.IncludedInTotal)
	require.Equal(t, res.SummedRevenue, res.AttributedRevenue)
	require.Nil(t, res.ConversionValue)
}

func TestResolveEmptyAcceptedSetTakesWholeSource(t *testing.T) {
	res, err := Resolve(sampleRows(), shopifyMapping(), Options{AsOf: asOf})
	require.NoError(t, err)
	require.Equal(t, 8, res.MatchedRows, "everything inside the window")
	require.Equal(t, "5275", res.SummedRevenue.Amount.String())
}

func TestPreviewAndSaveAgree(t *testing.T) {
	d := Draft{SourceType: model.SourceOrderSystem, RevenueField: "total_price", LookbackDays: 30,
		Classification: model.OffsiteNotTracked, ValueMode: model.RevenueToDate}
	d.SetAttributionKey("discount_code")
	d.SetAcceptedValues([]string{"SUMMER10", " SUMMER10", "FALL"})

	opts := Options{AsOf: asOf}
	preview, err := Resolve(sampleRows(), d.Mapping("c-1"), opts)
	require.NoError(t, err)
	saved, err := Resolve(sampleRows(), DraftFrom(d.Mapping("c-1")).Mapping("c-1"), opts)
	require.NoError(t, err)
	require.Equal(t, preview, saved)
}

func TestDraftKeyChangeClearsValues(t *testing.T) {
	d := Draft{}
	d.SetAttributionKey("discount_code")
	d.SetAcceptedValues([]string{"SUMMER10"})
	d.SetAttributionKey("discount_code ")
	require.Equal(t, []string{"SUMMER10"}, d.AcceptedValues, "same key keeps values")
	d.SetAttributionKey("utm_campaign")
	require.Empty(t, d.AcceptedValues)
}

func TestCheckRekeyRejectsCarriedValues(t *testing.T) {
	stored := shopifyMapping("SUMMER10", "FALL")

	moved := stored
	moved.AttributionKey = "utm_campaign"
	err := CheckRekey(stored, moved)
	e, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "accepted_values_stale", e.Code)

	reordered := moved
	reordered.AcceptedValues = []string{" FALL", "SUMMER10"}
	require.Error(t, CheckRekey(stored, reordered))

	cleared := moved
	cleared.AcceptedValues = nil
	require.NoError(t, CheckRekey(stored, cleared))

	chosen := moved
	chosen.AcceptedValues = []string{"summer"}
	require.NoError(t, CheckRekey(stored, chosen))

	sameKey := stored
	sameKey.LookbackDays = 60
	require.NoError(t, CheckRekey(stored, sameKey))

	require.NoError(t, CheckRekey(shopifyMapping(), moved), "nothing stored to carry over")
}

func TestClassificationExcludesOnsite(t *testing.T) {
	offsite, err := Resolve(sampleRows(), shopifyMapping("SUMMER10"), Options{AsOf: asOf})
	require.NoError(t, err)

	onsiteMapping := shopifyMapping("SUMMER10")
	onsiteMapping.Classification = model.OnsiteAlreadyTracked
	onsite, err := Resolve(sampleRows(), onsiteMapping, Options{AsOf: asOf})
	require.NoError(t, err)
	require.False(t, onsite.IncludedInTotal)
	require.Equal(t, "3000", onsite.SummedRevenue.Amount.String(), "still reported for audit")

	total, err := Combine("USD", []Resolution{onsite})
	require.NoError(t, err)
	require.True(t, total.IsZero())

	total, err = Combine("USD", []Resolution{onsite, offsite})
	require.NoError(t, err)
	require.Equal(t, "3000", total.Amount.String())
}

func TestDerivedConversionValue(t *testing.T) {
	m := shopifyMapping("SUMMER10")
	m.ValueMode = model.DerivedConversionValue
	m.ConversionSourceID = "linkedin_ads"

	res, err := Resolve(sampleRows(), m, Options{AsOf: asOf, PlatformConversions: 20})
	require.NoError(t, err)
	require.NotNil(t, res.ConversionValue)
	require.InDelta(t, 150.0, *res.ConversionValue, 1e-9)
	require.Equal(t, "3000", res.AttributedRevenue.Amount.String())

	none, err := Resolve(sampleRows(), m, Options{AsOf: asOf})
	require.NoError(t, err)
	require.Nil(t, none.ConversionValue, "no conversions means no per-conversion value")
	require.True(t, none.AttributedRevenue.IsZero())
}

func TestResolveCurrencies(t *testing.T) {
	rows := []model.RevenueRow{
		{OccurredAt: asOf, Currency: "USD", PresentmentCurrency: "CAD", Attributes: map[string]any{"total_price": 10.0, "presentment_total": 13.5}},
		{OccurredAt: asOf, Currency: "USD", PresentmentCurrency: "CAD", Attributes: map[string]any{"total_price": 20.0, "presentment_total": 27.0}},
	}
	m := shopifyMapping()
	m.PresentmentField = "presentment_total"
	res, err := Resolve(rows, m, Options{AsOf: asOf})
	require.NoError(t, err)
	require.Equal(t, "30", res.SummedRevenue.Amount.String())
	require.Len(t, res.PresentmentTotals, 1)
	require.Equal(t, "CAD", res.PresentmentTotals[0].Currency)
	require.Equal(t, "40.5", res.PresentmentTotals[0].Amount.String())

	rows = append(rows, model.RevenueRow{OccurredAt: asOf, Currency: "EUR", Attributes: map[string]any{"total_price": 1.0}})
	_, err = Resolve(rows, m, Options{AsOf: asOf})
	e, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "currency_mismatch", e.Code)

	undated := []model.RevenueRow{{Attributes: map[string]any{"total_price": 5.0}}}
	res, err = Resolve(undated, shopifyMapping(), Options{AsOf: asOf, Currency: "GBP"})
	require.NoError(t, err)
	require.Equal(t, "GBP", res.SummedRevenue.Currency)

	_, err = Combine("USD", []Resolution{res})
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestResolveKeepsPresentmentPerCurrency(t *testing.T) {
	rows := []model.RevenueRow{
		{OccurredAt: asOf, Currency: "USD", PresentmentCurrency: "EUR", Attributes: map[string]any{"total_price": 50.0, "presentment_total": 46.0}},
		{OccurredAt: asOf, Currency: "usd", PresentmentCurrency: "GBP", Attributes: map[string]any{"total_price": 60.0, "presentment_total": 48.0}},
		{OccurredAt: asOf, Currency: "USD", PresentmentCurrency: "eur", Attributes: map[string]any{"total_price": 40.0, "presentment_total": 37.0}},
	}
	m := shopifyMapping()
	m.PresentmentField = "presentment_total"

	res, err := Resolve(rows, m, Options{AsOf: asOf})
	require.NoError(t, err)
	require.Equal(t, "150", res.SummedRevenue.Amount.String())
	require.Equal(t, "USD", res.SummedRevenue.Currency)
	require.Equal(t, map[string]string{"EUR": "83", "GBP": "48"}, amounts(res.PresentmentTotals))
	require.Equal(t, "EUR", res.PresentmentTotals[0].Currency, "sorted by currency")
}

func TestResolveNetsRefunds(t *testing.T) {
	rows := []model.RevenueRow{
		order("1", "SUMMER10", 100.0, time.Hour),
		order("2", "SUMMER10", "-40", 2*time.Hour),
	}
	res, err := Resolve(rows, shopifyMapping("SUMMER10"), Options{AsOf: asOf})
	require.NoError(t, err)
	require.Equal(t, 2, res.MatchedRows)
	require.Equal(t, "60", res.SummedRevenue.Amount.String())
}

func TestCombineIgnoresCurrencyCase(t *testing.T) {
	res, err := Resolve(sampleRows(), shopifyMapping("SUMMER10"), Options{AsOf: asOf, Currency: "usd"})
	require.NoError(t, err)
	total, err := Combine("usd", []Resolution{res})
	require.NoError(t, err)
	require.Equal(t, "USD", total.Currency)
	require.Equal(t, "3000", total.Amount.String())
}

func amounts(in []model.Money) map[string]string {
	out := make(map[string]string, len(in))
	for _, m := range in {
		out[m.Currency] = m.Amount.String()
	}
	return out
}

func TestValidateRevenueMapping(t *testing.T) {
	cases := map[string]func(*model.RevenueMapping){
		"source_type_invalid":       func(m *model.RevenueMapping) { m.SourceType = "fax" },
		"revenue_field_missing":     func(m *model.RevenueMapping) { m.RevenueField = " " },
		"lookback_out_of_range":     func(m *model.RevenueMapping) { m.LookbackDays = 0 },
		"classification_invalid":    func(m *model.RevenueMapping) { m.Classification = "" },
		"value_mode_invalid":        func(m *model.RevenueMapping) { m.ValueMode = "x" },
		"conversion_source_missing": func(m *model.RevenueMapping) { m.ValueMode = model.DerivedConversionValue },
		"attribution_key_missing":   func(m *model.RevenueMapping) { m.AttributionKey = "" },
	}
	for code, mutate := range cases {
		m := shopifyMapping("SUMMER10")
		mutate(&m)
		err := ValidateRevenueMapping(m, 365)
		e, ok := apperr.As(err)
		require.True(t, ok, code)
		require.Equal(t, code, e.Code)
	}

	long := shopifyMapping()
	long.LookbackDays = 400
	require.Error(t, ValidateRevenueMapping(long, 365))
	require.NoError(t, ValidateRevenueMapping(long, 500))
}

func TestSpendMappingScope(t *testing.T) {
	base := model.SpendMapping{SourceType: model.SourceSpreadsheet, SpendField: "Spend", Currency: "USD"}

	m := base
	m.ScopeField = "Campaign"
	e, _ := apperr.As(ValidateSpendMapping(m))
	require.Equal(t, "scope_values_missing", e.Code)

	m = base
	m.ScopeValues = []string{"Summer"}
	e, _ = apperr.As(ValidateSpendMapping(m))
	require.Equal(t, "scope_field_missing", e.Code)

	m = base
	m.ScopeField = "Campaign"
	m.ScopeValues = []string{"Summer"}
	rows := []SpendRow{
		{"Campaign": "Summer", "Spend": "120.50"},
		{"Campaign": "Summer ", "Spend": 79.5},
		{"Campaign": "Winter", "Spend": 1000},
		{"Spend": 5},
	}
	total, matched, err := ResolveSpend(rows, m)
	require.NoError(t, err)
	require.Equal(t, 2, matched)
	require.Equal(t, "200", total.Amount.String())
	require.Equal(t, "USD", total.Currency)

	total, matched, err = ResolveSpend(rows, base)
	require.NoError(t, err)
	require.Equal(t, 4, matched)
	require.Equal(t, "1205", total.Amount.String())
}
