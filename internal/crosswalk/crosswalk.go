// Package crosswalk decides which external revenue rows belong to a campaign and turns
// them into an attributed revenue figure.
package crosswalk

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketpulse/internal/model"
	"marketpulse/internal/normalize"
)

const (
	DefaultDiscoveryLimit = 20
	MaxDiscoveryLimit     = 200
	maxSampleValues       = 5
)

// ValueCount is one distinct attribution value and how many rows carry it.
type ValueCount struct {
	Value string `json:"value"`
	Rows  int    `json:"rows"`
}

// Discover lists the distinct values of key across rows, most frequent first, optionally
// narrowed by a case-insensitive substring filter. It only supports choosing accepted
// values and has no effect on resolution.
func Discover(rows []model.RevenueRow, key, filter string, limit int) []ValueCount {
	if limit <= 0 {
		limit = DefaultDiscoveryLimit
	}
	if limit > MaxDiscoveryLimit {
		limit = MaxDiscoveryLimit
	}
	key = strings.TrimSpace(key)
	filter = strings.ToLower(strings.TrimSpace(filter))

	counts := make(map[string]int)
	for _, row := range rows {
		v, ok := stringValue(row.Attributes[key])
		if !ok {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(v), filter) {
			continue
		}
		counts[v]++
	}
	out := make([]ValueCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, ValueCount{Value: v, Rows: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rows != out[j].Rows {
			return out[i].Rows > out[j].Rows
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Options carries the inputs to a resolution that do not live on the mapping. Currency is
// assumed for rows that do not state one.
type Options struct {
	AsOf                time.Time
	Currency            string
	PlatformConversions float64
	MaxLookbackDays     int
}

// Resolution is the outcome of applying a mapping to a batch of rows. Classification and
// value mode travel with the figures so they are always shown next to them.
type Resolution struct {
	SourceType          model.SourceType     `json:"source_type"`
	AttributionKey      string               `json:"attribution_key"`
	MatchedRows         int                  `json:"matched_row_count"`
	SampleValues        []string             `json:"sample_values"`
	SummedRevenue       model.Money          `json:"summed_revenue"`
	PresentmentTotals   []model.Money        `json:"presentment_totals,omitempty"`
	Classification      model.Classification `json:"classification"`
	ValueMode           model.ValueMode      `json:"value_mode"`
	ConversionSourceID  string               `json:"conversion_source_id,omitempty"`
	PlatformConversions float64              `json:"platform_conversions,omitempty"`
	ConversionValue     *float64             `json:"conversion_value"`
	AttributedRevenue   model.Money          `json:"attributed_revenue"`
	IncludedInTotal     bool                 `json:"included_in_total"`
	WindowStart         time.Time            `json:"window_start"`
	WindowEnd           time.Time            `json:"window_end"`
}

// Resolve selects the rows of m's campaign inside the lookback window and sums the
// configured revenue field. An empty accepted-value set means the whole source is already
// scoped to the campaign. Matching is exact on the trimmed string form.
//
// Resolve is pure: a preview and a save given identical rows, mapping and options
// produce identical resolutions.
func Resolve(rows []model.RevenueRow, m model.RevenueMapping, opt Options) (Resolution, error) {
	if err := ValidateRevenueMapping(m, opt.MaxLookbackDays); err != nil {
		return Resolution{}, err
	}
	asOf := opt.AsOf.UTC()
	start := asOf.AddDate(0, 0, -m.LookbackDays)

	key := strings.TrimSpace(m.AttributionKey)
	accepted := CleanValues(m.AcceptedValues)
	acceptedSet := make(map[string]struct{}, len(accepted))
	for _, v := range accepted {
		acceptedSet[v] = struct{}{}
	}

	res := Resolution{
		SourceType:         m.SourceType,
		AttributionKey:     key,
		SampleValues:       []string{},
		SummedRevenue:      model.Zero(""),
		Classification:     m.Classification,
		ValueMode:          m.ValueMode,
		ConversionSourceID: m.ConversionSourceID,
		IncludedInTotal:    m.Classification == model.OffsiteNotTracked,
		WindowStart:        start,
		WindowEnd:          asOf,
	}
	presentment := make(map[string]decimal.Decimal)
	sampled := make(map[string]struct{})
	fallback := model.CurrencyCode(opt.Currency)

	for _, row := range rows {
		if !row.OccurredAt.IsZero() && (row.OccurredAt.Before(start) || row.OccurredAt.After(asOf)) {
			continue
		}
		value, present := stringValue(row.Attributes[key])
		if len(acceptedSet) > 0 {
			if !present {
				continue
			}
			if _, ok := acceptedSet[value]; !ok {
				continue
			}
		}
		res.MatchedRows++
		if present && len(res.SampleValues) < maxSampleValues {
			if _, seen := sampled[value]; !seen {
				sampled[value] = struct{}{}
				res.SampleValues = append(res.SampleValues, value)
			}
		}

		amount := model.Money{
			Amount:   decimal.NewFromFloat(normalize.SignedNumber(row.Attributes[m.RevenueField])),
			Currency: model.CurrencyCode(row.Currency),
		}
		if amount.Currency == "" {
			amount.Currency = fallback
		}
		sum, err := res.SummedRevenue.Add(amount)
		if err != nil {
			return Resolution{}, err
		}
		res.SummedRevenue = sum

		// Presentment amounts are informational; each currency keeps its own total.
		if cur := model.CurrencyCode(row.PresentmentCurrency); m.PresentmentField != "" && cur != "" {
			p := decimal.NewFromFloat(normalize.SignedNumber(row.Attributes[m.PresentmentField]))
			presentment[cur] = presentment[cur].Add(p)
		}
	}
	res.PresentmentTotals = presentmentTotals(presentment)
	if res.SummedRevenue.Currency == "" {
		res.SummedRevenue.Currency = fallback
	}

	switch m.ValueMode {
	case model.DerivedConversionValue:
		res.PlatformConversions = opt.PlatformConversions
		res.AttributedRevenue = model.Zero(res.SummedRevenue.Currency)
		if opt.PlatformConversions > 0 {
			cv := res.SummedRevenue.Float() / opt.PlatformConversions
			res.ConversionValue = &cv
			// conversions × conversionValue is the summed revenue itself.
			res.AttributedRevenue = res.SummedRevenue
		}
	default:
		res.AttributedRevenue = res.SummedRevenue
	}
	return res, nil
}

func presentmentTotals(sums map[string]decimal.Decimal) []model.Money {
	if len(sums) == 0 {
		return nil
	}
	out := make([]model.Money, 0, len(sums))
	for cur, amount := range sums {
		out = append(out, model.Money{Amount: amount, Currency: cur})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// Combine adds up the attributed revenue of every resolution classified as not tracked
// elsewhere. Onsite revenue stays visible on its resolution but never enters the sum.
func Combine(currency string, resolutions []Resolution) (model.Money, error) {
	total := model.Zero(currency)
	for _, r := range resolutions {
		if !r.IncludedInTotal {
			continue
		}
		next, err := total.Add(r.AttributedRevenue)
		if err != nil {
			return model.Money{}, err
		}
		total = next
	}
	return total, nil
}

// SpendRow is one parsed row of an imported spend sheet or manual entry.
type SpendRow map[string]any

// ResolveSpend sums m.SpendField over rows scoped to the campaign. The result is the
// lifetime total for the campaign's active range; it replaces any earlier import.
func ResolveSpend(rows []SpendRow, m model.SpendMapping) (model.Money, int, error) {
	if err := ValidateSpendMapping(m); err != nil {
		return model.Money{}, 0, err
	}
	scope := make(map[string]struct{})
	for _, v := range CleanValues(m.ScopeValues) {
		scope[v] = struct{}{}
	}
	total := decimal.Zero
	matched := 0
	for _, row := range rows {
		if m.ScopeField != "" {
			v, ok := stringValue(row[m.ScopeField])
			if !ok {
				continue
			}
			if _, hit := scope[v]; !hit {
				continue
			}
		}
		matched++
		total = total.Add(decimal.NewFromFloat(normalize.SafeNumber(row[m.SpendField])))
	}
	return model.Money{Amount: total, Currency: model.CurrencyCode(m.Currency)}, matched, nil
}
