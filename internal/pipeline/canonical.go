// Package pipeline turns envelopes pushed by source adapters into canonical documents.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
	"marketpulse/internal/normalize"
)

// landingFields are checked in order for a URL carrying utm_* parameters.
var landingFields = []string{"landing_site", "landing_url", "landing_page", "referring_site"}

var utmKeys = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content"}

// Canonicalize normalizes one envelope. Metric records go through the source's field
// table; revenue rows are enriched with UTM attributes and given stable IDs.
func Canonicalize(env model.Envelope, reg *normalize.Registry, now time.Time) (model.CanonicalEnvelope, error) {
	if strings.TrimSpace(env.CampaignID) == "" {
		return model.CanonicalEnvelope{}, apperr.Validation("campaign_id_missing", "envelope %s has no campaign", env.ID)
	}
	out := model.CanonicalEnvelope{
		ID:         env.ID,
		Kind:       env.Kind,
		SourceID:   env.SourceID,
		CampaignID: env.CampaignID,
		IngestedAt: now.UTC(),
	}
	collected := env.ReceivedAt
	if collected.IsZero() {
		collected = now
	}

	switch env.Kind {
	case model.EnvelopeMetrics:
		set, err := reg.Normalize(env.SourceID, env.CampaignID, env.Record)
		if err != nil {
			return model.CanonicalEnvelope{}, err
		}
		set.CollectedAt = collected.UTC()
		out.Metrics = &set
	case model.EnvelopeRevenue:
		if !model.SourceType(env.SourceID).Valid() {
			return model.CanonicalEnvelope{}, apperr.Validation("source_type_invalid", "revenue source %q is not a known source type", env.SourceID)
		}
		out.Rows = make([]model.RevenueRow, 0, len(env.Rows))
		for _, r := range env.Rows {
			out.Rows = append(out.Rows, EnrichRevenueRow(env.SourceID, env.CampaignID, r))
		}
	case model.EnvelopeConnection:
		if env.Connection == nil {
			return model.CanonicalEnvelope{}, apperr.Validation("connection_missing", "connection envelope %s has no status", env.ID)
		}
		st := *env.Connection
		st.SourceID = env.SourceID
		out.Connection = &st
	case model.EnvelopeSpend:
		if !model.SourceType(env.SourceID).Valid() {
			return model.CanonicalEnvelope{}, apperr.Validation("source_type_invalid", "spend source %q is not a known source type", env.SourceID)
		}
		if env.Spend == nil {
			return model.CanonicalEnvelope{}, apperr.Validation("spend_missing", "spend envelope %s has no amount", env.ID)
		}
		sp := *env.Spend
		sp.Currency = strings.ToUpper(strings.TrimSpace(sp.Currency))
		if len(sp.Currency) != 3 {
			return model.CanonicalEnvelope{}, apperr.Validation("currency_invalid", "spend currency %q is not an ISO 4217 code", env.Spend.Currency)
		}
		if sp.Amount.IsNegative() {
			return model.CanonicalEnvelope{}, apperr.Validation("spend_negative", "spend total cannot be negative")
		}
		out.Spend = &sp
	default:
		return model.CanonicalEnvelope{}, apperr.Validation("kind_invalid", "unknown envelope kind %q", env.Kind)
	}
	return out, nil
}

// EnrichRevenueRow fills utm_* attributes from a landing URL when the row lacks them,
// normalizes currency codes and derives an ID from the row content when none is given.
func EnrichRevenueRow(sourceID, campaignID string, r model.RevenueRow) model.RevenueRow {
	attrs := make(map[string]any, len(r.Attributes)+len(utmKeys))
	for k, v := range r.Attributes {
		attrs[k] = v
	}
	for _, field := range landingFields {
		raw, ok := attrs[field].(string)
		if !ok || raw == "" {
			continue
		}
		for k, v := range parseUTM(raw) {
			if _, exists := attrs[k]; !exists {
				attrs[k] = v
			}
		}
		break
	}
	r.Attributes = attrs
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.PresentmentCurrency = strings.ToUpper(strings.TrimSpace(r.PresentmentCurrency))
	if !r.OccurredAt.IsZero() {
		r.OccurredAt = r.OccurredAt.UTC()
	}
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		r.ID = rowHash(sourceID, campaignID, r)
	}
	return r
}

func parseUTM(rawURL string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	values := u.Query()
	out := make(map[string]string)
	for _, k := range utmKeys {
		if v := strings.TrimSpace(values.Get(k)); v != "" {
			out[k] = v
		}
	}
	return out
}

func rowHash(sourceID, campaignID string, r model.RevenueRow) string {
	hasher := sha256.New()
	hasher.Write([]byte(sourceID))
	hasher.Write([]byte{0})
	hasher.Write([]byte(campaignID))
	hasher.Write([]byte{0})
	hasher.Write([]byte(r.OccurredAt.Format(time.RFC3339Nano)))
	hasher.Write([]byte{0})
	hasher.Write([]byte(r.Currency))
	keys := make([]string, 0, len(r.Attributes))
	for k := range r.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, _ := json.Marshal(r.Attributes[k])
		hasher.Write([]byte{0})
		hasher.Write([]byte(k))
		hasher.Write([]byte{'='})
		hasher.Write(v)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
