package normalize

import "marketpulse/internal/model"

// CustomIntegration is the source id used for manual/custom metric pushes.
const CustomIntegration = "custom-integration"

// BuiltinTables returns the field tables shipped with the service. Extra tables can be
// loaded from SOURCES_CONFIG_PATH.
func BuiltinTables() []FieldTable {
	custom := make(map[string]model.MetricKey)
	for _, k := range model.BaseMetrics {
		custom[string(k)] = k
	}
	for _, k := range model.OptionalMetrics {
		custom[string(k)] = k
	}
	return []FieldTable{
		{
			SourceID:    "meta_ads",
			DisplayName: "Meta Ads",
			Kind:        KindAdPlatform,
			Fields: map[string]model.MetricKey{
				"impressions":        model.MetricImpressions,
				"clicks":             model.MetricClicks,
				"spend":              model.MetricSpend,
				"actions.purchase":   model.MetricConversions,
				"actions.lead":       model.MetricLeads,
				"post_engagement":    model.MetricTotalEngagements,
				"reach":              model.MetricReach,
				"video_play_actions": model.MetricVideoViews,
			},
		},
		{
			SourceID:    "google_ads",
			DisplayName: "Google Ads",
			Kind:        KindAdPlatform,
			Fields: map[string]model.MetricKey{
				"metrics.impressions":  model.MetricImpressions,
				"metrics.clicks":       model.MetricClicks,
				"metrics.cost":         model.MetricSpend,
				"metrics.conversions":  model.MetricConversions,
				"metrics.leads":        model.MetricLeads,
				"metrics.engagements":  model.MetricTotalEngagements,
				"metrics.video_views":  model.MetricVideoViews,
				"metrics.unique_users": model.MetricReach,
			},
		},
		{
			SourceID:    "linkedin_ads",
			DisplayName: "LinkedIn Ads",
			Kind:        KindAdPlatform,
			Fields: map[string]model.MetricKey{
				"impressions":                  model.MetricImpressions,
				"clicks":                       model.MetricClicks,
				"costInLocalCurrency":          model.MetricSpend,
				"externalWebsiteConversions":   model.MetricConversions,
				"oneClickLeads":                model.MetricLeads,
				"likes":                        model.MetricTotalEngagements,
				"comments":                     model.MetricTotalEngagements,
				"shares":                       model.MetricTotalEngagements,
				"approximateUniqueImpressions": model.MetricReach,
				"videoViews":                   model.MetricVideoViews,
				"viralImpressions":             model.MetricViralImpressions,
			},
		},
		{
			SourceID:    "tiktok_ads",
			DisplayName: "TikTok Ads",
			Kind:        KindAdPlatform,
			Fields: map[string]model.MetricKey{
				"impressions":        model.MetricImpressions,
				"clicks":             model.MetricClicks,
				"spend":              model.MetricSpend,
				"conversion":         model.MetricConversions,
				"engagements":        model.MetricTotalEngagements,
				"reach":              model.MetricReach,
				"video_play_actions": model.MetricVideoViews,
			},
		},
		{
			SourceID:    "google_analytics",
			DisplayName: "Google Analytics",
			Kind:        KindAnalytics,
			Fields: map[string]model.MetricKey{
				"ga:pageviews": model.MetricPageviews,
				"ga:sessions":  model.MetricSessions,
			},
		},
		{
			SourceID:    CustomIntegration,
			DisplayName: "Custom Integration",
			Kind:        KindCustom,
			Fields:      custom,
		},
	}
}
