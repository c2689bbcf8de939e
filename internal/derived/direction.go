package derived

import "marketpulse/internal/model"

var costMetrics = map[string]bool{
	string(model.MetricSpend): true,
	string(model.RatioCPC):    true,
	string(model.RatioCPM):    true,
	string(model.RatioCPA):    true,
	string(model.RatioCPL):    true,
}

// IsCostMetric reports whether an increase in key is unfavourable.
func IsCostMetric(key string) bool { return costMetrics[key] }

// Favorable reports whether change in key is an improvement. Zero change is neither.
func Favorable(key string, change float64) bool {
	if change == 0 {
		return false
	}
	if IsCostMetric(key) {
		return change < 0
	}
	return change > 0
}
