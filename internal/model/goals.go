package model

// Unit tells callers how to render a KPI or benchmark value.
type Unit string

const (
	UnitNone     Unit = "none"
	UnitPercent  Unit = "percent"
	UnitCurrency Unit = "currency"
)

// KPI is a campaign target. Current may be supplied externally; when nil it is resolved
// from live totals by Metric.
type KPI struct {
	Name     string   `json:"name" yaml:"name"`
	Metric   string   `json:"metric" yaml:"metric"`
	Target   float64  `json:"target" yaml:"target"`
	Current  *float64 `json:"current,omitempty" yaml:"current"`
	Unit     Unit     `json:"unit" yaml:"unit"`
	Priority int      `json:"priority" yaml:"priority"`
}

// Benchmark compares a metric against an industry average or custom benchmark.
type Benchmark struct {
	Name            string   `json:"name" yaml:"name"`
	Metric          string   `json:"metric" yaml:"metric"`
	Current         *float64 `json:"current,omitempty" yaml:"current"`
	IndustryAverage float64  `json:"industry_average" yaml:"industry_average"`
	Unit            Unit     `json:"unit" yaml:"unit"`
}
