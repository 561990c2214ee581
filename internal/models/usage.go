package models

import "time"

// UsageSummary is the current-period usage snapshot for a user.
type UsageSummary struct {
	Requests     int64     `json:"requests"`
	RequestQuota int64     `json:"request_quota"`
	Keys         int       `json:"keys"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
}

// TimeSeriesPoint is a single point in a usage chart.
type TimeSeriesPoint struct {
	Date  time.Time `json:"date"`
	Value int64     `json:"value"`
}

// UsageReport bundles the summary with its chart series. Either series may
// be degraded to nil when its read failed; Warnings carries the messages so
// the page can render a partial view instead of a blank error state.
type UsageReport struct {
	Summary  *UsageSummary     `json:"summary,omitempty"`
	Daily    []TimeSeriesPoint `json:"daily,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}
