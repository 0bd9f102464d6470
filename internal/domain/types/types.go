// Package types contains the read shapes served by the HTTP API.
package types

// Point is one sample on the wire: unix milliseconds and a value.
type Point struct {
	TS    int64   `json:"ts"`
	Value float64 `json:"value"`
}

// Series is one metric's chart data.
type Series struct {
	Metric        string  `json:"metric"`
	Title         string  `json:"title"`
	DurationLabel string  `json:"duration_label"`
	RateLabel     string  `json:"rate_label"`
	Samples       uint64  `json:"samples"`
	Duration      []Point `json:"duration"`
	Rate          []Point `json:"rate"`
}

// Dashboard describes one dashboard. Series is omitted in summaries.
type Dashboard struct {
	Name           string   `json:"name"`
	TargetURL      string   `json:"target_url"`
	FetchURL       string   `json:"fetch_url"`
	State          string   `json:"state"`
	PollIntervalMS int64    `json:"poll_interval_ms"`
	ShiftAfter     int      `json:"shift_after"`
	Polls          uint64   `json:"polls"`
	Errors         uint64   `json:"errors"`
	Stale          uint64   `json:"stale"`
	Metrics        []string `json:"metrics"`
	Series         []Series `json:"series,omitempty"`
}
