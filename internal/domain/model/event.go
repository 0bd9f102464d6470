// Package model contains domain models passed between layers.
package model

import "time"

// EventKind tells subscribers what happened on a dashboard.
type EventKind string

// Event kinds.
const (
	KindUpdate EventKind = "update" // one metric received a sample
	KindError  EventKind = "error"  // a poll failed
)

// Event is published by a dashboard for every series update and every
// failed poll. Fields irrelevant to the kind stay zero.
type Event struct {
	Kind      EventKind `json:"kind"`
	Dashboard string    `json:"dashboard"`
	Seq       uint64    `json:"seq"`
	At        time.Time `json:"at"`

	// Update fields.
	Metric   string  `json:"metric,omitempty"`
	Title    string  `json:"title,omitempty"`
	Duration float64 `json:"duration"`
	Rate     float64 `json:"rate"`
	Seeded   bool    `json:"seeded,omitempty"`
	Shift    bool    `json:"shift"`
	Poll     uint64  `json:"poll,omitempty"`
	Samples  uint64  `json:"samples,omitempty"`

	// Error fields.
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// IsError reports whether e describes a failed poll.
func (e Event) IsError() bool { return e.Kind == KindError }
