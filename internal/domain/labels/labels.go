// Package labels maps raw metric names to human-readable chart captions.
package labels

// Default captions of the two monitors of a metric.
const (
	DefaultDurationCaption = "Response time (ms)"
	DefaultRateCaption     = "Throughput (sec)"
)

// Label is the display metadata of one metric.
type Label struct {
	Title    string `json:"title" koanf:"title"`
	Duration string `json:"duration" koanf:"duration"`
	Rate     string `json:"rate" koanf:"rate"`
}

// Table is a static lookup of labels by raw metric name.
type Table struct {
	entries map[string]Label
}

// NewTable copies entries into a table.
func NewTable(entries map[string]Label) *Table {
	t := &Table{entries: make(map[string]Label, len(entries))}
	for k, v := range entries {
		t.entries[k] = v
	}
	return t
}

// Lookup returns the label for name. Unknown names, and blank fields of
// known ones, fall back to the raw name and the default captions.
func (t *Table) Lookup(name string) Label {
	var l Label
	if t != nil {
		l = t.entries[name]
	}
	if l.Title == "" {
		l.Title = name
	}
	if l.Duration == "" {
		l.Duration = DefaultDurationCaption
	}
	if l.Rate == "" {
		l.Rate = DefaultRateCaption
	}
	return l
}

// Len returns the number of configured entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
