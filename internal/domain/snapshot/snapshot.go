// Package snapshot decodes metrics endpoint payloads into typed readings.
//
// A payload is a JSON object keyed by metric (handler) name. Every value must
// carry finite numeric timer.duration.mean and timer.rate.mean fields;
// anything else fails the whole snapshot with ErrMalformedResponse.
package snapshot

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// JSON paths of the two readings inside a metric entry.
const (
	DurationMeanPath = "timer.duration.mean"
	RateMeanPath     = "timer.rate.mean"
)

// Reading is one metric's sample in a snapshot.
type Reading struct {
	DurationMean float64 `json:"duration_mean"` // milliseconds
	RateMean     float64 `json:"rate_mean"`     // events per second
}

// Snapshot maps metric names to readings.
type Snapshot map[string]Reading

// Names returns the metric names in lexical order.
func (s Snapshot) Names() []string {
	names := lo.Keys(s)
	sort.Strings(names)
	return names
}

// Decode validates body and returns the snapshot it describes.
func Decode(body []byte) (Snapshot, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedResponse)
	}

	snap := make(Snapshot)
	var err error
	root.ForEach(func(key, value gjson.Result) bool {
		var r Reading
		r, err = decodeReading(key.String(), value)
		if err != nil {
			return false
		}
		snap[key.String()] = r
		return true
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func decodeReading(name string, value gjson.Result) (Reading, error) {
	if !value.IsObject() {
		return Reading{}, fmt.Errorf("%w: metric %q is not an object", ErrMalformedResponse, name)
	}
	duration, err := number(name, value, DurationMeanPath)
	if err != nil {
		return Reading{}, err
	}
	rate, err := number(name, value, RateMeanPath)
	if err != nil {
		return Reading{}, err
	}
	return Reading{DurationMean: duration, RateMean: rate}, nil
}

func number(name string, value gjson.Result, path string) (float64, error) {
	field := value.Get(path)
	if !field.Exists() {
		return 0, fmt.Errorf("%w: metric %q lacks %s", ErrMalformedResponse, name, path)
	}
	if field.Type != gjson.Number {
		return 0, fmt.Errorf("%w: metric %q has non-numeric %s", ErrMalformedResponse, name, path)
	}
	// Out-of-range literals such as 1e400 parse to ±Inf.
	v := field.Float()
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: metric %q has non-finite %s", ErrMalformedResponse, name, path)
	}
	return v, nil
}
