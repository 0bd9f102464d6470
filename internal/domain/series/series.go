// Package series holds the rolling time series tracked per metric.
package series

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// DefaultRetention bounds the points kept per series.
const DefaultRetention = 1000

// Point is one timestamped sample.
type Point struct {
	At    time.Time
	Value float64
}

// Series is an ordered run of points with non-decreasing timestamps.
type Series struct {
	points    []Point
	retention int
}

func newSeries(retention int) *Series {
	return &Series{retention: retention}
}

// append adds p, clamping its timestamp to the last point, and trims the
// oldest points beyond retention.
func (s *Series) append(p Point) Point {
	if n := len(s.points); n > 0 && p.At.Before(s.points[n-1].At) {
		p.At = s.points[n-1].At
	}
	s.points = append(s.points, p)
	if s.retention > 0 && len(s.points) > s.retention {
		s.points = append(s.points[:0], s.points[len(s.points)-s.retention:]...)
	}
	return p
}

// Pair is the registry entry of one metric: a duration series, a rate
// series and the number of samples ever appended.
type Pair struct {
	Name     string
	Duration *Series
	Rate     *Series
	Samples  uint64
}

// Sample is what an append produced, timestamps already clamped.
type Sample struct {
	At       time.Time
	Duration float64
	Rate     float64
	Seeded   bool
	Samples  uint64
}

// View is an immutable copy of a pair.
type View struct {
	Name     string
	Samples  uint64
	Duration []Point
	Rate     []Point
}

// Registry maps metric names to their pairs. Entries are never removed.
// Writes come from one owner; reads may come from any goroutine.
type Registry struct {
	mu        sync.RWMutex
	pairs     map[string]*Pair
	retention int
}

// Option configures a Registry.
type Option func(*Registry)

// WithRetention bounds the points kept per series. Values <= 0 keep everything.
func WithRetention(n int) Option {
	return func(r *Registry) {
		r.retention = n
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		pairs:     make(map[string]*Pair),
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Append records one reading for name, creating and seeding the pair on
// first sighting.
func (r *Registry) Append(name string, at time.Time, duration, rate float64) Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	pair, ok := r.pairs[name]
	if !ok {
		pair = &Pair{
			Name:     name,
			Duration: newSeries(r.retention),
			Rate:     newSeries(r.retention),
		}
		r.pairs[name] = pair
	}
	d := pair.Duration.append(Point{At: at, Value: duration})
	pair.Rate.append(Point{At: d.At, Value: rate})
	pair.Samples++

	return Sample{At: d.At, Duration: duration, Rate: rate, Seeded: !ok, Samples: pair.Samples}
}

// Has reports whether name has a pair.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pairs[name]
	return ok
}

// Len returns the number of pairs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairs)
}

// Names returns the tracked metric names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := lo.Keys(r.pairs)
	sort.Strings(names)
	return names
}

// View copies the pair for name.
func (r *Registry) View(name string) (View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pair, ok := r.pairs[name]
	if !ok {
		return View{}, false
	}
	return viewOf(pair), true
}

// Views copies every pair, ordered by name.
func (r *Registry) Views() []View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pairs := lo.Values(r.pairs)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })
	return lo.Map(pairs, func(p *Pair, _ int) View { return viewOf(p) })
}

func viewOf(p *Pair) View {
	return View{
		Name:     p.Name,
		Samples:  p.Samples,
		Duration: append([]Point(nil), p.Duration.points...),
		Rate:     append([]Point(nil), p.Rate.points...),
	}
}
