package statsd

import (
	"sync"
	"time"
)

// Metric is one emission captured by Recorder.
type Metric struct {
	Kind   string // "count", "gauge" or "timing"
	Name   string
	Value  float64
	Tags   map[string]string
	Timing time.Duration
}

// Recorder is an in-memory Sink for tests and for the CLI's --metrics-dump flag.
type Recorder struct {
	mu      sync.Mutex
	metrics []Metric
}

var _ Sink = (*Recorder)(nil)

// Count records a counter emission.
func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.add(Metric{Kind: "count", Name: name, Value: float64(value), Tags: cloneTags(tags)})
}

// Gauge records a gauge emission.
func (r *Recorder) Gauge(name string, value float64, tags map[string]string) {
	r.add(Metric{Kind: "gauge", Name: name, Value: value, Tags: cloneTags(tags)})
}

// Timing records a timing emission.
func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.add(Metric{Kind: "timing", Name: name, Timing: value, Tags: cloneTags(tags)})
}

// Metrics returns a copy of everything recorded so far.
func (r *Recorder) Metrics() []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Metric, len(r.metrics))
	copy(out, r.metrics)
	return out
}

// Named returns the recorded emissions with the given name.
func (r *Recorder) Named(name string) []Metric {
	var out []Metric
	for _, m := range r.Metrics() {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

func (r *Recorder) add(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

// Tee returns a Sink that forwards every emission to each non-nil sink.
// It returns nil when no sinks remain.
func Tee(sinks ...Sink) Sink {
	var out tee
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

type tee []Sink

func (t tee) Count(name string, value int64, tags map[string]string) {
	for _, s := range t {
		s.Count(name, value, tags)
	}
}

func (t tee) Gauge(name string, value float64, tags map[string]string) {
	for _, s := range t {
		s.Gauge(name, value, tags)
	}
}

func (t tee) Timing(name string, value time.Duration, tags map[string]string) {
	for _, s := range t {
		s.Timing(name, value, tags)
	}
}
