// Package registry owns the Prometheus metric vectors the exporter writes.
//
// Metric families are created lazily on first write so the mapper can stay a
// pure description of name/label/value tuples. Everything lives on a private
// prometheus.Registry: none of the client library's default collectors leak
// into the exposition, and tests can run registries side by side.
package registry

import (
	"io"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Kind distinguishes observation types.
type Kind int

const (
	KindGauge Kind = iota
	KindCounter
)

// Observation is one metric write: a gauge set or a counter increment.
type Observation struct {
	Kind   Kind
	Name   string
	Help   string
	Labels map[string]string
	Value  float64
}

// Registry holds the exporter's metric families.
type Registry struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	gauges   map[string]*prometheus.GaugeVec
	counters map[string]*prometheus.CounterVec
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		registry: prometheus.NewRegistry(),
		gauges:   make(map[string]*prometheus.GaugeVec),
		counters: make(map[string]*prometheus.CounterVec),
	}
}

// Prometheus exposes the underlying registry for the HTTP handler.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// Apply performs a batch of observations in order.
func (r *Registry) Apply(obs []Observation) {
	for _, o := range obs {
		switch o.Kind {
		case KindGauge:
			r.SetGauge(o.Name, o.Help, o.Labels, o.Value)
		case KindCounter:
			r.AddCounter(o.Name, o.Help, o.Labels, o.Value)
		}
	}
}

// SetGauge sets a gauge, creating the family on first use. The label key set
// of the first write fixes the family's dimensions.
func (r *Registry) SetGauge(name, help string, labels map[string]string, value float64) {
	r.mu.Lock()
	vec, ok := r.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: name, Help: help},
			sortedKeys(labels),
		)
		r.registry.MustRegister(vec)
		r.gauges[name] = vec
	}
	r.mu.Unlock()

	if g, err := vec.GetMetricWith(labels); err == nil {
		g.Set(value)
	}
}

// AddCounter adds to a counter, creating the family on first use.
func (r *Registry) AddCounter(name, help string, labels map[string]string, delta float64) {
	r.mu.Lock()
	vec, ok := r.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: name, Help: help},
			sortedKeys(labels),
		)
		r.registry.MustRegister(vec)
		r.counters[name] = vec
	}
	r.mu.Unlock()

	if c, err := vec.GetMetricWith(labels); err == nil {
		c.Add(delta)
	}
}

// Sample is one flattened series value from a Snapshot.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Snapshot gathers the registry into flat samples, for tests and the
// terminal dashboard. Counter samples carry the cumulative value.
func (r *Registry) Snapshot() ([]Sample, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, err
	}

	var samples []Sample
	for _, mf := range families {
		samples = append(samples, flatten(mf)...)
	}
	return samples, nil
}

// flatten turns one gathered metric family into flat samples. Families that
// are neither gauges nor counters are skipped.
func flatten(mf *dto.MetricFamily) []Sample {
	samples := make([]Sample, 0, len(mf.GetMetric()))
	for _, m := range mf.GetMetric() {
		labels := make(map[string]string, len(m.GetLabel()))
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}

		var value float64
		switch {
		case m.GetGauge() != nil:
			value = m.GetGauge().GetValue()
		case m.GetCounter() != nil:
			value = m.GetCounter().GetValue()
		default:
			continue
		}

		samples = append(samples, Sample{
			Name:   mf.GetName(),
			Labels: labels,
			Value:  value,
		})
	}
	return samples
}

// WriteText writes the registry in the Prometheus text exposition format.
func (r *Registry) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
