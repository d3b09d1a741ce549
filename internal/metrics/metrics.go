// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

// Package metrics defines the sink the rest of the tool reports
// telemetry through. Callers receive a Sink explicitly; there is no
// process-global collector.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink receives named measurements and string properties.
type Sink interface {
	TrackMetric(name string, value float64)
	TrackProperty(name, value string)
}

// Noop discards everything.
type Noop struct{}

func (Noop) TrackMetric(string, float64) {}

func (Noop) TrackProperty(string, string) {}

// Prometheus adapts the sink onto a prometheus registry. Metric names
// become gauges under the stevedore namespace; properties become a
// labeled info counter.
type Prometheus struct {
	mu         sync.Mutex
	registry   *prometheus.Registry
	gauges     map[string]prometheus.Gauge
	properties *prometheus.CounterVec
}

// NewPrometheus registers the sink's collectors on reg.
func NewPrometheus(reg *prometheus.Registry) *Prometheus {
	p := &Prometheus{
		registry: reg,
		gauges:   make(map[string]prometheus.Gauge),
		properties: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stevedore",
			Name:      "property_info",
			Help:      "String properties reported during a run.",
		}, []string{"name", "value"}),
	}
	reg.MustRegister(p.properties)
	return p
}

func (p *Prometheus) TrackMetric(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stevedore",
			Name:      sanitize(name),
			Help:      "Measurement reported during a run.",
		})
		if err := p.registry.Register(g); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				g = are.ExistingCollector.(prometheus.Gauge)
			} else {
				return
			}
		}
		p.gauges[name] = g
	}
	g.Set(value)
}

func (p *Prometheus) TrackProperty(name, value string) {
	p.properties.WithLabelValues(name, value).Inc()
}

// sanitize maps an arbitrary measurement name onto the metric name
// charset.
func sanitize(name string) string {
	out := []byte(name)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
