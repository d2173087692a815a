package ratelimit

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder receives engine metrics. Add accumulates a counter,
// Observe records a distribution sample (latencies in seconds).
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// NoOpMetricsRecorder is a placeholder that does nothing. It ensures we never
// have to check for a nil recorder in the hot path.
type NoOpMetricsRecorder struct{}

func (NoOpMetricsRecorder) Add(name string, value float64, tags map[string]string)     {}
func (NoOpMetricsRecorder) Observe(name string, value float64, tags map[string]string) {}

// PrometheusRecorder exposes engine metrics through a Prometheus registerer.
// Collectors are created lazily on first use; a given metric name must always
// arrive with the same tag keys.
type PrometheusRecorder struct {
	reg prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusRecorder constructs a recorder registering collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	return &PrometheusRecorder{
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Add increments the counter identified by name and tags.
func (p *PrometheusRecorder) Add(name string, value float64, tags map[string]string) {
	keys, labels := splitTags(tags)

	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: promName(name),
			Help: "rateguard counter " + name,
		}, keys)
		p.reg.MustRegister(vec)
		p.counters[name] = vec
	}
	p.mu.Unlock()

	vec.With(labels).Add(value)
}

// Observe records a sample on the histogram identified by name and tags.
func (p *PrometheusRecorder) Observe(name string, value float64, tags map[string]string) {
	keys, labels := splitTags(tags)

	p.mu.Lock()
	vec, ok := p.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    promName(name),
			Help:    "rateguard histogram " + name,
			Buckets: prometheus.DefBuckets,
		}, keys)
		p.reg.MustRegister(vec)
		p.histograms[name] = vec
	}
	p.mu.Unlock()

	vec.With(labels).Observe(value)
}

func splitTags(tags map[string]string) ([]string, prometheus.Labels) {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	labels := make(prometheus.Labels, len(tags))
	for k, v := range tags {
		labels[k] = v
	}
	return keys, labels
}

func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
