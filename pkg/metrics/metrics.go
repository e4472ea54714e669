// Package metrics turns engine events into Prometheus series.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/pedigree/pkg/core"
)

// Observer records engine events. It implements core.Observer.
type Observer struct {
	registry *prometheus.Registry

	events       *prometheus.CounterVec
	saveDuration prometheus.Histogram
	loadDuration prometheus.Histogram
	saving       prometheus.Gauge

	mu        sync.Mutex
	saveStart time.Time
	loadStart map[uint64]time.Time
}

// New registers the pedigree collectors on a fresh registry, together with
// the Go and process collectors.
func New() *Observer {
	reg := prometheus.NewRegistry()
	o := &Observer{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pedigree",
			Name:      "events_total",
			Help:      "Engine events by type.",
		}, []string{"type"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pedigree",
			Name:      "save_duration_seconds",
			Help:      "Time from save start to save finish.",
			Buckets:   prometheus.DefBuckets,
		}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pedigree",
			Name:      "load_duration_seconds",
			Help:      "Time from load start to load finish.",
			Buckets:   prometheus.DefBuckets,
		}),
		saving: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pedigree",
			Name:      "save_in_progress",
			Help:      "1 while a save is outstanding.",
		}),
		loadStart: make(map[uint64]time.Time),
	}
	reg.MustRegister(
		o.events, o.saveDuration, o.loadDuration, o.saving,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return o
}

// Registry returns the registry the collectors live on.
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// Handler serves the registry in the exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

// Notify implements core.Observer.
func (o *Observer) Notify(e core.Event) {
	o.events.WithLabelValues(string(e.Type)).Inc()

	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	switch e.Type {
	case core.EventSaveStart:
		o.saveStart = now
		o.saving.Set(1)
	case core.EventSaveFinish:
		if !o.saveStart.IsZero() {
			o.saveDuration.Observe(now.Sub(o.saveStart).Seconds())
			o.saveStart = time.Time{}
		}
		o.saving.Set(0)
	case core.EventLoadStart:
		o.loadStart[e.Seq] = now
	case core.EventLoadFinish:
		if start, ok := o.loadStart[e.Seq]; ok {
			o.loadDuration.Observe(now.Sub(start).Seconds())
			delete(o.loadStart, e.Seq)
		}
	}
}

var _ core.Observer = (*Observer)(nil)
