package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics of assignment runs and geocoding.
// A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Runs        *prometheus.CounterVec
	Geocodes    *prometheus.CounterVec
	Transferred prometheus.Counter
	Families    *prometheus.CounterVec
	RunDuration prometheus.Histogram
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonemap_runs_total",
		Help: "Assignment runs, labeled by outcome.",
	}, []string{"status"}))
	if err != nil {
		return nil, err
	}
	geocodes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonemap_geocode_requests_total",
		Help: "Geocoding lookups, labeled by result (ok, cached, not_found, error).",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	transferred, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zonemap_families_transferred_total",
		Help: "Families moved out of their natural zone by rebalancing.",
	}))
	if err != nil {
		return nil, err
	}
	families, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonemap_families_total",
		Help: "Families processed, labeled by final zone (1, 2 or none).",
	}, []string{"zone"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "zonemap_run_duration_seconds",
		Help:    "Wall time of a full assignment run including geocoding.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:    gatherer,
		Runs:        runs,
		Geocodes:    geocodes,
		Transferred: transferred,
		Families:    families,
		RunDuration: duration,
	}, nil
}

// register reuses an identical collector that is already registered, so that
// several collectors can share the default registry.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	err := reg.Register(col)
	if err == nil {
		return col, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return col, fmt.Errorf("metrics: register collector: %w", err)
}

// Handler exposes the gathered metrics over HTTP.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) Geocode(result string) {
	if c == nil {
		return
	}
	c.Geocodes.WithLabelValues(result).Inc()
}

func (c *Collector) Run(status string, seconds float64) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(status).Inc()
	c.RunDuration.Observe(seconds)
}

// Assignment records the outcome of one engine run.
func (c *Collector) Assignment(zone1, zone2, unassigned, transferred int) {
	if c == nil {
		return
	}
	c.Families.WithLabelValues("1").Add(float64(zone1))
	c.Families.WithLabelValues("2").Add(float64(zone2))
	c.Families.WithLabelValues("none").Add(float64(unassigned))
	c.Transferred.Add(float64(transferred))
}
