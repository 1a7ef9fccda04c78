// Package metrics exposes the forecast pipeline's Prometheus metrics on a
// dedicated registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pvcast"

// Result label values of RunsTotal.
const (
	ResultSuccess = "success"
)

// Collector holds the pipeline metrics. A nil *Collector is valid and records
// nothing.
type Collector struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	FitCoefficient  prometheus.Gauge
	ForecastPeakKW  prometheus.Gauge
	UpstreamLatency *prometheus.HistogramVec
}

// New creates a Collector with its own registry, including the Go runtime and
// process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	f := promauto.With(reg)
	return &Collector{
		registry: reg,
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Total number of pipeline runs by result",
			},
			[]string{"result"},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_run_duration_seconds",
				Help:      "Duration of pipeline runs in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
		FitCoefficient: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pipeline_fit_coefficient",
				Help:      "Scale coefficient fitted by the last successful run",
			},
		),
		ForecastPeakKW: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pipeline_forecast_peak_kw",
				Help:      "Highest hourly PV forecast of the last successful run",
			},
		),
		UpstreamLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Duration of requests to weather and price upstreams",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source", "code"},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordRun counts a finished run. result is ResultSuccess or the error kind.
func (c *Collector) RecordRun(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.RunsTotal.WithLabelValues(result).Inc()
	c.RunDuration.Observe(d.Seconds())
}

// RecordForecast stores the coefficient and peak of a successful run.
func (c *Collector) RecordForecast(coefficient, peakKW float64) {
	if c == nil {
		return
	}
	c.FitCoefficient.Set(coefficient)
	c.ForecastPeakKW.Set(peakKW)
}

// UpstreamTransport wraps next so every request observes its duration under
// the given source label.
func (c *Collector) UpstreamTransport(source string, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if c == nil {
		return next
	}
	obs := c.UpstreamLatency.MustCurryWith(prometheus.Labels{"source": source})
	return promhttp.InstrumentRoundTripperDuration(obs, next)
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
