package stats

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the Prometheus side of Stats
type Options struct {
	// Prefix is prepended to every metric name
	Prefix string
	// Job is the value of the "project" label
	Job string
	// Registry receives the metrics. Nothing is registered when nil.
	Registry *prometheus.Registry
}

type prometheusStats struct {
	registry  *prometheus.Registry
	labels    []string
	counters  [numCounters]*prometheus.CounterVec
	fetchTime *prometheus.HistogramVec // in ns
	pending   *prometheus.GaugeVec
	inFlight  *prometheus.GaugeVec
	queues    *prometheus.GaugeVec
	paused    *prometheus.GaugeVec
}

var counterHelp = [numCounters]string{
	"Total number of URIs accepted by the frontier",
	"Total number of URIs dropped as already seen",
	"Total number of URIs rejected by the frontier",
	"Total number of URIs handed to workers",
	"Total number of URIs fetched successfully",
	"Total number of URIs that failed for good",
	"Total number of URIs finished without being fetched",
	"Total number of retryable failures",
	"Total number of URIs deleted from queues",
}

func newPrometheusStats(opts Options) (*prometheusStats, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	labelNames := []string{"project", "hostname"}

	p := &prometheusStats{
		registry: opts.Registry,
		labels:   []string{opts.Job, hostname},
		fetchTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: opts.Prefix + "fetch_time", Help: "Time in ns spent by workers on a URI", Buckets: prometheus.ExponentialBucketsRange(float64(time.Millisecond), float64(5*time.Minute), 50)},
			labelNames,
		),
		pending: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: opts.Prefix + "pending", Help: "Number of URIs waiting in queues"},
			labelNames,
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: opts.Prefix + "in_flight", Help: "Number of URIs handed to workers and not finished"},
			labelNames,
		),
		queues: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: opts.Prefix + "queues", Help: "Number of queues in the frontier"},
			labelNames,
		),
		paused: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: opts.Prefix + "paused", Help: "Is the frontier paused"},
			labelNames,
		),
	}

	for c := Counter(0); c < numCounters; c++ {
		p.counters[c] = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: opts.Prefix + c.String() + "_total", Help: counterHelp[c]},
			labelNames,
		)
	}

	if p.registry == nil {
		return p, nil
	}

	collectors := []prometheus.Collector{p.fetchTime, p.pending, p.inFlight, p.queues, p.paused}
	for _, counter := range p.counters {
		collectors = append(collectors, counter)
	}

	for _, collector := range collectors {
		if err := p.registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *prometheusStats) add(c Counter, n int64) {
	p.counters[c].WithLabelValues(p.labels...).Add(float64(n))
}

func (p *prometheusStats) observeFetch(d time.Duration) {
	p.fetchTime.WithLabelValues(p.labels...).Observe(float64(d))
}

func (p *prometheusStats) setGauge(g *prometheus.GaugeVec, v float64) {
	g.WithLabelValues(p.labels...).Set(v)
}

// Handler returns the HTTP handler exposing the metrics
func (s *Stats) Handler() http.Handler {
	if s == nil || s.prom.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.prom.registry, promhttp.HandlerOpts{})
}
