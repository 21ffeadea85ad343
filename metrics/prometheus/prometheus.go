package prometheusmetrics

import (
	"time"

	"github.com/prebid/prebid-mobile-go/adslot"
	"github.com/prebid/prebid-mobile-go/config"
	"github.com/prebid/prebid-mobile-go/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics defines the Prometheus metrics backing the MetricsEngine implementation.
type Metrics struct {
	Registry *prometheus.Registry

	adUnitEvents      *prometheus.CounterVec
	refreshTicks      *prometheus.CounterVec
	fetches           *prometheus.CounterVec
	fetchTimer        *prometheus.HistogramVec
	visibilityChanges *prometheus.CounterVec
}

const (
	adFormatLabel   = "ad_format"
	eventLabel      = "event"
	outcomeLabel    = "outcome"
	statusLabel     = "status"
	transitionLabel = "state"
)

// NewMetrics initializes a new Prometheus metrics instance with preloaded label values.
func NewMetrics(cfg config.PrometheusMetrics) *Metrics {
	fetchTimeBuckets := []float64{0.05, 0.1, 0.15, 0.20, 0.25, 0.3, 0.4, 0.5, 0.75, 1, 2, 5}

	metrics := Metrics{}
	metrics.Registry = prometheus.NewRegistry()

	metrics.adUnitEvents = newCounter(cfg, metrics.Registry,
		"adunit_events",
		"Count of ad unit lifecycle events labeled by ad format and event.",
		[]string{adFormatLabel, eventLabel})

	metrics.refreshTicks = newCounter(cfg, metrics.Registry,
		"refresh_ticks",
		"Count of refresh timer ticks labeled by ad format and whether a fetch was dispatched.",
		[]string{adFormatLabel, outcomeLabel})

	metrics.fetches = newCounter(cfg, metrics.Registry,
		"bid_fetches",
		"Count of completed bid fetches labeled by ad format and status.",
		[]string{adFormatLabel, statusLabel})

	metrics.fetchTimer = newHistogramVec(cfg, metrics.Registry,
		"bid_fetch_time_seconds",
		"Seconds from dispatching a bid fetch to delivering its result, labeled by ad format and status.",
		[]string{adFormatLabel, statusLabel},
		fetchTimeBuckets)

	metrics.visibilityChanges = newCounter(cfg, metrics.Registry,
		"visibility_changes",
		"Count of screen state transitions seen by ad units.",
		[]string{transitionLabel})

	preloadLabelValues(&metrics)

	return &metrics
}

func newCounter(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string, labels []string) *prometheus.CounterVec {
	opts := prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}
	counter := prometheus.NewCounterVec(opts, labels)
	registry.MustRegister(counter)
	return counter
}

func newHistogramVec(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	opts := prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}
	histogram := prometheus.NewHistogramVec(opts, labels)
	registry.MustRegister(histogram)
	return histogram
}

func preloadLabelValues(m *Metrics) {
	for _, f := range metrics.AdFormats() {
		for _, e := range metrics.LifecycleEvents() {
			m.adUnitEvents.WithLabelValues(f.String(), string(e))
		}
		for _, o := range metrics.TickOutcomes() {
			m.refreshTicks.WithLabelValues(f.String(), string(o))
		}
		for _, s := range metrics.FetchStatuses() {
			m.fetches.WithLabelValues(f.String(), string(s))
		}
	}
	for _, v := range metrics.VisibilityTransitions() {
		m.visibilityChanges.WithLabelValues(string(v))
	}
}

func (m *Metrics) RecordAdUnitEvent(format adslot.Format, event metrics.LifecycleEvent) {
	m.adUnitEvents.With(prometheus.Labels{
		adFormatLabel: format.String(),
		eventLabel:    string(event),
	}).Inc()
}

func (m *Metrics) RecordRefreshTick(labels metrics.RefreshLabels) {
	m.refreshTicks.With(prometheus.Labels{
		adFormatLabel: labels.AdFormat.String(),
		outcomeLabel:  string(labels.Outcome),
	}).Inc()
}

func (m *Metrics) RecordFetch(labels metrics.FetchLabels) {
	m.fetches.With(prometheus.Labels{
		adFormatLabel: labels.AdFormat.String(),
		statusLabel:   string(labels.Status),
	}).Inc()
}

func (m *Metrics) RecordFetchTime(labels metrics.FetchLabels, length time.Duration) {
	if labels.Status == metrics.FetchStatusDiscarded {
		return
	}
	m.fetchTimer.With(prometheus.Labels{
		adFormatLabel: labels.AdFormat.String(),
		statusLabel:   string(labels.Status),
	}).Observe(length.Seconds())
}

func (m *Metrics) RecordVisibilityChange(transition metrics.VisibilityTransition) {
	m.visibilityChanges.With(prometheus.Labels{
		transitionLabel: string(transition),
	}).Inc()
}
