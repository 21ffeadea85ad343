package config

import (
	"time"

	"github.com/prebid/prebid-mobile-go/adslot"
	mainConfig "github.com/prebid/prebid-mobile-go/config"
	"github.com/prebid/prebid-mobile-go/logger"
	"github.com/prebid/prebid-mobile-go/metrics"
	prometheusmetrics "github.com/prebid/prebid-mobile-go/metrics/prometheus"
	"github.com/prebid/prebid-mobile-go/util/task"
	"github.com/prometheus/client_golang/prometheus"
	gometrics "github.com/rcrowley/go-metrics"
)

// NewMetricsEngine reads the configuration and returns the appropriate metrics engine
// for this instance.
func NewMetricsEngine(cfg *mainConfig.Configuration) *DetailedMetricsEngine {
	// Create a list of metrics engines to use.
	// Capacity of 2, as unlikely to have more than 2 metrics backends, and in the case
	// of 1 we won't use the list so it will be garbage collected.
	engineList := make(MultiMetricsEngine, 0, 2)
	returnEngine := DetailedMetricsEngine{}

	if cfg.Metrics.Legacy.Enabled {
		returnEngine.GoMetrics = metrics.NewMetrics(gometrics.NewPrefixedRegistry(cfg.Metrics.Legacy.Prefix))
		engineList = append(engineList, returnEngine.GoMetrics)
		registry := returnEngine.GoMetrics.MetricsRegistry
		returnEngine.legacyLog = task.NewTickerTaskWithOptions(task.Options{
			Interval:       time.Duration(cfg.Metrics.Legacy.LogIntervalSeconds) * time.Second,
			Runner:         task.RunnerFunc(func() error { logRegistry(registry); return nil }),
			SkipInitialRun: true,
		})
		returnEngine.legacyLog.Start()
	}
	if cfg.Metrics.Prometheus.Port != 0 {
		returnEngine.PrometheusMetrics = prometheusmetrics.NewMetrics(cfg.Metrics.Prometheus)
		engineList = append(engineList, returnEngine.PrometheusMetrics)
	}

	// Now return the proper metrics engine
	if len(engineList) > 1 {
		returnEngine.MetricsEngine = &engineList
	} else if len(engineList) == 1 {
		returnEngine.MetricsEngine = engineList[0]
	} else {
		returnEngine.MetricsEngine = &NilMetricsEngine{}
	}

	return &returnEngine
}

// DetailedMetricsEngine is a MultiMetricsEngine that preserves links to underlying metrics engines.
type DetailedMetricsEngine struct {
	metrics.MetricsEngine
	GoMetrics         *metrics.Metrics
	PrometheusMetrics *prometheusmetrics.Metrics

	legacyLog *task.TickerTask
}

// PrometheusRegistry returns the registry to expose over HTTP, or nil when prometheus is off.
func (d *DetailedMetricsEngine) PrometheusRegistry() *prometheus.Registry {
	if d.PrometheusMetrics == nil {
		return nil
	}
	return d.PrometheusMetrics.Registry
}

// Shutdown stops the periodic legacy registry dump, if any.
func (d *DetailedMetricsEngine) Shutdown() {
	if d.legacyLog != nil {
		d.legacyLog.Stop()
	}
}

// logRegistry writes every meter that has seen events to the log.
func logRegistry(registry gometrics.Registry) {
	registry.Each(func(name string, i interface{}) {
		if meter, ok := i.(gometrics.Meter); ok && meter.Count() > 0 {
			logger.Infof("metric %s count=%d rate1=%.2f", name, meter.Count(), meter.Rate1())
		}
	})
}

// MultiMetricsEngine logs metrics to multiple metrics databases The can be useful in transitioning
// an instance from one engine to another, you can run both in parallel to verify stats match up.
type MultiMetricsEngine []metrics.MetricsEngine

func (me *MultiMetricsEngine) RecordAdUnitEvent(format adslot.Format, event metrics.LifecycleEvent) {
	for _, thisME := range *me {
		thisME.RecordAdUnitEvent(format, event)
	}
}

func (me *MultiMetricsEngine) RecordRefreshTick(labels metrics.RefreshLabels) {
	for _, thisME := range *me {
		thisME.RecordRefreshTick(labels)
	}
}

func (me *MultiMetricsEngine) RecordFetch(labels metrics.FetchLabels) {
	for _, thisME := range *me {
		thisME.RecordFetch(labels)
	}
}

func (me *MultiMetricsEngine) RecordFetchTime(labels metrics.FetchLabels, length time.Duration) {
	for _, thisME := range *me {
		thisME.RecordFetchTime(labels, length)
	}
}

func (me *MultiMetricsEngine) RecordVisibilityChange(transition metrics.VisibilityTransition) {
	for _, thisME := range *me {
		thisME.RecordVisibilityChange(transition)
	}
}

// NilMetricsEngine implements the MetricsEngine interface where no metrics are desired.
type NilMetricsEngine struct{}

func (me *NilMetricsEngine) RecordAdUnitEvent(format adslot.Format, event metrics.LifecycleEvent) {
}

func (me *NilMetricsEngine) RecordRefreshTick(labels metrics.RefreshLabels) {
}

func (me *NilMetricsEngine) RecordFetch(labels metrics.FetchLabels) {
}

func (me *NilMetricsEngine) RecordFetchTime(labels metrics.FetchLabels, length time.Duration) {
}

func (me *NilMetricsEngine) RecordVisibilityChange(transition metrics.VisibilityTransition) {
}
