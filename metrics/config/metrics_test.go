package config

import (
	"testing"
	"time"

	"github.com/prebid/prebid-mobile-go/adslot"
	mainConfig "github.com/prebid/prebid-mobile-go/config"
	"github.com/prebid/prebid-mobile-go/logger"
	"github.com/prebid/prebid-mobile-go/metrics"
	prometheusmetrics "github.com/prebid/prebid-mobile-go/metrics/prometheus"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
)

// Start a simple test to insure we get valid MetricsEngines for various configurations
func TestNilMetricsEngine(t *testing.T) {
	cfg := mainConfig.Configuration{}
	testEngine := NewMetricsEngine(&cfg)
	defer testEngine.Shutdown()

	_, ok := testEngine.MetricsEngine.(*NilMetricsEngine)
	assert.True(t, ok, "Expected a NilMetricsEngine, but didn't get it")
	assert.Nil(t, testEngine.PrometheusRegistry())
}

func TestGoMetricsEngine(t *testing.T) {
	cfg := mainConfig.Configuration{}
	cfg.Metrics.Legacy.Enabled = true
	cfg.Metrics.Legacy.Prefix = "test."
	cfg.Metrics.Legacy.LogIntervalSeconds = 3600
	testEngine := NewMetricsEngine(&cfg)
	defer testEngine.Shutdown()

	_, ok := testEngine.MetricsEngine.(*metrics.Metrics)
	assert.True(t, ok, "Expected a legacy Metrics as MetricsEngine, but didn't get it")
}

func TestPrometheusMetricsEngine(t *testing.T) {
	cfg := mainConfig.Configuration{}
	cfg.Metrics.Prometheus.Port = 9090
	testEngine := NewMetricsEngine(&cfg)
	defer testEngine.Shutdown()

	_, ok := testEngine.MetricsEngine.(*prometheusmetrics.Metrics)
	assert.True(t, ok, "Expected a prometheus Metrics as MetricsEngine, but didn't get it")
	assert.NotNil(t, testEngine.PrometheusRegistry())
}

// Test the multiengine
func TestMultiMetricsEngine(t *testing.T) {
	cfg := mainConfig.Configuration{}
	cfg.Metrics.Legacy.Enabled = true
	cfg.Metrics.Legacy.LogIntervalSeconds = 3600
	cfg.Metrics.Prometheus.Port = 9090
	testEngine := NewMetricsEngine(&cfg)
	defer testEngine.Shutdown()

	_, ok := testEngine.MetricsEngine.(*MultiMetricsEngine)
	assert.True(t, ok, "Expected a MultiMetricsEngine, but didn't get it")

	ok1 := metrics.FetchLabels{AdFormat: adslot.FormatBanner, Status: metrics.FetchStatusOK}
	for i := 0; i < 5; i++ {
		testEngine.RecordAdUnitEvent(adslot.FormatBanner, metrics.AdUnitStarted)
		testEngine.RecordRefreshTick(metrics.RefreshLabels{AdFormat: adslot.FormatBanner, Outcome: metrics.TickDispatched})
		testEngine.RecordFetch(ok1)
		testEngine.RecordFetchTime(ok1, 50*time.Millisecond)
		testEngine.RecordVisibilityChange(metrics.VisibilityInactive)
	}

	gm := testEngine.GoMetrics
	assert.Equal(t, int64(5), gm.AdUnitMeters[adslot.FormatBanner][metrics.AdUnitStarted].Count())
	assert.Equal(t, int64(5), gm.RefreshMeters[adslot.FormatBanner][metrics.TickDispatched].Count())
	assert.Equal(t, int64(5), gm.FetchMeters[adslot.FormatBanner][metrics.FetchStatusOK].Count())
	assert.Equal(t, int64(5), gm.FetchTimers[adslot.FormatBanner].Count())
	assert.Equal(t, int64(5), gm.VisibilityMeters[metrics.VisibilityInactive].Count())
}

func TestShutdownIsIdempotent(t *testing.T) {
	cfg := mainConfig.Configuration{}
	cfg.Metrics.Legacy.Enabled = true
	cfg.Metrics.Legacy.LogIntervalSeconds = 1
	testEngine := NewMetricsEngine(&cfg)

	assert.NotPanics(t, func() {
		testEngine.Shutdown()
		testEngine.Shutdown()
	})
}

func TestRegistryLoggerReportsUsedMeters(t *testing.T) {
	recorder := logger.NewRecordingLogger()
	previous := logger.SetLogger(recorder)
	defer logger.SetLogger(previous)

	registry := gometrics.NewRegistry()
	gm := metrics.NewMetrics(registry)
	gm.RecordAdUnitEvent(adslot.FormatVideo, metrics.AdUnitCreated)

	logRegistry(registry)

	entries := recorder.Entries("info")
	if assert.Len(t, entries, 1) {
		assert.Contains(t, entries[0], "adunit.video.created count=1")
	}
}
