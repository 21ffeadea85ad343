package server

import (
	"net/http"
	"strconv"

	"github.com/prebid/prebid-mobile-go/config"
	"github.com/prebid/prebid-mobile-go/logger"
	metricsconfig "github.com/prebid/prebid-mobile-go/metrics/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newPrometheusServer(cfg *config.Configuration, metrics *metricsconfig.DetailedMetricsEngine) *http.Server {
	registry := metrics.PrometheusRegistry()

	if registry == nil {
		logger.Fatalf("Prometheus metrics configured, but a Prometheus metrics engine was not found. Cannot set up a Prometheus listener.")
		return nil
	}
	return &http.Server{
		Addr: ":" + strconv.Itoa(cfg.Metrics.Prometheus.Port),
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorLog:            loggerForPrometheus{},
			MaxRequestsInFlight: 5,
		}),
	}
}

type loggerForPrometheus struct{}

func (loggerForPrometheus) Println(v ...interface{}) {
	logger.Warnf("%v", v)
}
