package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"github.com/prebid/prebid-mobile-go/adunit"
	"github.com/prebid/prebid-mobile-go/bidloader"
	"github.com/prebid/prebid-mobile-go/config"
	"github.com/prebid/prebid-mobile-go/metrics"
	metricsConf "github.com/prebid/prebid-mobile-go/metrics/config"
	"github.com/prebid/prebid-mobile-go/server"
	"github.com/prebid/prebid-mobile-go/visibility"
	"github.com/spf13/viper"
)

// Rev holds binary revision string
// Set manually at build time using:
//
//	go build -ldflags "-X main.Rev=`git rev-parse --short HEAD`"
var Rev string

func main() {
	flag.Parse() // required for glog flags and testing package flags

	cfg, err := loadConfig()
	if err != nil {
		glog.Exitf("Configuration could not be loaded or did not pass validation: %v", err)
	}

	err = serve(Rev, cfg)
	if err != nil {
		glog.Exitf("prebid-mobile failed: %v", err)
	}
}

const configFileName = "pbm"

func loadConfig() (*config.Configuration, error) {
	v := viper.New()
	config.SetupViper(v, configFileName)
	return config.New(v)
}

func serve(revision string, cfg *config.Configuration) error {
	glog.Infof("Starting prebid-mobile revision %q with %d ad units", revision, len(cfg.AdUnits))

	metricsEngine := metricsConf.NewMetricsEngine(cfg)
	defer metricsEngine.Shutdown()

	screen := visibility.NewBroadcaster()
	loaders := newLoaderPool(&http.Client{}, cfg)

	units, err := buildAdUnits(cfg, loaders.newFetcher, screen, metricsEngine)
	if err != nil {
		return err
	}
	for i, unit := range units {
		if err := unit.Start(logResult(cfg.AdUnits[i].ConfigID)); err != nil {
			destroyAll(units)
			return err
		}
	}

	server.Listen(cfg, metricsEngine, screen)

	destroyAll(units)
	waitForFetches(loaders.fetchers, time.Duration(cfg.Shutdown.GraceMS)*time.Millisecond)
	return nil
}

// loaderPool hands every ad unit its own HTTPFetcher on a shared http.Client. Cancel on a fetcher
// aborts everything started through it, so fetchers are never shared between units.
type loaderPool struct {
	client   *http.Client
	cfg      *config.Configuration
	fetchers []*bidloader.HTTPFetcher
}

func newLoaderPool(client *http.Client, cfg *config.Configuration) *loaderPool {
	return &loaderPool{client: client, cfg: cfg}
}

func (p *loaderPool) newFetcher() bidloader.Fetcher {
	fetcher := bidloader.NewHTTPFetcher(p.client, p.cfg, nil)
	p.fetchers = append(p.fetchers, fetcher)
	return fetcher
}

// buildAdUnits creates one unit per configured slot. Every unit gets its own fetcher from newFetcher
// and its own receiver on the shared screen broadcaster.
func buildAdUnits(cfg *config.Configuration, newFetcher func() bidloader.Fetcher, screen *visibility.Broadcaster, engine metrics.MetricsEngine) ([]*adunit.AdUnit, error) {
	wallClock := clock.New()
	units := make([]*adunit.AdUnit, 0, len(cfg.AdUnits))

	for _, entry := range cfg.AdUnits {
		deps := adunit.Dependencies{
			Config:  cfg,
			Fetcher: newFetcher(),
			Signal:  visibility.NewReceiver(screen),
			Clock:   wallClock,
			Metrics: engine,
		}
		unit, err := adunit.FromConfig(deps, entry)
		if err != nil {
			destroyAll(units)
			return nil, err
		}
		units = append(units, unit)
	}
	return units, nil
}

func logResult(configID string) adunit.ResultListener {
	return func(result bidloader.Result) {
		if result.Failed() {
			glog.Infof("config %s: no demand: %v", configID, result.Err)
			return
		}
		glog.Infof("config %s: won at %.4f %s, cache id %q, %d targeting keys", configID, result.Response.Price(), result.Response.Currency, result.Response.CacheID, len(result.Response.Targeting))
	}
}

func destroyAll(units []*adunit.AdUnit) {
	for _, unit := range units {
		unit.Destroy()
	}
}

// waitForFetches gives cancelled fetches up to grace to deliver before the process exits.
func waitForFetches(fetchers []*bidloader.HTTPFetcher, grace time.Duration) {
	done := make(chan struct{})
	go func() {
		for _, fetcher := range fetchers {
			fetcher.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		glog.Warningf("Shutting down with bid fetches still in flight after %v", grace)
	}
}
