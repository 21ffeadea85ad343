package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prebid/prebid-mobile-go/config"
	"github.com/prebid/prebid-mobile-go/logger"
	metricsconfig "github.com/prebid/prebid-mobile-go/metrics/config"
	"github.com/prebid/prebid-mobile-go/visibility"
)

// Screen state signals. A process has no screen; operators toggle the simulated one with
// kill -USR1 (off) and kill -USR2 (on).
const (
	screenOffSignal = syscall.SIGUSR1
	screenOnSignal  = syscall.SIGUSR2
)

// Listen blocks until the process receives SIGINT or SIGTERM. Until then it publishes screen state
// changes to screen and, when configured, serves prometheus metrics.
func Listen(cfg *config.Configuration, metrics *metricsconfig.DetailedMetricsEngine, screen *visibility.Broadcaster) {
	stopSignals := make(chan os.Signal, 1)
	signal.Notify(stopSignals, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(stopSignals)

	screenSignals := make(chan os.Signal, 4)
	signal.Notify(screenSignals, screenOffSignal, screenOnSignal)
	defer signal.Stop(screenSignals)

	done := make(chan struct{})
	var outbound []chan<- os.Signal

	if cfg.Metrics.Prometheus.Port != 0 {
		prometheusServer := newPrometheusServer(cfg, metrics)
		stopPrometheus := make(chan os.Signal)
		outbound = append(outbound, stopPrometheus)
		go shutdownAfterSignals(prometheusServer, stopPrometheus, done)

		prometheusListener, err := newListener(prometheusServer.Addr)
		if err != nil {
			logger.Errorf("Error listening for TCP connections on %s: %v for prometheus server", prometheusServer.Addr, err)
			return
		}
		go runServer(prometheusServer, "Prometheus", prometheusListener)
	}

	stop := forwardScreenState(screenSignals, stopSignals, screen)
	wait(stop, done, outbound...)
}

// forwardScreenState publishes screen signals until a stop signal arrives, then passes that stop
// signal on.
func forwardScreenState(screenSignals <-chan os.Signal, stopSignals <-chan os.Signal, screen *visibility.Broadcaster) <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	go func() {
		for {
			select {
			case sig := <-screenSignals:
				if state, ok := screenState(sig); ok {
					logger.Infof("Screen turned %s by signal %s", state, sig)
					screen.Publish(state)
				}
			case sig := <-stopSignals:
				stop <- sig
				return
			}
		}
	}()
	return stop
}

func screenState(sig os.Signal) (visibility.State, bool) {
	switch sig {
	case screenOffSignal:
		return visibility.Inactive, true
	case screenOnSignal:
		return visibility.Active, true
	}
	return 0, false
}

func runServer(server *http.Server, name string, listener net.Listener) {
	logger.Infof("%s server starting on: %s", name, server.Addr)
	err := server.Serve(listener)
	logger.Errorf("%s server quit with error: %v", name, err)
}

func newListener(address string) (net.Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("Error listening for TCP connections on %s: %v", address, err)
	}
	return ln, nil
}

func wait(inbound <-chan os.Signal, done <-chan struct{}, outbound ...chan<- os.Signal) {
	sig := <-inbound

	for i := 0; i < len(outbound); i++ {
		go sendSignal(outbound[i], sig)
	}

	for i := 0; i < len(outbound); i++ {
		<-done
	}
}

func shutdownAfterSignals(server *http.Server, stopper <-chan os.Signal, done chan<- struct{}) {
	sig := <-stopper

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var s struct{}
	logger.Infof("Stopping %s because of signal: %s", server.Addr, sig.String())
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Failed to shutdown %s: %v", server.Addr, err)
	}
	done <- s
}

func sendSignal(to chan<- os.Signal, sig os.Signal) {
	to <- sig
}
