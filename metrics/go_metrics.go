package metrics

import (
	"fmt"
	"time"

	"github.com/prebid/prebid-mobile-go/adslot"
	"github.com/rcrowley/go-metrics"
)

// Metrics is the go-metrics implementation of MetricsEngine. All meters are created up front so a
// registry dump always lists every label combination.
type Metrics struct {
	MetricsRegistry metrics.Registry

	AdUnitMeters     map[adslot.Format]map[LifecycleEvent]metrics.Meter
	RefreshMeters    map[adslot.Format]map[TickOutcome]metrics.Meter
	FetchMeters      map[adslot.Format]map[FetchStatus]metrics.Meter
	FetchTimers      map[adslot.Format]metrics.Timer
	VisibilityMeters map[VisibilityTransition]metrics.Meter
}

// NewBlankMetrics creates a new Metrics object with all blank metrics object. This may also be useful for
// testing routines to ensure that no metrics are written anywhere.
func NewBlankMetrics(registry metrics.Registry) *Metrics {
	blankMeter := &metrics.NilMeter{}
	newMetrics := &Metrics{
		MetricsRegistry:  registry,
		AdUnitMeters:     make(map[adslot.Format]map[LifecycleEvent]metrics.Meter),
		RefreshMeters:    make(map[adslot.Format]map[TickOutcome]metrics.Meter),
		FetchMeters:      make(map[adslot.Format]map[FetchStatus]metrics.Meter),
		FetchTimers:      make(map[adslot.Format]metrics.Timer),
		VisibilityMeters: make(map[VisibilityTransition]metrics.Meter),
	}

	for _, f := range AdFormats() {
		newMetrics.AdUnitMeters[f] = make(map[LifecycleEvent]metrics.Meter)
		for _, e := range LifecycleEvents() {
			newMetrics.AdUnitMeters[f][e] = blankMeter
		}
		newMetrics.RefreshMeters[f] = make(map[TickOutcome]metrics.Meter)
		for _, o := range TickOutcomes() {
			newMetrics.RefreshMeters[f][o] = blankMeter
		}
		newMetrics.FetchMeters[f] = make(map[FetchStatus]metrics.Meter)
		for _, s := range FetchStatuses() {
			newMetrics.FetchMeters[f][s] = blankMeter
		}
		newMetrics.FetchTimers[f] = &metrics.NilTimer{}
	}
	for _, v := range VisibilityTransitions() {
		newMetrics.VisibilityMeters[v] = blankMeter
	}

	return newMetrics
}

// NewMetrics creates a new Metrics object with needed metrics defined.
func NewMetrics(registry metrics.Registry) *Metrics {
	newMetrics := NewBlankMetrics(registry)

	for _, f := range AdFormats() {
		for e := range newMetrics.AdUnitMeters[f] {
			newMetrics.AdUnitMeters[f][e] = metrics.GetOrRegisterMeter(fmt.Sprintf("adunit.%s.%s", f, e), registry)
		}
		for o := range newMetrics.RefreshMeters[f] {
			newMetrics.RefreshMeters[f][o] = metrics.GetOrRegisterMeter(fmt.Sprintf("refresh.%s.%s", f, o), registry)
		}
		for s := range newMetrics.FetchMeters[f] {
			newMetrics.FetchMeters[f][s] = metrics.GetOrRegisterMeter(fmt.Sprintf("fetch.%s.%s", f, s), registry)
		}
		newMetrics.FetchTimers[f] = metrics.GetOrRegisterTimer(fmt.Sprintf("fetch_time.%s", f), registry)
	}
	for v := range newMetrics.VisibilityMeters {
		newMetrics.VisibilityMeters[v] = metrics.GetOrRegisterMeter(fmt.Sprintf("visibility.%s", v), registry)
	}

	return newMetrics
}

func (me *Metrics) RecordAdUnitEvent(format adslot.Format, event LifecycleEvent) {
	if meter, ok := me.AdUnitMeters[format][event]; ok {
		meter.Mark(1)
	}
}

func (me *Metrics) RecordRefreshTick(labels RefreshLabels) {
	if meter, ok := me.RefreshMeters[labels.AdFormat][labels.Outcome]; ok {
		meter.Mark(1)
	}
}

func (me *Metrics) RecordFetch(labels FetchLabels) {
	if meter, ok := me.FetchMeters[labels.AdFormat][labels.Status]; ok {
		meter.Mark(1)
	}
}

// RecordFetchTime only times fetches that reached the listener.
func (me *Metrics) RecordFetchTime(labels FetchLabels, length time.Duration) {
	if labels.Status == FetchStatusDiscarded {
		return
	}
	if timer, ok := me.FetchTimers[labels.AdFormat]; ok {
		timer.Update(length)
	}
}

func (me *Metrics) RecordVisibilityChange(transition VisibilityTransition) {
	if meter, ok := me.VisibilityMeters[transition]; ok {
		meter.Mark(1)
	}
}
