package metrics

import (
	"time"

	"github.com/prebid/prebid-mobile-go/adslot"
)

// RefreshLabels defines the labels attached to refresh timer ticks.
type RefreshLabels struct {
	AdFormat adslot.Format
	Outcome  TickOutcome
}

// FetchLabels defines the labels attached to completed bid fetches.
type FetchLabels struct {
	AdFormat adslot.Format
	Status   FetchStatus
}

type TickOutcome string
type FetchStatus string
type LifecycleEvent string
type VisibilityTransition string

// Refresh tick outcomes
const (
	TickDispatched      TickOutcome = "dispatched"
	TickSkippedGate     TickOutcome = "skipped"
	TickSkippedInFlight TickOutcome = "inflight"
)

func TickOutcomes() []TickOutcome {
	return []TickOutcome{
		TickDispatched,
		TickSkippedGate,
		TickSkippedInFlight,
	}
}

// Bid fetch status
const (
	FetchStatusOK        FetchStatus = "ok"
	FetchStatusNoBid     FetchStatus = "nobid"
	FetchStatusErr       FetchStatus = "err"
	FetchStatusTimeout   FetchStatus = "timeout"
	FetchStatusDiscarded FetchStatus = "discarded"
)

func FetchStatuses() []FetchStatus {
	return []FetchStatus{
		FetchStatusOK,
		FetchStatusNoBid,
		FetchStatusErr,
		FetchStatusTimeout,
		FetchStatusDiscarded,
	}
}

// Ad unit lifecycle events
const (
	AdUnitCreated   LifecycleEvent = "created"
	AdUnitStarted   LifecycleEvent = "started"
	AdUnitStopped   LifecycleEvent = "stopped"
	AdUnitDestroyed LifecycleEvent = "destroyed"
)

func LifecycleEvents() []LifecycleEvent {
	return []LifecycleEvent{
		AdUnitCreated,
		AdUnitStarted,
		AdUnitStopped,
		AdUnitDestroyed,
	}
}

// Screen state transitions
const (
	VisibilityActive   VisibilityTransition = "active"
	VisibilityInactive VisibilityTransition = "inactive"
)

func VisibilityTransitions() []VisibilityTransition {
	return []VisibilityTransition{
		VisibilityActive,
		VisibilityInactive,
	}
}

func AdFormats() []adslot.Format {
	return []adslot.Format{
		adslot.FormatBanner,
		adslot.FormatInterstitial,
		adslot.FormatVideo,
		adslot.FormatNative,
	}
}

// MetricsEngine is a generic interface to record ad unit refresh metrics into the desired backend.
type MetricsEngine interface {
	RecordAdUnitEvent(format adslot.Format, event LifecycleEvent)
	RecordRefreshTick(labels RefreshLabels)
	RecordFetch(labels FetchLabels)
	RecordFetchTime(labels FetchLabels, length time.Duration)
	RecordVisibilityChange(transition VisibilityTransition)
}
