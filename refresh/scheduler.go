// Package refresh drives the periodic re-fetching of bids for one ad slot.
package refresh

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prebid/prebid-mobile-go/adslot"
	"github.com/prebid/prebid-mobile-go/bidloader"
	"github.com/prebid/prebid-mobile-go/errortypes"
	"github.com/prebid/prebid-mobile-go/logger"
	"github.com/prebid/prebid-mobile-go/metrics"
	metricsConf "github.com/prebid/prebid-mobile-go/metrics/config"
)

type State int

const (
	StateStopped State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures a Scheduler. Zero values fall back to the real clock and no metrics.
type Options struct {
	Clock   clock.Clock
	Metrics metrics.MetricsEngine
	// CanRefresh is consulted on every tick. A false answer skips the fetch but keeps the cadence.
	// It is called with the scheduler lock held and must not call back into the Scheduler.
	CanRefresh func() bool
}

// Scheduler owns at most one pending timer and at most one in-flight fetch.
//
// The refresh interval is read from the slot when Start is called. Changing the slot afterwards has
// no effect until the scheduler is stopped and started again.
type Scheduler struct {
	clock      clock.Clock
	metrics    metrics.MetricsEngine
	canRefresh func() bool

	mu     sync.Mutex
	state  State
	closed bool
	// session changes on every Start and Stop; results from an older session are dropped.
	session uint64
	// timerGen changes every time the timer is armed or cancelled; stale fires are dropped.
	timerGen  uint64
	timer     *clock.Timer
	slot      *adslot.Configuration
	interval  time.Duration
	fetcher   bidloader.Fetcher
	onResult  func(bidloader.Result)
	inFlight  uint64
	nextFetch uint64
}

func NewScheduler(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Metrics == nil {
		opts.Metrics = &metricsConf.NilMetricsEngine{}
	}
	return &Scheduler{
		clock:      opts.Clock,
		metrics:    opts.Metrics,
		canRefresh: opts.CanRefresh,
	}
}

// Start arms the refresh timer for a snapshot of slot. Results, including failures, go to onResult.
// Starting a scheduler that is already running or paused does nothing.
func (s *Scheduler) Start(slot *adslot.Configuration, fetcher bidloader.Fetcher, onResult func(bidloader.Result)) error {
	if slot == nil || !slot.Configured() {
		return &errortypes.InvalidConfig{Message: "refresh scheduler requires a configured slot"}
	}
	if fetcher == nil {
		return &errortypes.InvalidConfig{Message: fmt.Sprintf("config %s: refresh scheduler requires a bid fetcher", slot.ConfigID())}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return closedError()
	}
	if s.state != StateStopped {
		return nil
	}

	s.slot = slot.Clone()
	s.interval = s.slot.RefreshInterval()
	s.fetcher = fetcher
	s.onResult = onResult
	s.session++
	s.state = StateRunning
	s.armLocked()

	logger.Debugf("config %s: refresh started, interval %v", s.slot.ConfigID(), s.interval)
	return nil
}

// Pause cancels the pending timer. A fetch already dispatched still completes and is delivered.
func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return closedError()
	}
	if s.state != StateRunning {
		return nil
	}
	s.cancelTimerLocked()
	s.state = StatePaused
	return nil
}

// Resume re-arms the timer for a full interval. Time spent paused is not credited.
func (s *Scheduler) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return closedError()
	}
	if s.state != StatePaused {
		return nil
	}
	s.state = StateRunning
	s.armLocked()
	return nil
}

// Stop cancels the pending timer and the in-flight fetch. The scheduler can be started again.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return closedError()
	}
	fetcher := s.haltLocked()
	s.mu.Unlock()

	if fetcher != nil {
		fetcher.Cancel()
	}
	return nil
}

// CancelRefresh halts refreshing until the next Start.
func (s *Scheduler) CancelRefresh() error {
	return s.Stop()
}

// FetchNow dispatches a fetch immediately and restarts the interval from now. It is skipped while
// paused or while another fetch is in flight.
func (s *Scheduler) FetchNow() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return closedError()
	}
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return &errortypes.InvalidState{Message: "cannot fetch before the refresh scheduler is started"}
	case StatePaused:
		s.mu.Unlock()
		return nil
	}
	if s.inFlight != 0 {
		logger.Debugf("config %s: fetch already in flight", s.slot.ConfigID())
		s.mu.Unlock()
		return nil
	}

	s.armLocked()
	dispatch := s.dispatchLocked()
	s.mu.Unlock()

	dispatch()
	return nil
}

// Close stops the scheduler for good. Any later call returns errortypes.InvalidState.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	fetcher := s.haltLocked()
	s.closed = true
	s.fetcher = nil
	s.onResult = nil
	s.mu.Unlock()

	if fetcher != nil {
		fetcher.Cancel()
	}
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Interval returns the interval the current run was started with, or zero when stopped.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return 0
	}
	return s.interval
}

// haltLocked moves to Stopped and returns the fetcher to cancel, if the scheduler was active.
func (s *Scheduler) haltLocked() bidloader.Fetcher {
	if s.state == StateStopped {
		return nil
	}
	s.cancelTimerLocked()
	s.session++
	s.inFlight = 0
	s.state = StateStopped
	return s.fetcher
}

func (s *Scheduler) armLocked() {
	s.cancelTimerLocked()
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(s.interval, func() {
		s.tick(gen)
	})
}

func (s *Scheduler) cancelTimerLocked() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if s.closed || s.state != StateRunning || gen != s.timerGen {
		s.mu.Unlock()
		return
	}

	// Re-arm before dispatching so the cadence follows the wall clock, not fetch latency.
	s.timer = nil
	s.armLocked()
	configID := s.slot.ConfigID()
	labels := metrics.RefreshLabels{AdFormat: s.slot.Format()}

	if s.canRefresh != nil && !s.canRefresh() {
		s.mu.Unlock()
		labels.Outcome = metrics.TickSkippedGate
		s.metrics.RecordRefreshTick(labels)
		logger.Debugf("config %s: refresh tick skipped, refresh not allowed", configID)
		return
	}
	if s.inFlight != 0 {
		s.mu.Unlock()
		labels.Outcome = metrics.TickSkippedInFlight
		s.metrics.RecordRefreshTick(labels)
		logger.Debugf("config %s: refresh tick skipped, previous fetch still in flight", configID)
		return
	}

	dispatch := s.dispatchLocked()
	s.mu.Unlock()

	labels.Outcome = metrics.TickDispatched
	s.metrics.RecordRefreshTick(labels)
	dispatch()
}

// dispatchLocked reserves the in-flight slot and returns the call to make once the lock is released.
func (s *Scheduler) dispatchLocked() func() {
	s.nextFetch++
	id := s.nextFetch
	s.inFlight = id

	session := s.session
	fetcher := s.fetcher
	slot := s.slot.Clone()
	started := s.clock.Now()

	return func() {
		fetcher.Fetch(slot, func(result bidloader.Result) {
			s.deliver(session, id, slot, started, result)
		})
	}
}

func (s *Scheduler) deliver(session, id uint64, slot *adslot.Configuration, started time.Time, result bidloader.Result) {
	s.mu.Lock()
	if s.inFlight == id {
		s.inFlight = 0
	}
	current := !s.closed && s.state != StateStopped && session == s.session
	onResult := s.onResult
	s.mu.Unlock()

	labels := metrics.FetchLabels{AdFormat: slot.Format()}
	if !current {
		labels.Status = metrics.FetchStatusDiscarded
		s.metrics.RecordFetch(labels)
		logger.Debugf("config %s: discarding fetch result delivered after stop", slot.ConfigID())
		return
	}

	labels.Status = fetchStatus(result.Err)
	s.metrics.RecordFetch(labels)
	s.metrics.RecordFetchTime(labels, s.clock.Since(started))
	if labels.Status == metrics.FetchStatusErr || labels.Status == metrics.FetchStatusTimeout {
		logger.Warnf("config %s: bid fetch failed with code %d: %v", slot.ConfigID(), errortypes.ReadCode(result.Err), result.Err)
	}

	if onResult != nil {
		onResult(result)
	}
}

func fetchStatus(err error) metrics.FetchStatus {
	if err == nil {
		return metrics.FetchStatusOK
	}
	var noBids *errortypes.NoBids
	if errors.As(err, &noBids) {
		return metrics.FetchStatusNoBid
	}
	var timeout *errortypes.Timeout
	if errors.As(err, &timeout) {
		return metrics.FetchStatusTimeout
	}
	return metrics.FetchStatusErr
}

func closedError() error {
	return &errortypes.InvalidState{Message: "refresh scheduler is closed"}
}
