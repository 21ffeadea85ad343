// Package adunit ties a slot configuration, a refresh scheduler and a screen state subscription
// into the ad unit lifecycle exposed to host applications.
package adunit

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prebid/prebid-mobile-go/adslot"
	"github.com/prebid/prebid-mobile-go/bidloader"
	"github.com/prebid/prebid-mobile-go/config"
	"github.com/prebid/prebid-mobile-go/errortypes"
	"github.com/prebid/prebid-mobile-go/logger"
	"github.com/prebid/prebid-mobile-go/metrics"
	metricsConf "github.com/prebid/prebid-mobile-go/metrics/config"
	"github.com/prebid/prebid-mobile-go/refresh"
	"github.com/prebid/prebid-mobile-go/visibility"
)

const maxDurationSeconds = int64(math.MaxInt64 / int64(time.Second))

type State int

const (
	StateCreated State = iota
	StateReady
	StateActive
	StatePaused
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ResultListener receives every fetch outcome of a started ad unit.
type ResultListener func(bidloader.Result)

// MediationUtil is the bridge to a mediation SDK. Winning responses are handed to it before the
// listener sees them, and it can veto refresh ticks.
type MediationUtil interface {
	SetResponseToLocalExtras(response bidloader.Response)
	CanPerformRefresh() bool
}

// Dependencies are the collaborators shared by the ad units of a process.
type Dependencies struct {
	// Config holds process wide settings such as the account id and refresh limits. Nil means
	// defaults.
	Config *config.Configuration
	// Host is the opaque application context the unit was created for.
	Host    any
	Fetcher bidloader.Fetcher
	Signal  visibility.Signal
	Clock   clock.Clock
	Metrics metrics.MetricsEngine
}

type refresher interface {
	Start(slot *adslot.Configuration, fetcher bidloader.Fetcher, onResult func(bidloader.Result)) error
	Pause() error
	Resume() error
	CancelRefresh() error
	FetchNow() error
	Close()
}

// AdUnit is safe for concurrent use. Screen state changes may arrive on any goroutine.
type AdUnit struct {
	host      any
	format    adslot.Format
	mediation MediationUtil
	signal    visibility.Signal
	metrics   metrics.MetricsEngine

	mu           sync.Mutex
	state        State
	slot         *adslot.Configuration
	fetcher      bidloader.Fetcher
	scheduler    refresher
	subscribed   bool
	alwaysActive bool

	listenerMu sync.RWMutex
	listener   ResultListener
}

func newAdUnit(deps Dependencies, configID string, sizes []adslot.Size, format adslot.Format, mediation MediationUtil) *AdUnit {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Configuration{}
	}
	limits := adslot.DefaultRefreshLimits()
	if cfg.Refresh != (config.Refresh{}) {
		limits = cfg.Refresh.Limits()
	}
	engine := deps.Metrics
	if engine == nil {
		engine = &metricsConf.NilMetricsEngine{}
	}

	slot := adslot.NewConfiguration(limits)
	slot.SetAccountID(cfg.AccountID)
	if mediation != nil {
		slot.SetMediation(mediation)
	}

	u := &AdUnit{
		host:      deps.Host,
		format:    format,
		mediation: mediation,
		signal:    deps.Signal,
		metrics:   engine,
		state:     StateCreated,
		slot:      slot,
		fetcher:   deps.Fetcher,
	}

	opts := refresh.Options{Clock: deps.Clock, Metrics: engine}
	if mediation != nil {
		opts.CanRefresh = mediation.CanPerformRefresh
	}
	u.scheduler = refresh.NewScheduler(opts)

	if err := slot.Configure(configID, sizes, format); err != nil {
		logger.Warnf("ad unit created without a valid configuration: %v", err)
	} else {
		u.state = StateReady
	}
	engine.RecordAdUnitEvent(format, metrics.AdUnitCreated)
	return u
}

// InitAdConfig re-applies the slot id and size. The ad format stays the one fixed by the variant.
func (u *AdUnit) InitAdConfig(configID string, size adslot.Size) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state == StateDestroyed {
		logger.Debugf("config %s: ignoring configuration of a destroyed ad unit", configID)
		return nil
	}
	if err := u.slot.Configure(configID, []adslot.Size{size}, u.format); err != nil {
		return err
	}
	if u.state == StateCreated {
		u.state = StateReady
	}
	return nil
}

// SetRefreshInterval stores the refresh interval in seconds. A running refresh keeps its current
// period; the value applies the next time refresh is started.
func (u *AdUnit) SetRefreshInterval(seconds int) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state == StateDestroyed {
		return nil
	}
	return u.slot.SetRefreshInterval(secondsToDuration(seconds))
}

// secondsToDuration saturates instead of wrapping; the slot clamps the result to its limits.
func secondsToDuration(seconds int) time.Duration {
	if int64(seconds) > maxDurationSeconds {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(seconds) * time.Second
}

// SetAdPosition stores the placement hint; nil resets it to adslot.PositionUndefined.
func (u *AdUnit) SetAdPosition(position *adslot.Position) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state == StateDestroyed {
		return
	}
	u.slot.SetPosition(position)
}

func (u *AdUnit) AdPosition() adslot.Position {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.slot.Position()
}

// Configuration returns a snapshot of the slot configuration.
func (u *AdUnit) Configuration() *adslot.Configuration {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.slot.Clone()
}

func (u *AdUnit) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

func (u *AdUnit) Host() any {
	return u.host
}

// Start begins periodic bid fetching and reports every outcome to listener. Starting an active or
// paused unit only replaces the listener.
func (u *AdUnit) Start(listener ResultListener) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.startLocked(listener)
}

// FetchDemand starts the unit if needed and fetches bids right away. The fetch is dispatched after
// the unit lock is released, so a fetcher may deliver inline to a listener that calls back into
// the unit.
func (u *AdUnit) FetchDemand(listener ResultListener) error {
	u.mu.Lock()
	err := u.startLocked(listener)
	scheduler := u.scheduler
	u.mu.Unlock()

	if err != nil {
		return err
	}
	return scheduler.FetchNow()
}

func (u *AdUnit) startLocked(listener ResultListener) error {
	switch u.state {
	case StateDestroyed:
		return destroyedError("start")
	case StateCreated:
		return &errortypes.InvalidConfig{Message: "ad unit must be configured before it is started"}
	}
	if u.fetcher == nil {
		return &errortypes.InvalidConfig{Message: fmt.Sprintf("config %s: ad unit has no bid fetcher", u.slot.ConfigID())}
	}

	u.listenerMu.Lock()
	u.listener = listener
	u.listenerMu.Unlock()

	if u.state != StateReady {
		return nil
	}

	u.subscribeLocked()
	if err := u.scheduler.Start(u.slot, u.fetcher, u.handleResult); err != nil {
		return err
	}
	u.state = StateActive
	u.metrics.RecordAdUnitEvent(u.format, metrics.AdUnitStarted)

	if reporter, ok := u.signal.(visibility.StateReporter); ok && u.subscribed && reporter.State() == visibility.Inactive {
		u.pauseLocked()
	}
	return nil
}

// subscribeLocked subscribes to screen state once per unit. A failure is logged once and the unit
// runs as if the screen were always on.
func (u *AdUnit) subscribeLocked() {
	if u.subscribed || u.alwaysActive {
		return
	}
	if u.signal == nil {
		logger.Warnf("config %s: no screen state signal, refreshing as always active", u.slot.ConfigID())
		u.alwaysActive = true
		return
	}
	if err := u.signal.Subscribe(u.onVisibility); err != nil {
		if errortypes.IsWarning(err) {
			logger.Warnf("config %s: screen state unavailable, refreshing as always active: %v", u.slot.ConfigID(), err)
		} else {
			logger.Errorf("config %s: screen state subscription failed, refreshing as always active: %v", u.slot.ConfigID(), err)
		}
		u.alwaysActive = true
		return
	}
	u.subscribed = true
}

func (u *AdUnit) onVisibility(state visibility.State) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state == StateDestroyed {
		return
	}

	switch state {
	case visibility.Inactive:
		u.metrics.RecordVisibilityChange(metrics.VisibilityInactive)
		if u.state == StateActive {
			u.pauseLocked()
		}
	case visibility.Active:
		u.metrics.RecordVisibilityChange(metrics.VisibilityActive)
		if u.state == StatePaused {
			u.resumeLocked()
		}
	}
}

// Pause suspends refreshing of an active unit.
func (u *AdUnit) Pause() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state != StateActive {
		return &errortypes.InvalidState{Message: fmt.Sprintf("cannot pause an ad unit in state %s", u.state)}
	}
	return u.pauseLocked()
}

// Resume restarts refreshing of a paused unit with a full interval.
func (u *AdUnit) Resume() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state != StatePaused {
		return &errortypes.InvalidState{Message: fmt.Sprintf("cannot resume an ad unit in state %s", u.state)}
	}
	return u.resumeLocked()
}

func (u *AdUnit) pauseLocked() error {
	if err := u.scheduler.Pause(); err != nil {
		logger.Errorf("config %s: failed to pause refresh: %v", u.slot.ConfigID(), err)
		return err
	}
	u.state = StatePaused
	return nil
}

func (u *AdUnit) resumeLocked() error {
	if err := u.scheduler.Resume(); err != nil {
		logger.Errorf("config %s: failed to resume refresh: %v", u.slot.ConfigID(), err)
		return err
	}
	u.state = StateActive
	return nil
}

// StopRefresh cancels the refresh timer and any in-flight fetch. The unit can be started again.
func (u *AdUnit) StopRefresh() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state == StateDestroyed {
		return destroyedError("stop refresh of")
	}
	if err := u.scheduler.CancelRefresh(); err != nil {
		return err
	}
	if u.state == StateActive || u.state == StatePaused {
		u.state = StateReady
		u.metrics.RecordAdUnitEvent(u.format, metrics.AdUnitStopped)
	}
	return nil
}

// Destroy releases everything the unit holds. It is safe to call more than once and before Start.
func (u *AdUnit) Destroy() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state == StateDestroyed {
		return
	}
	u.state = StateDestroyed

	if u.signal != nil {
		u.signal.Unsubscribe()
		u.subscribed = false
	}
	u.scheduler.Close()
	u.fetcher = nil

	u.listenerMu.Lock()
	u.listener = nil
	u.listenerMu.Unlock()

	u.metrics.RecordAdUnitEvent(u.format, metrics.AdUnitDestroyed)
	logger.Debugf("config %s: ad unit destroyed", u.slot.ConfigID())
}

func (u *AdUnit) handleResult(result bidloader.Result) {
	if result.Response != nil && u.mediation != nil {
		u.mediation.SetResponseToLocalExtras(*result.Response)
	}

	u.listenerMu.RLock()
	listener := u.listener
	u.listenerMu.RUnlock()

	if listener != nil {
		listener(result)
	}
}

func destroyedError(action string) error {
	return &errortypes.InvalidState{Message: fmt.Sprintf("cannot %s a destroyed ad unit", action)}
}
