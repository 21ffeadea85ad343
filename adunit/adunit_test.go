package adunit

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prebid/prebid-mobile-go/adslot"
	"github.com/prebid/prebid-mobile-go/bidloader"
	"github.com/prebid/prebid-mobile-go/config"
	"github.com/prebid/prebid-mobile-go/errortypes"
	"github.com/prebid/prebid-mobile-go/logger"
	"github.com/prebid/prebid-mobile-go/metrics"
	"github.com/prebid/prebid-mobile-go/visibility"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tickFor = 5 * time.Millisecond
	quiet   = 50 * time.Millisecond
)

type schedulerMock struct {
	mock.Mock
}

func (m *schedulerMock) Start(slot *adslot.Configuration, fetcher bidloader.Fetcher, onResult func(bidloader.Result)) error {
	return m.Called(slot, fetcher).Error(0)
}

func (m *schedulerMock) Pause() error {
	return m.Called().Error(0)
}

func (m *schedulerMock) Resume() error {
	return m.Called().Error(0)
}

func (m *schedulerMock) CancelRefresh() error {
	return m.Called().Error(0)
}

func (m *schedulerMock) FetchNow() error {
	return m.Called().Error(0)
}

func (m *schedulerMock) Close() {
	m.Called()
}

type listenerRecorder struct {
	mu      sync.Mutex
	results []bidloader.Result
}

func (r *listenerRecorder) listen(result bidloader.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *listenerRecorder) all() []bidloader.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bidloader.Result(nil), r.results...)
}

// inlineFetcher delivers on the calling goroutine.
type inlineFetcher struct {
	cancels atomic.Int32
}

func (f *inlineFetcher) Fetch(slot *adslot.Configuration, onResult func(bidloader.Result)) {
	onResult(bidloader.Result{Err: &errortypes.NoBids{Message: "no bids"}})
}

func (f *inlineFetcher) Cancel() {
	f.cancels.Add(1)
}

type testEnv struct {
	clock   *clock.Mock
	fetcher *bidloader.FetcherMock
	signal  *visibility.SignalMock
	counts  *metrics.Metrics
}

func newTestEnv() *testEnv {
	fetcher := &bidloader.FetcherMock{}
	fetcher.On("Fetch", mock.Anything).Return()
	fetcher.On("Cancel").Return()

	signal := &visibility.SignalMock{}
	signal.On("Subscribe", mock.Anything).Return(nil)
	signal.On("Unsubscribe").Return()

	return &testEnv{
		clock:   clock.NewMock(),
		fetcher: fetcher,
		signal:  signal,
		counts:  metrics.NewMetrics(gometrics.NewRegistry()),
	}
}

func (e *testEnv) deps() Dependencies {
	return Dependencies{
		Config:  &config.Configuration{AccountID: "id"},
		Host:    "activity",
		Fetcher: e.fetcher,
		Signal:  e.signal,
		Clock:   e.clock,
		Metrics: e.counts,
	}
}

func newMediationBanner(env *testEnv, mediation MediationUtil) *AdUnit {
	return NewMediationBannerAdUnit(env.deps(), "config", adslot.Size{}, mediation)
}

func TestNewMediationBannerAdUnit(t *testing.T) {
	env := newTestEnv()
	unit := newMediationBanner(env, &MediationUtilMock{})

	assert.Equal(t, adslot.PositionUndefined.Value(), unit.AdPosition().Value())
	assert.Equal(t, StateReady, unit.State())
	assert.Equal(t, "activity", unit.Host())

	cfg := unit.Configuration()
	assert.Equal(t, "id", cfg.AccountID())
	assert.NotNil(t, cfg.Mediation())
	assert.Equal(t, int64(1), env.counts.AdUnitMeters[adslot.FormatBanner][metrics.AdUnitCreated].Count())
	env.signal.AssertNotCalled(t, "Subscribe", mock.Anything)
}

func TestInitAdConfigPreparesBannerConfig(t *testing.T) {
	unit := newMediationBanner(newTestEnv(), &MediationUtilMock{})
	size := adslot.Size{Width: 1, Height: 2}

	require.NoError(t, unit.InitAdConfig("config", size))

	cfg := unit.Configuration()
	assert.Equal(t, "config", cfg.ConfigID())
	assert.Equal(t, adslot.NewFormatSet(adslot.FormatBanner), cfg.Formats())
	assert.True(t, cfg.HasSize(size))
}

func TestInitAdConfigRejectsEmptyConfigID(t *testing.T) {
	unit := newMediationBanner(newTestEnv(), &MediationUtilMock{})

	err := unit.InitAdConfig("", adslot.Size{Width: 300, Height: 250})

	assert.IsType(t, &errortypes.InvalidConfig{}, err)
	assert.Equal(t, "config", unit.Configuration().ConfigID())
}

func TestInitAdConfigKeepsVariantFormat(t *testing.T) {
	unit := NewInterstitialAdUnit(newTestEnv().deps(), "config", adslot.Size{Width: 320, Height: 480})

	require.NoError(t, unit.InitAdConfig("other", adslot.Size{Width: 480, Height: 320}))

	cfg := unit.Configuration()
	assert.Equal(t, adslot.FormatInterstitial, cfg.Format())
	assert.Equal(t, []adslot.Size{{Width: 480, Height: 320}}, cfg.Sizes())
}

func TestSetRefreshIntervalIsClamped(t *testing.T) {
	unit := newMediationBanner(newTestEnv(), &MediationUtilMock{})
	assert.Equal(t, 30*time.Second, unit.Configuration().RefreshInterval())

	require.NoError(t, unit.SetRefreshInterval(15))

	assert.Equal(t, 30*time.Second, unit.Configuration().RefreshInterval())
	assert.IsType(t, &errortypes.InvalidConfig{}, unit.SetRefreshInterval(0))
}

func TestSetRefreshIntervalHonorsConfiguredLimits(t *testing.T) {
	env := newTestEnv()
	deps := env.deps()
	deps.Config.Refresh = config.Refresh{DefaultSeconds: 60, MinSeconds: 10, MaxSeconds: 300}
	unit := NewBannerAdUnit(deps, "config", adslot.Size{Width: 320, Height: 50})
	assert.Equal(t, time.Minute, unit.Configuration().RefreshInterval())

	require.NoError(t, unit.SetRefreshInterval(15))

	assert.Equal(t, 15*time.Second, unit.Configuration().RefreshInterval())
}

func TestDestroyUnregistersReceiver(t *testing.T) {
	env := newTestEnv()
	unit := newMediationBanner(env, &MediationUtilMock{})

	unit.Destroy()

	env.signal.AssertNumberOfCalls(t, "Unsubscribe", 1)
	assert.Equal(t, StateDestroyed, unit.State())
}

func TestDestroyTwiceUnregistersOnce(t *testing.T) {
	env := newTestEnv()
	unit := newMediationBanner(env, &MediationUtilMock{})
	require.NoError(t, unit.Start(nil))

	assert.NotPanics(t, func() {
		unit.Destroy()
		unit.Destroy()
	})

	env.signal.AssertNumberOfCalls(t, "Subscribe", 1)
	env.signal.AssertNumberOfCalls(t, "Unsubscribe", 1)
	assert.Equal(t, int64(1), env.counts.AdUnitMeters[adslot.FormatBanner][metrics.AdUnitDestroyed].Count())
}

func TestStopRefreshCancelsRefresh(t *testing.T) {
	unit := newMediationBanner(newTestEnv(), &MediationUtilMock{})
	scheduler := &schedulerMock{}
	scheduler.On("CancelRefresh").Return(nil)
	unit.scheduler = scheduler

	require.NoError(t, unit.StopRefresh())
	scheduler.AssertNumberOfCalls(t, "CancelRefresh", 1)

	require.NoError(t, unit.StopRefresh())
	scheduler.AssertNumberOfCalls(t, "CancelRefresh", 2)
}

func TestStopRefreshLeavesNoTimerArmed(t *testing.T) {
	env := newTestEnv()
	unit := newMediationBanner(env, nil)
	require.NoError(t, unit.Start(nil))

	require.NoError(t, unit.StopRefresh())
	assert.Equal(t, StateReady, unit.State())
	env.fetcher.AssertNumberOfCalls(t, "Cancel", 1)

	env.clock.Add(2 * time.Minute)
	assert.Never(t, func() bool { return env.fetcher.Dispatched() > 0 }, quiet, tickFor)

	require.NoError(t, unit.Start(nil))
	env.clock.Add(30 * time.Second)
	assert.Eventually(t, func() bool { return env.fetcher.Dispatched() == 1 }, waitFor, tickFor)
	env.signal.AssertNumberOfCalls(t, "Subscribe", 1)
}

func TestSetAdPositionEqualsAdPosition(t *testing.T) {
	unit := newMediationBanner(newTestEnv(), &MediationUtilMock{})

	unit.SetAdPosition(nil)
	assert.Equal(t, adslot.PositionUndefined, unit.AdPosition())

	for _, position := range []adslot.Position{adslot.PositionFooter, adslot.PositionHeader, adslot.PositionSidebar, adslot.PositionUnknown} {
		unit.SetAdPosition(adslot.PositionPtr(position))
		assert.Equal(t, position, unit.AdPosition())
	}
}

func TestScreenOffPausesAndScreenOnRestartsInterval(t *testing.T) {
	env := newTestEnv()
	unit := NewBannerAdUnit(env.deps(), "config", adslot.Size{Width: 320, Height: 50})
	require.NoError(t, unit.Start(nil))

	env.clock.Add(10 * time.Second)
	env.signal.Emit(visibility.Inactive)
	assert.Equal(t, StatePaused, unit.State())

	env.clock.Add(time.Minute)
	assert.Never(t, func() bool { return env.fetcher.Dispatched() > 0 }, quiet, tickFor)

	env.signal.Emit(visibility.Active)
	assert.Equal(t, StateActive, unit.State())

	env.clock.Add(29 * time.Second)
	assert.Never(t, func() bool { return env.fetcher.Dispatched() > 0 }, quiet, tickFor)

	env.clock.Add(time.Second)
	assert.Eventually(t, func() bool { return env.fetcher.Dispatched() == 1 }, waitFor, tickFor)

	assert.Equal(t, int64(1), env.counts.VisibilityMeters[metrics.VisibilityInactive].Count())
	assert.Equal(t, int64(1), env.counts.VisibilityMeters[metrics.VisibilityActive].Count())
}

func TestDestroyMidFetchDiscardsLateResult(t *testing.T) {
	env := newTestEnv()
	unit := NewBannerAdUnit(env.deps(), "config", adslot.Size{Width: 320, Height: 50})
	listener := &listenerRecorder{}
	require.NoError(t, unit.Start(listener.listen))

	env.clock.Add(30 * time.Second)
	require.Eventually(t, func() bool { return env.fetcher.Dispatched() == 1 }, waitFor, tickFor)

	unit.Destroy()
	env.fetcher.AssertNumberOfCalls(t, "Cancel", 1)

	require.True(t, env.fetcher.Complete(bidloader.Result{Response: &bidloader.Response{ID: "late"}}))
	assert.Empty(t, listener.all())

	env.clock.Add(2 * time.Minute)
	assert.Never(t, func() bool { return env.fetcher.Dispatched() > 1 }, quiet, tickFor)
}

func TestFetchFailureReachesListenerAndRefreshContinues(t *testing.T) {
	env := newTestEnv()
	unit := NewBannerAdUnit(env.deps(), "config", adslot.Size{Width: 320, Height: 50})
	listener := &listenerRecorder{}
	require.NoError(t, unit.Start(listener.listen))

	env.clock.Add(30 * time.Second)
	require.Eventually(t, func() bool { return env.fetcher.Dispatched() == 1 }, waitFor, tickFor)
	require.True(t, env.fetcher.Complete(bidloader.Result{Err: &errortypes.Timeout{Message: "slow"}}))

	results := listener.all()
	require.Len(t, results, 1)
	assert.IsType(t, &errortypes.Timeout{}, results[0].Err)

	env.clock.Add(30 * time.Second)
	assert.Eventually(t, func() bool { return env.fetcher.Dispatched() == 2 }, waitFor, tickFor)
}

func TestVisibilityUnavailableRunsAlwaysActive(t *testing.T) {
	recorder := logger.NewRecordingLogger()
	previous := logger.SetLogger(recorder)
	defer logger.SetLogger(previous)

	env := newTestEnv()
	env.signal = &visibility.SignalMock{}
	env.signal.On("Subscribe", mock.Anything).Return(&errortypes.VisibilityUnavailable{Message: "no receiver"})
	env.signal.On("Unsubscribe").Return()
	unit := NewBannerAdUnit(env.deps(), "config", adslot.Size{Width: 320, Height: 50})

	require.NoError(t, unit.Start(nil))
	require.NoError(t, unit.StopRefresh())
	require.NoError(t, unit.Start(nil))
	assert.Equal(t, StateActive, unit.State())

	env.clock.Add(30 * time.Second)
	assert.Eventually(t, func() bool { return env.fetcher.Dispatched() == 1 }, waitFor, tickFor)
	env.signal.AssertNumberOfCalls(t, "Subscribe", 1)
	assert.Len(t, recorder.Entries("warn"), 1)
}

func TestStartWhileScreenOffStartsPaused(t *testing.T) {
	env := newTestEnv()
	broadcaster := visibility.NewBroadcaster()
	broadcaster.Publish(visibility.Inactive)
	receiver := visibility.NewReceiver(broadcaster)

	deps := env.deps()
	deps.Signal = receiver
	unit := NewBannerAdUnit(deps, "config", adslot.Size{Width: 320, Height: 50})
	require.NoError(t, unit.Start(nil))
	assert.Equal(t, StatePaused, unit.State())

	env.clock.Add(time.Minute)
	assert.Never(t, func() bool { return env.fetcher.Dispatched() > 0 }, quiet, tickFor)

	broadcaster.Publish(visibility.Active)
	assert.Equal(t, StateActive, unit.State())
	env.clock.Add(30 * time.Second)
	assert.Eventually(t, func() bool { return env.fetcher.Dispatched() == 1 }, waitFor, tickFor)

	unit.Destroy()
	assert.Equal(t, 1, receiver.Unregistrations())
	assert.Equal(t, 0, broadcaster.Registered())
}

func TestManualPauseResume(t *testing.T) {
	env := newTestEnv()
	unit := NewBannerAdUnit(env.deps(), "config", adslot.Size{Width: 320, Height: 50})

	assert.IsType(t, &errortypes.InvalidState{}, unit.Pause())
	assert.IsType(t, &errortypes.InvalidState{}, unit.Resume())
	assert.Equal(t, StateReady, unit.State())

	require.NoError(t, unit.Start(nil))
	assert.IsType(t, &errortypes.InvalidState{}, unit.Resume())
	require.NoError(t, unit.Pause())
	assert.Equal(t, StatePaused, unit.State())
	assert.IsType(t, &errortypes.InvalidState{}, unit.Pause())
	require.NoError(t, unit.Resume())
	assert.Equal(t, StateActive, unit.State())
}

func TestOperationsAfterDestroy(t *testing.T) {
	env := newTestEnv()
	unit := NewBannerAdUnit(env.deps(), "config", adslot.Size{Width: 320, Height: 50})
	unit.Destroy()

	assert.IsType(t, &errortypes.InvalidState{}, unit.Start(nil))
	assert.IsType(t, &errortypes.InvalidState{}, unit.FetchDemand(nil))
	assert.IsType(t, &errortypes.InvalidState{}, unit.StopRefresh())
	assert.IsType(t, &errortypes.InvalidState{}, unit.Pause())
	assert.IsType(t, &errortypes.InvalidState{}, unit.Resume())

	assert.NoError(t, unit.InitAdConfig("other", adslot.Size{Width: 1, Height: 1}))
	assert.NoError(t, unit.SetRefreshInterval(60))
	unit.SetAdPosition(adslot.PositionPtr(adslot.PositionHeader))

	cfg := unit.Configuration()
	assert.Equal(t, "config", cfg.ConfigID())
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval())
	assert.Equal(t, adslot.PositionUndefined, cfg.Position())
	env.fetcher.AssertNotCalled(t, "Fetch", mock.Anything)
}

func TestStartRequiresConfiguration(t *testing.T) {
	env := newTestEnv()
	unit := NewBannerAdUnit(env.deps(), "", adslot.Size{Width: 320, Height: 50})
	assert.Equal(t, StateCreated, unit.State())

	assert.IsType(t, &errortypes.InvalidConfig{}, unit.Start(nil))

	require.NoError(t, unit.InitAdConfig("config", adslot.Size{Width: 320, Height: 50}))
	assert.Equal(t, StateReady, unit.State())
	assert.NoError(t, unit.Start(nil))
}

func TestStartWithoutFetcher(t *testing.T) {
	deps := newTestEnv().deps()
	deps.Fetcher = nil
	unit := NewBannerAdUnit(deps, "config", adslot.Size{Width: 320, Height: 50})

	assert.IsType(t, &errortypes.InvalidConfig{}, unit.Start(nil))
	assert.Equal(t, StateReady, unit.State())
}

func TestStartPropagatesSchedulerError(t *testing.T) {
	unit := NewBannerAdUnit(newTestEnv().deps(), "config", adslot.Size{Width: 320, Height: 50})
	scheduler := &schedulerMock{}
	scheduler.On("Start", mock.Anything, mock.Anything).Return(errors.New("no timer"))
	unit.scheduler = scheduler

	assert.Error(t, unit.Start(nil))
	assert.Equal(t, StateReady, unit.State())
}

func TestFetchDemandFetchesImmediately(t *testing.T) {
	env := newTestEnv()
	unit := NewBannerAdUnit(env.deps(), "config", adslot.Size{Width: 320, Height: 50})
	listener := &listenerRecorder{}

	require.NoError(t, unit.FetchDemand(listener.listen))
	assert.Equal(t, 1, env.fetcher.Dispatched())
	assert.Equal(t, StateActive, unit.State())

	require.True(t, env.fetcher.Complete(bidloader.Result{Response: &bidloader.Response{ID: "now"}}))
	require.Len(t, listener.all(), 1)
	assert.Equal(t, "now", listener.all()[0].Response.ID)
}

func TestFetchDemandWithInlineDeliveryAllowsReentrantStop(t *testing.T) {
	env := newTestEnv()
	fetcher := &inlineFetcher{}
	deps := env.deps()
	deps.Fetcher = fetcher
	unit := NewBannerAdUnit(deps, "config", adslot.Size{Width: 320, Height: 50})

	var stopErr error
	delivered := make(chan struct{})
	listener := func(result bidloader.Result) {
		stopErr = unit.StopRefresh()
		close(delivered)
	}

	done := make(chan error, 1)
	go func() { done <- unit.FetchDemand(listener) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("FetchDemand did not return")
	}
	<-delivered
	assert.NoError(t, stopErr)
	assert.Equal(t, StateReady, unit.State())
	assert.Equal(t, int32(1), fetcher.cancels.Load())
}

func TestSetRefreshIntervalHugeValueIsClampedNotRejected(t *testing.T) {
	env := newTestEnv()
	unit := NewBannerAdUnit(env.deps(), "config", adslot.Size{Width: 320, Height: 50})

	require.NoError(t, unit.SetRefreshInterval(math.MaxInt))
	assert.Equal(t, adslot.MaxRefreshInterval, unit.Configuration().RefreshInterval())

	assert.Equal(t, time.Duration(math.MaxInt64), secondsToDuration(math.MaxInt))
	assert.Equal(t, 90*time.Second, secondsToDuration(90))
}

func TestMediationReceivesWinningResponse(t *testing.T) {
	env := newTestEnv()
	mediation := &MediationUtilMock{}
	mediation.On("CanPerformRefresh").Return(true)
	mediation.On("SetResponseToLocalExtras", mock.Anything).Return()
	unit := newMediationBanner(env, mediation)
	listener := &listenerRecorder{}
	require.NoError(t, unit.Start(listener.listen))

	env.clock.Add(30 * time.Second)
	require.Eventually(t, func() bool { return env.fetcher.Dispatched() == 1 }, waitFor, tickFor)
	response := &bidloader.Response{ID: "resp", CacheID: "cache"}
	require.True(t, env.fetcher.Complete(bidloader.Result{Response: response}))

	mediation.AssertCalled(t, "SetResponseToLocalExtras", *response)
	assert.Len(t, listener.all(), 1)
}

func TestMediationFailureIsNotForwardedToExtras(t *testing.T) {
	env := newTestEnv()
	mediation := &MediationUtilMock{}
	mediation.On("CanPerformRefresh").Return(true)
	unit := newMediationBanner(env, mediation)
	require.NoError(t, unit.Start(nil))

	env.clock.Add(30 * time.Second)
	require.Eventually(t, func() bool { return env.fetcher.Dispatched() == 1 }, waitFor, tickFor)
	require.True(t, env.fetcher.Complete(bidloader.Result{Err: &errortypes.NoBids{Message: "none"}}))

	mediation.AssertNotCalled(t, "SetResponseToLocalExtras", mock.Anything)
}

func TestMediationCanVetoRefresh(t *testing.T) {
	env := newTestEnv()
	mediation := &MediationUtilMock{}
	mediation.On("CanPerformRefresh").Return(false)
	unit := NewMediationInterstitialAdUnit(env.deps(), "config", adslot.Size{Width: 320, Height: 480}, mediation)
	require.NoError(t, unit.Start(nil))

	env.clock.Add(30 * time.Second)
	assert.Eventually(t, func() bool {
		return env.counts.RefreshMeters[adslot.FormatInterstitial][metrics.TickSkippedGate].Count() == 1
	}, waitFor, tickFor)
	assert.Equal(t, 0, env.fetcher.Dispatched())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "destroyed", StateDestroyed.String())
}
