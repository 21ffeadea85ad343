package task

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prebid/prebid-mobile-go/logger"
)

type Runner interface {
	Run() error
}

// TickerTask runs a Runner on a fixed period until stopped.
type TickerTask struct {
	interval       time.Duration
	runner         Runner
	skipInitialRun bool
	clock          clock.Clock
	done           chan struct{}
	stopOnce       sync.Once
}

func NewTickerTask(interval time.Duration, runner Runner) *TickerTask {
	return NewTickerTaskWithOptions(Options{
		Interval: interval,
		Runner:   runner,
	})
}

type Options struct {
	Interval       time.Duration
	Runner         Runner
	SkipInitialRun bool
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

func NewTickerTaskWithOptions(opt Options) *TickerTask {
	if opt.Clock == nil {
		opt.Clock = clock.New()
	}
	return &TickerTask{
		interval:       opt.Interval,
		runner:         opt.Runner,
		skipInitialRun: opt.SkipInitialRun,
		clock:          opt.Clock,
		done:           make(chan struct{}),
	}
}

// Start runs the task immediately and then schedules the task to run periodically
// if a positive interval has been specified.
func (t *TickerTask) Start() {
	if !t.skipInitialRun {
		t.run()
	}

	if t.interval > 0 {
		ticker := t.clock.Ticker(t.interval)
		go t.runRecurring(ticker)
	}
}

// Stop stops the periodic task. It may be called more than once.
func (t *TickerTask) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

// Done exports readonly done channel
func (t *TickerTask) Done() <-chan struct{} {
	return t.done
}

func (t *TickerTask) runRecurring(ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			select {
			case <-t.done:
				return
			default:
			}
			t.run()
		case <-t.done:
			return
		}
	}
}

func (t *TickerTask) run() {
	if err := t.runner.Run(); err != nil {
		logger.Warnf("periodic task failed: %v", err)
	}
}
