package task

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultRunInterval is the dispatch cadence used when none is configured.
const DefaultRunInterval = 250 * time.Millisecond

// Driver owns the dispatch cadence the runner deliberately does not have:
// it calls RunTasks on a fixed interval until stopped. The runner stays
// purely reactive, so hosts with their own scheduling can skip the Driver
// and call RunTasks themselves.
type Driver struct {
	runner   *Runner
	interval time.Duration
	logger   *slog.Logger

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDriver creates a driver that dispatches r's queue every interval.
func NewDriver(r *Runner, interval time.Duration, logger *slog.Logger) *Driver {
	if interval <= 0 {
		interval = DefaultRunInterval
	}

	return &Driver{
		runner:   r,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the dispatch loop on its own goroutine. Calling Start more
// than once has no further effect.
func (d *Driver) Start() {
	d.startOnce.Do(func() {
		d.logger.Info("dispatch driver started", "interval", d.interval)
		go d.loop()
	})
}

func (d *Driver) loop() {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.runner.RunTasks()
		}
	}
}

// Stop halts the cadence, then drains the runner bounded by ctx. It returns
// the runner's drain result; once ctx expires any still-running handlers
// continue on their own.
func (d *Driver) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		close(d.stop)
		<-d.done
		d.logger.Info("dispatch driver stopped")
	})

	return d.runner.Shutdown(ctx)
}
