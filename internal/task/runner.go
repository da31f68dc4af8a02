package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// Configuration errors surfaced at construction. These are the only errors
// the runner ever lets escape; per-task failures stay contained and are
// reported through the logger.
var (
	ErrMaxRunningNotInteger = errors.New("max_running_tasks must be an integer")
	ErrMaxRunningNegative   = errors.New("max_running_tasks must be minimum 0")
)

// errHandlerTimeout marks an attempt the runner stopped waiting for. It
// drives the retry path and never leaves the package.
var errHandlerTimeout = errors.New("handler timed out")

// ParseMaxRunningTasks coerces a raw configuration value into the
// concurrency cap, distinguishing values that are not integers from values
// that are negative. Numeric strings are accepted because that is how
// environment variables arrive; fractional or unparseable values are not.
func ParseMaxRunningTasks(v any) (int, error) {
	switch n := v.(type) {
	case nil, bool:
		return 0, ErrMaxRunningNotInteger
	case float64:
		if n != math.Trunc(n) {
			return 0, ErrMaxRunningNotInteger
		}
	case float32:
		if float64(n) != math.Trunc(float64(n)) {
			return 0, ErrMaxRunningNotInteger
		}
	}

	m, err := cast.ToIntE(v)
	if err != nil {
		return 0, ErrMaxRunningNotInteger
	}
	if m < 0 {
		return 0, ErrMaxRunningNegative
	}
	return m, nil
}

// RunnerConfig holds configuration for the runner.
type RunnerConfig struct {
	// MaxRunningTasks caps how many tasks may execute concurrently. Zero is
	// valid and means nothing is ever dispatched.
	MaxRunningTasks int
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		MaxRunningTasks: 10,
	}
}

// Runner is the background task engine. It admits submitted tasks into an
// unbounded FIFO queue, launches at most MaxRunningTasks of them
// concurrently per dispatch cycle, retries tasks that time out (bounded by
// their attempt budget), drops tasks whose handlers fail, and drains
// gracefully on shutdown.
//
// A Runner is constructed explicitly and owned by the host; there is no
// package-level instance.
type Runner struct {
	mu              sync.Mutex
	registry        map[string]*Task
	queue           []string
	onGoing         int
	shuttingDown    bool
	maxRunningTasks int

	// drained is closed once shuttingDown is set and onGoing reaches zero.
	drained     chan struct{}
	drainClosed bool

	logger *slog.Logger
}

// NewRunner creates a new Runner. It fails fast if the concurrency cap is
// negative; no task is ever admitted to a misconfigured runner.
func NewRunner(config RunnerConfig, logger *slog.Logger) (*Runner, error) {
	if config.MaxRunningTasks < 0 {
		return nil, ErrMaxRunningNegative
	}

	return &Runner{
		registry:        make(map[string]*Task),
		maxRunningTasks: config.MaxRunningTasks,
		drained:         make(chan struct{}),
		logger:          logger,
	}, nil
}

// AddTasks admits tasks into the registry and the pending queue. Tasks
// submitted while the runner is shutting down are dropped silently.
// Admission never blocks and is not bounded by queue length; only execution
// is capped.
func (r *Runner) AddTasks(tasks ...*Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shuttingDown {
		r.logger.Debug("discarding tasks submitted during shutdown",
			"count", len(tasks))
		return
	}

	for _, t := range tasks {
		if t == nil {
			continue
		}
		r.registry[t.id] = t
		r.queue = append(r.queue, t.id)
		r.logger.Debug("task admitted",
			"task_id", t.id,
			"queue_len", len(r.queue))
	}
}

// RunTasks performs one dispatch cycle: it launches as many queued tasks as
// spare capacity allows and returns once the launches are initiated, without
// waiting for any of them to finish. The host is expected to call it on a
// fixed interval; see Driver.
func (r *Runner) RunTasks() {
	r.mu.Lock()
	ids := r.tasksToProcessLocked()
	if len(ids) > 0 {
		r.queue = r.queue[len(ids):]
		// Reserve the slots before any task body runs so the counter
		// reflects dispatch decisions immediately.
		r.onGoing += len(ids)
	}
	r.mu.Unlock()

	for _, id := range ids {
		go r.runTask(id)
	}
}

// tasksToProcessLocked computes which queued ids are eligible this cycle,
// bounded by the spare capacity. It mutates nothing; the caller holds mu.
func (r *Runner) tasksToProcessLocked() []string {
	if r.shuttingDown {
		return nil
	}
	spare := r.maxRunningTasks - r.onGoing
	if spare <= 0 || len(r.queue) == 0 {
		return nil
	}
	if spare > len(r.queue) {
		spare = len(r.queue)
	}

	ids := make([]string, spare)
	copy(ids, r.queue[:spare])
	return ids
}

// runTask executes a single dispatched task and applies the outcome to the
// runner's bookkeeping. It runs on its own goroutine and never lets a
// handler failure escape.
func (r *Runner) runTask(id string) {
	r.mu.Lock()
	t, ok := r.registry[id]
	r.mu.Unlock()

	if !ok {
		// The id was dispatched but the task is gone; release the slot.
		r.mu.Lock()
		r.onGoing--
		r.signalDrainedLocked()
		r.mu.Unlock()
		return
	}

	err := r.execute(t)

	switch {
	case err == nil:
		r.mu.Lock()
		delete(r.registry, id)
		r.onGoing--
		r.signalDrainedLocked()
		r.mu.Unlock()
		r.logger.Debug("task completed",
			"task_id", id,
			"attempts", t.attempts)

	case errors.Is(err, errHandlerTimeout):
		r.mu.Lock()
		r.onGoing--
		requeued := r.putBackToQueueIfAllowedLocked(id)
		r.signalDrainedLocked()
		r.mu.Unlock()
		r.logger.Warn("task timed out",
			"task_id", id,
			"timeout_after", t.timeoutAfter,
			"requeued", requeued)

	default:
		// Handler errors are never retried, regardless of the attempt
		// budget. The task is dropped and the failure only reaches the
		// host through this log line.
		r.mu.Lock()
		delete(r.registry, id)
		r.onGoing--
		r.signalDrainedLocked()
		r.mu.Unlock()
		r.logger.Error("task execution failed",
			"task_id", id,
			"attempts", t.attempts,
			"error", err)
	}
}

// execute runs the handler, racing it against the task's timeout when one is
// set. A handler that outlives its timeout keeps running on its own
// goroutine; only the runner's wait is abandoned, and any side effects the
// handler produces afterwards are its own business.
func (r *Runner) execute(t *Task) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("handler panic: %v", rec)
			}
		}()
		done <- t.handler(context.Background(), t.params)
	}()

	if t.timeoutAfter <= 0 {
		return <-done
	}

	timer := time.NewTimer(t.timeoutAfter)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return errHandlerTimeout
	}
}

// putBackToQueueIfAllowedLocked decides whether a timed-out task gets
// another attempt. The caller holds mu.
//
// While shutting down the task is left in the registry without being
// rescheduled; it will never run again, and shutdown does not wait on it.
func (r *Runner) putBackToQueueIfAllowedLocked(id string) bool {
	t, ok := r.registry[id]
	if !ok {
		return false
	}
	if r.shuttingDown {
		return false
	}
	if t.attempts >= t.maxRetries {
		delete(r.registry, id)
		r.logger.Error("task dropped, retries exhausted",
			"task_id", id,
			"attempts", t.attempts,
			"max_retries", t.maxRetries)
		return false
	}

	t.attempts++
	r.queue = append(r.queue, id)
	return true
}

// cleanQueueLocked drops every pending id. Registry entries and the running
// counter are untouched. The caller holds mu.
func (r *Runner) cleanQueueLocked() {
	r.queue = nil
}

// signalDrainedLocked closes the drain channel the first time the runner is
// both shutting down and idle. The caller holds mu.
func (r *Runner) signalDrainedLocked() {
	if r.shuttingDown && r.onGoing == 0 && !r.drainClosed {
		r.drainClosed = true
		close(r.drained)
	}
}

// Shutdown stops new admissions and retries, drops all pending tasks, and
// waits for in-flight work to finish until ctx is done. It is a best-effort
// graceful drain: handlers still running when the deadline passes are not
// interrupted and finish on their own.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.shuttingDown = true
	r.cleanQueueLocked()
	r.signalDrainedLocked()
	running := r.onGoing
	r.mu.Unlock()

	r.logger.Info("runner shutting down", "running", running)

	select {
	case <-r.drained:
		r.logger.Info("runner drained")
		return nil
	case <-ctx.Done():
		r.logger.Warn("shutdown deadline reached with tasks still running",
			"running", r.Running())
		return ctx.Err()
	}
}

// Pending returns the number of tasks waiting in the queue.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Running returns the number of tasks currently executing.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onGoing
}
