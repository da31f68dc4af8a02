package task

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries bounds total attempts for tasks created without an
// explicit retry budget.
const DefaultMaxRetries = 3

// TaskParams carries the payload handed to a task handler. The runner never
// inspects it; interpretation is entirely up to the handler.
type TaskParams struct {
	Data any
}

// Handler is the host-supplied function executed for a task. The context the
// runner passes is never cancelled: a timeout only stops the runner's wait,
// and shutdown never interrupts work already in flight.
type Handler func(ctx context.Context, params TaskParams) error

// Task represents one fire-and-forget unit of background work.
type Task struct {
	id           string
	handler      Handler
	params       TaskParams
	maxRetries   int
	timeoutAfter time.Duration

	// attempts counts the attempt about to run, so it starts at 1.
	// Mutated only under the owning runner's lock.
	attempts int
}

type taskSettings struct {
	name         string
	maxRetries   int
	timeoutAfter time.Duration
}

// TaskOption configures a Task at creation time.
type TaskOption func(*taskSettings)

// WithMaxRetries sets the bound on total attempts for the task.
func WithMaxRetries(n int) TaskOption {
	return func(s *taskSettings) {
		s.maxRetries = n
	}
}

// WithTimeout bounds a single attempt's execution time. Zero or negative
// means the runner waits for the handler indefinitely.
func WithTimeout(d time.Duration) TaskOption {
	return func(s *taskSettings) {
		s.timeoutAfter = d
	}
}

// WithName overrides the handler name used as the first segment of the task
// id. Useful when the handler is an anonymous function.
func WithName(name string) TaskOption {
	return func(s *taskSettings) {
		s.name = name
	}
}

// NewTask builds a fully configured task for handler, with the attempt
// counter starting at 1.
func NewTask(handler Handler, params TaskParams, opts ...TaskOption) *Task {
	settings := taskSettings{maxRetries: DefaultMaxRetries}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.name == "" {
		settings.name = handlerName(handler)
	}

	return &Task{
		id:           generateTaskID(settings.name),
		handler:      handler,
		params:       params,
		maxRetries:   settings.maxRetries,
		timeoutAfter: settings.timeoutAfter,
		attempts:     1,
	}
}

// ID returns the task's unique identifier.
func (t *Task) ID() string {
	return t.id
}

// Attempts returns how many attempts the task has been given so far,
// counting the one currently pending or running.
func (t *Task) Attempts() int {
	return t.attempts
}

// MaxRetries returns the bound on total attempts.
func (t *Task) MaxRetries() int {
	return t.maxRetries
}

// generateTaskID produces "<name>_<token>_<unix-ts>". The token guarantees
// uniqueness; the name and timestamp are there for eyeballing logs.
func generateTaskID(name string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%s_%d", name, token, time.Now().Unix())
}

// handlerName extracts a short name from the handler's function symbol.
// Underscores are stripped so the id keeps its three-part shape.
func handlerName(h Handler) string {
	name := runtime.FuncForPC(reflect.ValueOf(h).Pointer()).Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, "_", "")
	if name == "" {
		name = "task"
	}
	return name
}
