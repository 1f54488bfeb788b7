package saga

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/on-the-ground/saga_ive_go/future"
	"github.com/rickb777/date/v2/timespan"
	"go.uber.org/zap"
)

// Status is the state of an Execution. Running is the only non-terminal
// status; an Execution leaves it exactly once.
type Status int32

const (
	StatusRunning Status = iota
	StatusResolved
	StatusRejected
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusResolved:
		return "resolved"
	case StatusRejected:
		return "rejected"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// TimeSpan is the lifetime of an execution.
type TimeSpan = timespan.TimeSpan

// Execution drives one computation and owns the executions it spawns.
//
// Its completion is fulfilled or rejected once the execution resolves or
// rejects and every child has ended. A cancelled execution never settles
// its completion.
//
// Methods documented as loop-only must be called from the scheduler loop,
// that is from effect handlers or from future callbacks.
type Execution struct {
	id     uuid.UUID
	sched  *Scheduler
	parent *Execution
	logger *zap.Logger

	status  atomic.Int32
	started time.Time
	endedAt atomic.Int64
	done    chan struct{}

	completion *future.Future
	listeners  *listeners

	// loop only
	children []*Execution
	result   any
	err      error
	drivers  map[*driver]struct{}
	ended    bool

	// set while cancel fires EventCancel, so children ending meanwhile
	// do not end e first
	cancelling bool
}

func newExecution(s *Scheduler, parent *Execution) *Execution {
	id := uuid.New()
	fields := []zap.Field{zap.String("execution", id.String())}
	if parent != nil {
		fields = append(fields, zap.String("parent", parent.id.String()))
	}
	logger := s.logger.With(fields...)
	return &Execution{
		id:         id,
		sched:      s,
		parent:     parent,
		logger:     logger,
		started:    time.Now(),
		done:       make(chan struct{}),
		completion: future.New(s),
		listeners:  newListeners(logger),
		drivers:    make(map[*driver]struct{}),
	}
}

// ID returns the unique id of e.
func (e *Execution) ID() string {
	return e.id.String()
}

// Parent returns the execution that spawned e, or nil for a root.
func (e *Execution) Parent() *Execution {
	return e.parent
}

// Scheduler returns the scheduler e runs on.
func (e *Execution) Scheduler() *Scheduler {
	return e.sched
}

// Logger returns the scheduler's logger annotated with e's id.
func (e *Execution) Logger() *zap.Logger {
	return e.logger
}

// Completion returns the future settled with e's final result or error.
// It stays pending forever if e is cancelled.
func (e *Execution) Completion() *future.Future {
	return e.completion
}

// Done returns a channel closed once e has ended, whatever its status.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Status returns the current status of e. It is safe from any goroutine.
func (e *Execution) Status() Status {
	return Status(e.status.Load())
}

// Running, Resolved, Rejected and Cancelled report whether e is currently in
// the matching status.
func (e *Execution) Running() bool   { return e.Status() == StatusRunning }
func (e *Execution) Resolved() bool  { return e.Status() == StatusResolved }
func (e *Execution) Rejected() bool  { return e.Status() == StatusRejected }
func (e *Execution) Cancelled() bool { return e.Status() == StatusCancelled }

// Span returns the lifetime of e so far; it is open-ended until e ends.
func (e *Execution) Span() TimeSpan {
	end := time.Now()
	if nanos := e.endedAt.Load(); nanos != 0 {
		end = time.Unix(0, nanos)
	}
	return timespan.BetweenTimes(e.started, end)
}

// Cancel requests the cooperative shutdown of e and its whole live
// subtree. The request is carried out on the loop; Cancel is safe from
// any goroutine, including from inside a running computation.
func (e *Execution) Cancel() {
	e.sched.Post(e.cancel)
}

// Listen registers fn for ev and returns a function removing it. Listen is
// safe from any goroutine; listeners run on the loop. An event outside
// EventEnd and EventCancel is a programmer error and panics.
func (e *Execution) Listen(ev Event, fn func()) (unsubscribe func()) {
	if !ev.valid() {
		panic(fmt.Sprintf("saga: Listen(%v) is not a valid event", ev))
	}
	if fn == nil {
		return func() {}
	}
	return e.listeners.add(ev, fn)
}

func (e *Execution) String() string {
	return fmt.Sprintf("Execution(%s, %s)", e.id, e.Status())
}
