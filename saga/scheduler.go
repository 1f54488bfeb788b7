package saga

import (
	"errors"
	"fmt"
	"sync"

	"github.com/on-the-ground/saga_ive_go/future"
	"go.uber.org/zap"
)

// ErrSchedulerClosed rejects executions started on a closed Scheduler.
var ErrSchedulerClosed = errors.New("saga: scheduler closed")

var _ future.Executor = (*Scheduler)(nil)

// Scheduler owns the single-threaded loop every Execution runs on.
//
// Tasks posted to the loop run one at a time, in posting order. Execution
// state is only ever touched from the loop, so none of it is locked.
type Scheduler struct {
	cfg      Config
	logger   *zap.Logger
	registry *registry

	mu      sync.Mutex
	queue   []func()
	closing bool
	stopped bool
	wake    chan struct{}
	done    chan struct{}

	closeOnce sync.Once

	// loop only
	roots map[*Execution]struct{}
}

// NewScheduler starts a loop goroutine and returns its Scheduler.
// Close must be called to release it.
func NewScheduler(opts ...Option) (*Scheduler, error) {
	cfg := NewConfig(opts...)
	reg, err := newRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution registry: %w", err)
	}

	s := &Scheduler{
		cfg:      cfg,
		logger:   cfg.Logger,
		registry: reg,
		queue:    make([]func(), 0, cfg.QueueCapacity),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		roots:    make(map[*Execution]struct{}),
	}

	ready := make(chan struct{})
	go s.loop(ready)
	<-ready

	s.logger.Sugar().Debugf("started scheduler: queueCapacity: %d, retention: %d", cfg.QueueCapacity, cfg.Retention)
	return s, nil
}

// Logger returns the scheduler's logger.
func (s *Scheduler) Logger() *zap.Logger {
	return s.logger
}

// Post enqueues task onto the loop. It never blocks. Tasks posted after the
// loop has stopped are dropped.
func (s *Scheduler) Post(task func()) {
	if !s.post(task) {
		s.logger.Debug("dropped task posted to a stopped scheduler")
	}
}

func (s *Scheduler) post(task func()) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Scheduler) loop(ready chan struct{}) {
	defer close(s.done)
	close(ready)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 {
			if s.closing {
				s.stopped = true
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			<-s.wake
			s.mu.Lock()
		}
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.run(task)
	}
}

func (s *Scheduler) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in scheduler task", zap.Any("error", r), zap.Stack("stack"))
		}
	}()
	task()
}

// Run creates a root Execution driving input and returns it at once. The
// first step runs on the loop, never on the caller's goroutine.
//
// On a closed Scheduler the returned Execution is already rejected with
// ErrSchedulerClosed.
func (s *Scheduler) Run(input any) *Execution {
	e := newExecution(s, nil)
	posted := s.post(func() {
		s.mu.Lock()
		closing := s.closing
		s.mu.Unlock()
		if closing {
			s.registry.insert(e)
			e.reject(ErrSchedulerClosed)
			return
		}

		s.roots[e] = struct{}{}
		e.Listen(EventEnd, func() {
			delete(s.roots, e)
		})
		e.start(input)
	})
	if !posted {
		e.abandon(ErrSchedulerClosed)
	}
	return e
}

// Immediate runs input and returns only its completion.
func (s *Scheduler) Immediate(input any) *future.Future {
	return s.Run(input).Completion()
}

// Close cancels every live root execution, lets the loop drain the work
// this causes, then stops the loop. It blocks until the loop has stopped
// and must not be called from the loop itself. Close is idempotent.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		posted := s.post(func() {
			for root := range s.roots {
				root.cancel()
			}
			s.mu.Lock()
			s.closing = true
			s.mu.Unlock()
		})
		if !posted {
			return
		}
		<-s.done
		s.registry.close()
		if err := s.logger.Sync(); err != nil {
			s.logger.Debug("failed to sync logger", zap.Error(err))
		}
	})
}

// Lookup returns a snapshot of the execution with the given id, live or
// recently finished.
func (s *Scheduler) Lookup(id string) (Snapshot, bool) {
	return s.registry.lookup(id)
}

// Live returns snapshots of every execution that has not ended yet.
func (s *Scheduler) Live() []Snapshot {
	return s.registry.live()
}

// WithStatus returns snapshots of live executions currently in status.
func (s *Scheduler) WithStatus(status Status) []Snapshot {
	return s.registry.withStatus(status)
}

// Children returns snapshots of the live children of the execution with
// the given id.
func (s *Scheduler) Children(id string) []Snapshot {
	return s.registry.children(id)
}
