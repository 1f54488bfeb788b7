package saga

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Event is a lifecycle notification of an Execution.
type Event int

const (
	// EventEnd fires once an execution has reached a terminal status and
	// all of its children have ended.
	EventEnd Event = iota
	// EventCancel fires when an execution is cancelled, after its
	// children were cancelled.
	EventCancel

	numEvents
)

func (ev Event) String() string {
	switch ev {
	case EventEnd:
		return "end"
	case EventCancel:
		return "cancel"
	default:
		return fmt.Sprintf("Event(%d)", int(ev))
	}
}

func (ev Event) valid() bool {
	return ev >= 0 && ev < numEvents
}

type listener struct {
	fn      func()
	removed atomic.Bool
}

// listeners is an observer registry keyed by Event. Callbacks fire in
// registration order; a callback removed while a trigger is in progress
// is skipped.
type listeners struct {
	logger *zap.Logger

	mu      sync.Mutex
	byEvent [numEvents][]*listener
}

func newListeners(logger *zap.Logger) *listeners {
	return &listeners{logger: logger}
}

func (ls *listeners) add(ev Event, fn func()) func() {
	entry := &listener{fn: fn}

	ls.mu.Lock()
	ls.byEvent[ev] = append(ls.byEvent[ev], entry)
	ls.mu.Unlock()

	return func() {
		if entry.removed.Swap(true) {
			return
		}
		ls.mu.Lock()
		ls.byEvent[ev] = slices.DeleteFunc(ls.byEvent[ev], func(l *listener) bool {
			return l == entry
		})
		ls.mu.Unlock()
	}
}

// trigger calls every live listener of ev. Panicking listeners do not stop
// the others; their panics are returned together.
func (ls *listeners) trigger(ev Event) error {
	ls.mu.Lock()
	snapshot := slices.Clone(ls.byEvent[ev])
	ls.mu.Unlock()

	var errs error
	for _, entry := range snapshot {
		if entry.removed.Load() {
			continue
		}
		errs = multierr.Append(errs, call(entry.fn))
	}
	if errs != nil {
		ls.logger.Error("listener panicked", zap.Stringer("event", ev), zap.Error(errs))
	}
	return errs
}

func call(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in listener: %v", r)
		}
	}()
	fn()
	return nil
}

func (ls *listeners) count(ev Event) int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.byEvent[ev])
}
