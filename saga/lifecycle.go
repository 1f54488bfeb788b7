package saga

import (
	"slices"
	"time"

	"github.com/on-the-ground/saga_ive_go/coroutine"
	"go.uber.org/zap"
)

// start registers e and begins resolving input. Loop only.
func (e *Execution) start(input any) {
	e.sched.registry.insert(e)
	e.Resolve(input).Then(func(v any, err error) {
		if err != nil {
			e.reject(err)
			return
		}
		e.fulfil(v)
	})
}

// Spawn creates a child of e driving input. The child is registered before
// its first step runs; once it ends it detaches itself and, if e is no
// longer running, lets e finish. Loop only.
func (e *Execution) Spawn(input any) *Execution {
	child := newExecution(e.sched, e)
	e.children = append(e.children, child)
	child.Listen(EventEnd, func() {
		e.removeChild(child)
		if !e.Running() && !e.cancelling {
			e.end()
		}
	})
	e.logger.Sugar().Debugf("spawned child execution: %s", child.id)
	child.start(input)
	return child
}

func (e *Execution) removeChild(child *Execution) {
	e.children = slices.DeleteFunc(e.children, func(c *Execution) bool {
		return c == child
	})
}

// end finishes e once it is terminal and has no children left: it settles
// the completion (unless e was cancelled) and fires EventEnd. It runs its
// body at most once.
func (e *Execution) end() {
	if e.ended || e.Running() || len(e.children) > 0 {
		return
	}
	e.ended = true

	switch e.Status() {
	case StatusResolved:
		e.completion.Resolve(e.result)
	case StatusRejected:
		e.completion.Reject(e.err)
	case StatusCancelled:
		// the completion stays pending
	}

	e.endedAt.Store(time.Now().UnixNano())
	close(e.done)
	e.sched.registry.finish(e)
	e.logger.Sugar().Debugf("execution ended: status: %v, span: %v", e.Status(), e.Span().Duration())
	e.listeners.trigger(EventEnd)
}

// cancel marks a running e cancelled, cancels its children, fires
// EventCancel and ends it. An e that already left running but still waits
// for children passes the cancellation down so the subtree can finish.
func (e *Execution) cancel() {
	if e.ended {
		return
	}
	if !e.transition(StatusCancelled, nil) {
		e.free()
		return
	}
	e.logger.Debug("execution cancelled")
	e.stopDrivers()
	e.cancelling = true
	e.free()
	e.listeners.trigger(EventCancel)
	e.cancelling = false
	e.end()
}

// fulfil resolves a running e with v.
func (e *Execution) fulfil(v any) {
	if !e.transition(StatusResolved, func() { e.result = v }) {
		return
	}
	e.stopDrivers()
	e.end()
}

// reject rejects a running e with err, cancelling its children first.
func (e *Execution) reject(err error) {
	if !e.transition(StatusRejected, func() { e.err = err }) {
		return
	}
	e.logger.Debug("execution rejected", zap.Error(err))
	e.stopDrivers()
	e.free()
	e.end()
}

// transition moves a running e to status to, applies set, then publishes
// the new snapshot, so registry readers never see the status without its
// outcome.
func (e *Execution) transition(to Status, set func()) bool {
	if !e.status.CompareAndSwap(int32(StatusRunning), int32(to)) {
		return false
	}
	if set != nil {
		set()
	}
	e.sched.registry.update(e)
	return true
}

// free cancels every current child. Children detach themselves while being
// cancelled, hence the snapshot.
func (e *Execution) free() {
	for _, child := range slices.Clone(e.children) {
		child.cancel()
	}
}

// stopDrivers abandons the computations e was still driving. The stop is
// posted so it never runs inside the step that made e leave running.
func (e *Execution) stopDrivers() {
	if len(e.drivers) == 0 {
		return
	}
	stoppers := make([]coroutine.Stopper, 0, len(e.drivers))
	for d := range e.drivers {
		if s, ok := d.r.(coroutine.Stopper); ok {
			stoppers = append(stoppers, s)
		}
	}
	clear(e.drivers)
	e.sched.Post(func() {
		for _, s := range stoppers {
			s.Stop()
		}
	})
}

// abandon finishes an execution that could never be started because the
// loop is gone.
func (e *Execution) abandon(err error) {
	e.status.Store(int32(StatusRejected))
	e.err = err
	e.ended = true
	e.endedAt.Store(time.Now().UnixNano())
	e.completion.Reject(err)
	close(e.done)
}
