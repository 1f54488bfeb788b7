// Package coroutine defines the resumable computation protocol driven by a
// saga Execution, and a Generator implementing it on top of iter.Pull.
//
// A computation is written as an ordinary Go function that suspends by
// calling Co.Yield. The driver resumes it with the resolved value, or
// injects a failure, in which case Yield returns the error and the
// function may recover from it like a try/catch around the yield:
//
//	gen := coroutine.Go(func(co *coroutine.Co) (any, error) {
//	    v, err := co.Yield(saga.Delay(10*time.Millisecond, "tick"))
//	    if err != nil {
//	        return nil, err
//	    }
//	    return v, nil
//	})
//
// The body and its driver never run at the same time: the driver is blocked
// inside Resume while the body runs, and the body is blocked inside Yield
// while the driver runs.
package coroutine

import (
	"errors"
	"fmt"
	"iter"
	"runtime/debug"
)

// StepResult is the outcome of one resumption: either the computation
// yielded Value and is suspended, or it finished with Value.
type StepResult struct {
	Value any
	Done  bool
}

// Yielded builds a suspended StepResult.
func Yielded(v any) StepResult { return StepResult{Value: v} }

// Returned builds a final StepResult.
func Returned(v any) StepResult { return StepResult{Value: v, Done: true} }

// Resumable is a computation that can be stepped forward with a value, or
// with an injected failure. A non-nil error means the computation failed
// while running this step and is finished.
type Resumable interface {
	Resume(value any) (StepResult, error)
	ResumeWithError(err error) (StepResult, error)
}

// Stopper is implemented by resumables that hold resources while
// suspended. Stop abandons the computation; it must not be called while a
// step is running.
type Stopper interface {
	Stop()
}

// ErrFinished is returned when a finished computation is resumed again.
var ErrFinished = errors.New("coroutine: resumed after completion")

// PanicError carries a panic recovered from a computation body.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("coroutine: panic in computation: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Body is the function run by a Generator.
type Body func(co *Co) (any, error)

// abandoned unwinds a body whose generator was stopped while suspended.
type abandoned struct{}

// Generator is a Resumable backed by a pull iterator.
//
// The value passed to the first Resume is discarded, like the argument of
// the first next() of a generator: there is no pending Yield to receive it.
type Generator struct {
	next func() (any, bool)
	stop func()

	started  bool
	finished bool
	stopped  bool

	sent    any
	sentErr error

	result any
	err    error
}

// Go wraps body into a Generator. The body does not start until the first
// Resume.
func Go(body Body) *Generator {
	g := &Generator{}
	g.next, g.stop = iter.Pull(func(yield func(any) bool) {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(abandoned); ok {
					return
				}
				g.err = &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		g.result, g.err = body(&Co{g: g, yield: yield})
	})
	return g
}

func (g *Generator) Resume(value any) (StepResult, error) {
	return g.step(value, nil)
}

func (g *Generator) ResumeWithError(err error) (StepResult, error) {
	if !g.started && !g.finished {
		// Nothing can catch a failure injected before the first step.
		g.Stop()
		return Returned(nil), err
	}
	return g.step(nil, err)
}

func (g *Generator) step(value any, err error) (StepResult, error) {
	if g.finished {
		return Returned(nil), ErrFinished
	}
	if g.started {
		g.sent, g.sentErr = value, err
	}
	g.started = true

	out, ok := g.next()
	if ok {
		return Yielded(out), nil
	}
	g.finished = true
	return Returned(g.result), g.err
}

// Stop abandons the body. A suspended body unwinds from its pending Yield,
// running its deferred calls. Stop is idempotent.
func (g *Generator) Stop() {
	if g.stopped {
		return
	}
	g.stopped = true
	g.finished = true
	g.stop()
}

// Finished reports whether the body has returned, failed or been stopped.
func (g *Generator) Finished() bool {
	return g.finished
}

// Co is the handle a body uses to suspend itself.
type Co struct {
	g     *Generator
	yield func(any) bool
}

// Yield suspends the body on v. It returns the value v resolved to, or the
// failure injected by the driver.
func (co *Co) Yield(v any) (any, error) {
	if co.g.stopped || !co.yield(v) {
		panic(abandoned{})
	}
	sent, err := co.g.sent, co.g.sentErr
	co.g.sent, co.g.sentErr = nil, nil
	return sent, err
}

// StepFunc adapts an explicit state machine to Resumable. It receives
// either the resolved value or the injected failure of the previous step.
type StepFunc func(value any, err error) (StepResult, error)

func (fn StepFunc) Resume(value any) (StepResult, error) { return fn(value, nil) }

func (fn StepFunc) ResumeWithError(err error) (StepResult, error) { return fn(nil, err) }
