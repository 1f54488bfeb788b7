package saga

import (
	"runtime/debug"

	"github.com/on-the-ground/saga_ive_go/coroutine"
	"github.com/on-the-ground/saga_ive_go/future"
)

// Seq is an ordered collection of yieldables. It resolves to a []any of
// the items' values in input order; the first failing item fails the
// whole Seq, and the other items keep running.
type Seq []any

// Thunk defers building a yieldable until it is resolved.
type Thunk func() any

// Resolve interprets input and returns a future of its value:
//
//   - nil resolves to nil;
//   - an *Execution resolves to its completion, without tying its
//     lifetime to e;
//   - an Effect resolves to whatever its handler produces;
//   - a coroutine.Resumable is driven step by step and resolves to its
//     final value;
//   - a Seq or []any resolves every item, initiated in order, and joins
//     them;
//   - a Thunk or func() any is called and its result resolved;
//   - a *future.Future resolves to its own settlement;
//   - any other value resolves to itself.
//
// Loop only.
func (e *Execution) Resolve(input any) (f *future.Future) {
	defer func() {
		if r := recover(); r != nil {
			f = future.Rejected(e.sched, &coroutine.PanicError{Value: r, Stack: debug.Stack()})
		}
	}()

	switch v := input.(type) {
	case nil:
		return future.Resolved(e.sched, nil)
	case *Execution:
		if v == nil {
			return future.Resolved(e.sched, nil)
		}
		return e.adopt(v.completion)
	case Effect:
		return e.perform(v)
	case coroutine.Resumable:
		return e.drive(v)
	case Seq:
		return e.all(v)
	case []any:
		return e.all(v)
	case Thunk:
		return e.Resolve(v())
	case func() any:
		return e.Resolve(v())
	case *future.Future:
		if v == nil {
			return future.Resolved(e.sched, nil)
		}
		return e.adopt(v)
	default:
		return future.Resolved(e.sched, v)
	}
}

func (e *Execution) perform(eff Effect) *future.Future {
	if eff.handler == nil {
		return future.Resolved(e.sched, nil)
	}
	out, err := eff.handler(e, eff.payload)
	if err != nil {
		return future.Rejected(e.sched, err)
	}
	if f, ok := out.(*future.Future); ok && f != nil {
		return e.adopt(f)
	}
	return future.Resolved(e.sched, out)
}

// adopt returns f if its callbacks already run on e's loop, or a future of
// the loop following f otherwise.
func (e *Execution) adopt(f *future.Future) *future.Future {
	if s, ok := f.Executor().(*Scheduler); ok && s == e.sched {
		return f
	}
	out := future.New(e.sched)
	future.Follow(out, f)
	return out
}

func (e *Execution) all(items []any) *future.Future {
	fs := make([]*future.Future, len(items))
	for i, item := range items {
		fs[i] = e.Resolve(item)
	}
	return future.All(e.sched, fs)
}

// driver tracks one computation being driven by an execution.
type driver struct {
	r coroutine.Resumable
}

// drive runs the step loop of r: resolve what it yielded, then resume it
// with the value or inject the failure. Once r is done, or e has left
// running, the last resolution is the outcome instead.
func (e *Execution) drive(r coroutine.Resumable) *future.Future {
	out := future.New(e.sched)
	d := &driver{r: r}
	e.drivers[d] = struct{}{}

	finish := func(v any, err error) {
		delete(e.drivers, d)
		if err != nil {
			out.Reject(err)
			return
		}
		out.Resolve(v)
	}

	var advance func(step coroutine.StepResult, err error)
	advance = func(step coroutine.StepResult, err error) {
		if err != nil {
			finish(nil, err)
			return
		}
		e.Resolve(step.Value).Then(func(v any, rerr error) {
			if step.Done || !e.Running() {
				finish(v, rerr)
				return
			}
			if rerr != nil {
				advance(resume(func() (coroutine.StepResult, error) {
					return r.ResumeWithError(rerr)
				}))
				return
			}
			advance(resume(func() (coroutine.StepResult, error) {
				return r.Resume(v)
			}))
		})
	}

	advance(resume(func() (coroutine.StepResult, error) {
		return r.Resume(nil)
	}))
	return out
}

// resume runs one step, turning a panic of a hand-written Resumable into a
// failure of that step.
func resume(step func() (coroutine.StepResult, error)) (res coroutine.StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = coroutine.Returned(nil)
			err = &coroutine.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return step()
}
