package task

import (
	"context"
	"runtime/debug"

	"github.com/on-the-ground/saga_ive_go/coroutine"
	"github.com/on-the-ground/saga_ive_go/future"
	"github.com/on-the-ground/saga_ive_go/saga"
)

// Func is blocking work run off the scheduler loop. Its context is
// cancelled once the execution that yielded it is cancelled or ends.
type Func func(ctx context.Context) (any, error)

var goEffect = saga.Define("task", func(e *saga.Execution, fn Func) (any, error) {
	return submit(e, func(ctx context.Context, settle func(any, error)) error {
		go func() {
			settle(run(ctx, fn))
		}()
		return nil
	})
})

// Go runs fn in its own goroutine and resolves to its result.
func Go(fn Func) saga.Effect {
	return goEffect(fn)
}

// submit hands work to start and returns a future settled by it. The
// work's context is tied to e's lifetime.
func submit(e *saga.Execution, start func(ctx context.Context, settle func(any, error)) error) (*future.Future, error) {
	ctx, cancel := context.WithCancel(context.Background())
	unsubscribeCancel := e.Listen(saga.EventCancel, cancel)
	unsubscribeEnd := e.Listen(saga.EventEnd, cancel)
	release := func() {
		unsubscribeCancel()
		unsubscribeEnd()
		cancel()
	}

	out := future.New(e.Scheduler())
	settle := func(v any, err error) {
		if err != nil {
			out.Reject(err)
			return
		}
		out.Resolve(v)
	}
	if err := start(ctx, settle); err != nil {
		release()
		return nil, err
	}
	out.Then(func(any, error) {
		release()
	})
	return out, nil
}

func run(ctx context.Context, fn Func) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &coroutine.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}
