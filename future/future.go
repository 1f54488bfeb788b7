// Package future provides a single-assignment completion cell.
//
// A Future is settled at most once, either fulfilled with a value or
// rejected with an error. Settlement may happen from any goroutine, but the
// callbacks registered with Then never run on the settling goroutine: they
// are handed to the Future's Executor, which for the saga runtime is the
// scheduler loop. This keeps every continuation on one logical thread.
package future

import (
	"context"
	"sync"
)

// Executor runs the continuations of settled futures.
//
// Post must not block and must run tasks in the order they were posted.
type Executor interface {
	Post(task func())
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(task func())

func (fn ExecutorFunc) Post(task func()) { fn(task) }

type state uint8

const (
	pending state = iota
	fulfilled
	rejected
)

// Future is a single-assignment completion cell.
type Future struct {
	exec Executor

	mu        sync.Mutex
	state     state
	value     any
	err       error
	callbacks []func(any, error)
	done      chan struct{}
}

// New returns a pending future whose continuations run on exec.
func New(exec Executor) *Future {
	if exec == nil {
		panic("future: nil executor")
	}
	return &Future{
		exec: exec,
		done: make(chan struct{}),
	}
}

// Resolved returns a future already fulfilled with v.
func Resolved(exec Executor, v any) *Future {
	f := New(exec)
	f.Resolve(v)
	return f
}

// Rejected returns a future already rejected with err.
func Rejected(exec Executor, err error) *Future {
	f := New(exec)
	f.Reject(err)
	return f
}

// Executor returns the executor f posts its callbacks to.
func (f *Future) Executor() Executor {
	return f.exec
}

// Resolve fulfils f with v. It reports whether this call settled f;
// calls after the first settlement are ignored.
func (f *Future) Resolve(v any) bool {
	return f.settle(fulfilled, v, nil)
}

// Reject rejects f with err. It reports whether this call settled f.
// A nil err is a programmer error.
func (f *Future) Reject(err error) bool {
	if err == nil {
		panic("future: reject with nil error")
	}
	return f.settle(rejected, nil, err)
}

func (f *Future) settle(s state, v any, err error) bool {
	f.mu.Lock()
	if f.state != pending {
		f.mu.Unlock()
		return false
	}
	f.state = s
	f.value = v
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		f.post(cb, v, err)
	}
	return true
}

func (f *Future) post(cb func(any, error), v any, err error) {
	f.exec.Post(func() { cb(v, err) })
}

// Then registers cb to run on the executor once f settles. Exactly one of
// the value and the error is meaningful: err is non-nil iff f was rejected.
// Callbacks on one future run in registration order.
func (f *Future) Then(cb func(v any, err error)) {
	f.mu.Lock()
	if f.state == pending {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	f.post(cb, v, err)
}

// Result reads f without blocking. settled is false while f is pending.
func (f *Future) Result() (v any, err error, settled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, f.state != pending
}

// Pending reports whether f has not settled yet.
func (f *Future) Pending() bool {
	_, _, settled := f.Result()
	return !settled
}

// Done returns a channel closed when f settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks the calling goroutine until f settles or ctx ends.
//
// Await must not be called from the executor's own goroutine: the
// continuation that would settle f could never run.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		v, err, _ := f.Result()
		return v, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Follow settles dst with whatever src settles to.
func Follow(dst, src *Future) {
	src.Then(func(v any, err error) {
		if err != nil {
			dst.Reject(err)
			return
		}
		dst.Resolve(v)
	})
}
