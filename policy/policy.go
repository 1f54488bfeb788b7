// Package policy provides concurrency policies for repeatedly invoking a
// computation on a saga Scheduler.
//
// A policy wraps a factory building the yieldable for one invocation and
// returns a function starting invocations. Every invocation receives a
// future of its result:
//
//   - Every runs each invocation in its own root execution;
//   - Latest cancels the running invocation when a new one starts, and
//     all callers of the superseded invocations receive the newest result;
//   - Serial runs invocations one after another, in call order.
package policy

import (
	"sync"

	"github.com/on-the-ground/saga_ive_go/future"
	"github.com/on-the-ground/saga_ive_go/saga"
)

// Factory builds the yieldable run by one invocation.
type Factory[A any] func(arg A) any

// Every returns a function running factory(arg) as a new root execution on
// each call.
func Every[A any](s *saga.Scheduler, factory Factory[A]) func(arg A) *future.Future {
	return func(arg A) *future.Future {
		return s.Immediate(factory(arg))
	}
}

// Latest returns a function that cancels the invocation still running, if
// any, before starting a new one. The futures handed out while invocations
// kept superseding each other are all settled with the outcome of the
// newest of them. An invocation that already settled is never superseded.
func Latest[A any](s *saga.Scheduler, factory Factory[A]) func(arg A) *future.Future {
	type round struct {
		out    *future.Future
		latest *saga.Execution
	}
	var (
		mu      sync.Mutex
		current *round
	)
	return func(arg A) *future.Future {
		mu.Lock()
		defer mu.Unlock()

		if current != nil && current.latest.Completion().Pending() {
			current.latest.Cancel()
		} else {
			current = &round{out: future.New(s)}
		}
		r := current
		e := s.Run(factory(arg))
		r.latest = e

		e.Completion().Then(func(v any, err error) {
			mu.Lock()
			superseded := r.latest != e
			if !superseded && current == r {
				current = nil
			}
			mu.Unlock()
			if superseded {
				return
			}
			if err != nil {
				r.out.Reject(err)
				return
			}
			r.out.Resolve(v)
		})
		return r.out
	}
}

// Serial returns a function queueing invocations: each one starts once the
// previous one has ended, whatever its outcome. A cancelled invocation
// never settles its future but still lets the next one start.
func Serial[A any](s *saga.Scheduler, factory Factory[A]) func(arg A) *future.Future {
	var (
		mu   sync.Mutex
		tail = future.Resolved(s, nil)
	)
	return func(arg A) *future.Future {
		out := future.New(s)
		ended := future.New(s)

		mu.Lock()
		prev := tail
		tail = ended
		mu.Unlock()

		prev.Then(func(any, error) {
			e := s.Run(factory(arg))
			e.Listen(saga.EventEnd, func() {
				ended.Resolve(nil)
			})
			future.Follow(out, e.Completion())
		})
		return out
	}
}
