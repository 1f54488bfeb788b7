package saga

import (
	"time"

	"github.com/on-the-ground/saga_ive_go/future"
)

// Forever never settles on its own. Only the cancellation of the yielding
// execution, or of an ancestor, ends it.
func Forever() Effect {
	return NewEffect("forever", nil, handleForever)
}

func handleForever(e *Execution, _ any) (any, error) {
	return future.New(e.sched), nil
}

// Cancel cancels target and resolves to nil.
func Cancel(target *Execution) Effect {
	return cancelEffect(target)
}

var cancelEffect = Define("cancel", func(e *Execution, target *Execution) (any, error) {
	switch {
	case target == nil:
	case target.sched != e.sched:
		target.Cancel()
	default:
		target.cancel()
	}
	return nil, nil
})

// Fork spawns input as a child of the yielding execution and resolves at
// once to the child's handle. The parent does not wait for the child
// except through its own end, which needs every child to have ended. A
// rejected child rejects the parent with the same error.
func Fork(input any) Effect {
	return NewEffect("fork", input, handleFork)
}

func handleFork(e *Execution, input any) (any, error) {
	child := e.Spawn(input)
	child.completion.Then(func(_ any, err error) {
		if err != nil {
			e.reject(err)
		}
	})
	return child, nil
}

// Race spawns one child per input and settles like the first child to
// settle. Every other child is cancelled at that point. Without inputs the
// race never settles.
func Race(inputs ...any) Effect {
	return NewEffect("race", inputs, handleRace)
}

func handleRace(e *Execution, payload any) (any, error) {
	inputs, _ := payload.([]any)
	children := make([]*Execution, len(inputs))
	for i, input := range inputs {
		children[i] = e.Spawn(input)
	}

	out := future.New(e.sched)
	for _, child := range children {
		child.completion.Then(func(v any, err error) {
			var won bool
			if err != nil {
				won = out.Reject(err)
			} else {
				won = out.Resolve(v)
			}
			if !won {
				return
			}
			for _, other := range children {
				other.cancel()
			}
		})
	}
	return out, nil
}

type teardownPayload struct {
	input   any
	cleanup func(input any)
}

// Teardown resolves input, running cleanup(input) if the yielding
// execution is cancelled before input has settled. Once input has settled
// the cleanup is unregistered and later cancellations ignore it.
func Teardown(input any, cleanup func(input any)) Effect {
	return NewEffect("teardown", teardownPayload{input: input, cleanup: cleanup}, handleTeardown)
}

func handleTeardown(e *Execution, payload any) (any, error) {
	p := payload.(teardownPayload)
	unsubscribe := e.Listen(EventCancel, func() {
		if p.cleanup != nil {
			p.cleanup(p.input)
		}
	})

	out := future.New(e.sched)
	e.Resolve(p.input).Then(func(v any, err error) {
		unsubscribe()
		if err != nil {
			out.Reject(err)
			return
		}
		out.Resolve(v)
	})
	return out, nil
}

type delayPayload struct {
	d     time.Duration
	value any
}

// Delay resolves to value once d has elapsed. The timer is not stopped by
// cancellation; a cancelled execution simply never resumes on it.
func Delay(d time.Duration, value any) Effect {
	return NewEffect("delay", delayPayload{d: d, value: value}, handleDelay)
}

// Sleep is Delay with a nil value.
func Sleep(d time.Duration) Effect {
	return Delay(d, nil)
}

func handleDelay(e *Execution, payload any) (any, error) {
	p := payload.(delayPayload)
	f := future.New(e.sched)
	time.AfterFunc(p.d, func() {
		f.Resolve(p.value)
	})
	return f, nil
}
