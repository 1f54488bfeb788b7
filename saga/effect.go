package saga

import "fmt"

// Handler performs an effect on behalf of the execution that resolved it.
// It runs on the loop. A returned *future.Future is awaited; any other
// value, an *Execution included, is the effect's result as is. A non-nil
// error fails the effect.
type Handler func(e *Execution, payload any) (any, error)

// Effect is an immutable description of an operation serviced by the
// scheduler. Nothing happens until an Execution resolves it.
type Effect struct {
	name    string
	payload any
	handler Handler
}

// NewEffect builds an Effect from its payload and handler.
func NewEffect(name string, payload any, handler Handler) Effect {
	return Effect{
		name:    name,
		payload: payload,
		handler: handler,
	}
}

func (eff Effect) Name() string { return eff.name }
func (eff Effect) Payload() any { return eff.payload }

func (eff Effect) String() string {
	return fmt.Sprintf("Effect(%s)", eff.name)
}

// Define returns a typed effect constructor: every Effect it builds carries
// a P payload and is serviced by handle.
//
// Usage:
//
//	var fetch = saga.Define("fetch", func(e *saga.Execution, url string) (any, error) {
//	    ...
//	})
//	v, err := co.Yield(fetch("https://example.com"))
func Define[P any](name string, handle func(e *Execution, payload P) (any, error)) func(P) Effect {
	handler := func(e *Execution, raw any) (any, error) {
		if raw == nil {
			var zero P
			return handle(e, zero)
		}
		payload, ok := raw.(P)
		if !ok {
			var zero P
			panic(fmt.Sprintf("saga: effect %s expects a %T payload, got %T", name, zero, raw))
		}
		return handle(e, payload)
	}
	return func(payload P) Effect {
		return NewEffect(name, payload, handler)
	}
}
