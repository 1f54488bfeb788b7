// Package saga is a structured-concurrency runtime for effectful
// computations.
//
// A computation is any yieldable value: a plain value, an Effect, a
// coroutine.Resumable, a Seq of yieldables, a Thunk, a *future.Future or an
// *Execution. A Scheduler runs it as a root Execution; forking and racing
// spawn child executions, forming a tree in which
//
//   - an execution completes only once all of its children have ended;
//   - cancellation flows down the tree, never up;
//   - a cancelled execution never settles its completion;
//   - a failing child fails the execution that forked it.
//
// All executions of a Scheduler run on one loop goroutine. Effect handlers,
// listeners and future callbacks therefore never race with each other, and
// blocking work belongs in a task effect, not in a handler.
//
// Example:
//
//	s, err := saga.NewScheduler(saga.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	winner, err := s.Immediate(saga.Race(
//	    saga.Delay(10*time.Millisecond, "one"),
//	    saga.Delay(20*time.Millisecond, "two"),
//	)).Await(ctx)
package saga
