package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/on-the-ground/saga_ive_go/effects/internal/handlers"
	effectmodel "github.com/on-the-ground/saga_ive_go/effects/internal/model"
	"github.com/on-the-ground/saga_ive_go/saga"
)

// ErrRunnerClosed rejects calls submitted to, or still queued on, a closed
// Runner.
var ErrRunnerClosed = errors.New("task: runner closed")

// Config sizes a Runner's worker pool.
type Config = effectmodel.WorkerConfig

// NewConfig returns a Config, replacing non-positive values with 1.
func NewConfig(bufferSize, numWorkers int) Config {
	return effectmodel.NewWorkerConfig(bufferSize, numWorkers)
}

type job struct {
	key    string
	ctx    context.Context
	fn     Func
	settle func(any, error)
}

func (j job) PartitionKey() string {
	return j.key
}

// Runner executes calls on a fixed pool of workers. Calls sharing a key
// run one at a time, in the order they were yielded.
type Runner struct {
	id         uuid.UUID
	dispatcher *handlers.WorkerDispatcher[job]
}

// NewRunner starts a worker pool. The pool stops when ctx ends or on Close.
func NewRunner(ctx context.Context, cfg Config) *Runner {
	cfg = NewConfig(cfg.BufferSize, cfg.NumWorkers)
	return &Runner{
		id: uuid.New(),
		dispatcher: handlers.NewPartitionedQueue(
			ctx,
			cfg.NumWorkers,
			cfg.BufferSize,
			handleJob,
			func(j job) {
				j.settle(nil, ErrRunnerClosed)
			},
		),
	}
}

func handleJob(ctx context.Context, j job) {
	if err := j.ctx.Err(); err != nil {
		j.settle(nil, err)
		return
	}
	jobCtx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	j.settle(run(jobCtx, j.fn))
}

type call struct {
	runner *Runner
	key    string
	fn     Func
}

var callEffect = saga.Define("task.call", func(e *saga.Execution, c call) (any, error) {
	return submit(e, func(ctx context.Context, settle func(any, error)) error {
		if !c.runner.dispatcher.Dispatch(job{key: c.key, ctx: ctx, fn: c.fn, settle: settle}) {
			return fmt.Errorf("runner %s: %w", c.runner.id, ErrRunnerClosed)
		}
		return nil
	})
})

// Call queues fn on the worker owning key and resolves to its result.
// Yielding it blocks the loop while that worker's buffer is full.
func (r *Runner) Call(key string, fn Func) saga.Effect {
	return callEffect(call{runner: r, key: key, fn: fn})
}

// Close stops the workers and rejects queued calls with ErrRunnerClosed.
// It waits for running calls to return.
func (r *Runner) Close() {
	r.dispatcher.Close()
}
