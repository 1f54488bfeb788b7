package handlers

import (
	"context"
	"sync"

	effectmodel "github.com/on-the-ground/saga_ive_go/effects/internal/model"
)

// WorkerDispatcher routes messages to a fixed set of workers, one buffered
// channel per worker, picking the channel by hashing the message's
// partition key. Messages sharing a key are handled in dispatch order.
type WorkerDispatcher[T effectmodel.Partitionable] struct {
	chs    []chan T
	ctx    context.Context
	cancel context.CancelFunc
	drop   func(T)
	wg     sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewSingleQueue starts a dispatcher with one worker.
func NewSingleQueue[T effectmodel.Partitionable](
	ctx context.Context,
	bufferSize int,
	handleFn func(context.Context, T),
	dropFn func(T),
) *WorkerDispatcher[T] {
	return NewPartitionedQueue(ctx, 1, bufferSize, handleFn, dropFn)
}

// NewPartitionedQueue starts numWorkers workers running handleFn. Messages
// still buffered when the dispatcher closes are passed to dropFn. The
// dispatcher closes itself once ctx ends.
func NewPartitionedQueue[T effectmodel.Partitionable](
	ctx context.Context,
	numWorkers, bufferSize int,
	handleFn func(context.Context, T),
	dropFn func(T),
) *WorkerDispatcher[T] {
	cfg := effectmodel.NewWorkerConfig(bufferSize, numWorkers)
	ctx, cancel := context.WithCancel(ctx)

	d := &WorkerDispatcher[T]{
		chs:    make([]chan T, cfg.NumWorkers),
		ctx:    ctx,
		cancel: cancel,
		drop:   dropFn,
	}

	ready := sync.WaitGroup{}
	for i := range d.chs {
		ch := make(chan T, cfg.BufferSize)
		d.chs[i] = ch
		ready.Add(1)
		d.wg.Add(1)
		go func(ch chan T) {
			defer d.wg.Done()
			ready.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				select {
				case msg := <-ch:
					handleFn(ctx, msg)
				case <-ctx.Done():
					return
				}
			}
		}(ch)
	}
	ready.Wait()

	go func() {
		<-ctx.Done()
		d.Close()
	}()

	return d
}

// Dispatch hands msg to its worker, blocking while that worker's buffer is
// full. It reports false once the dispatcher is closing.
func (d *WorkerDispatcher[T]) Dispatch(msg T) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || d.ctx.Err() != nil {
		return false
	}
	select {
	case d.chs[getIndexByHash(msg, len(d.chs))] <- msg:
		return true
	case <-d.ctx.Done():
		return false
	}
}

// Close stops the workers after their current message and drops whatever
// is still buffered. It blocks until the workers have returned.
func (d *WorkerDispatcher[T]) Close() {
	d.closeOnce.Do(func() {
		// cancel first: it releases Dispatch calls blocked on a full buffer
		// while holding the read lock
		d.cancel()

		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		d.wg.Wait()

		for _, ch := range d.chs {
			for drained := false; !drained; {
				select {
				case msg := <-ch:
					if d.drop != nil {
						d.drop(msg)
					}
				default:
					drained = true
				}
			}
		}
	})
}
