package task_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/on-the-ground/saga_ive_go/coroutine"
	"github.com/on-the-ground/saga_ive_go/effects/log"
	"github.com/on-the-ground/saga_ive_go/effects/task"
	"github.com/on-the-ground/saga_ive_go/future"
	"github.com/on-the-ground/saga_ive_go/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(t *testing.T) *saga.Scheduler {
	t.Helper()
	s, err := saga.NewScheduler(saga.WithLogger(log.NewTestLogger()))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func await(t *testing.T, f *future.Future) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := f.Await(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "future did not settle")
	return v, err
}

func TestTaskEffect_Success(t *testing.T) {
	s := newScheduler(t)

	v, err := await(t, s.Immediate(task.Go(func(ctx context.Context) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return "ok", nil
	})))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestTaskEffect_Failure(t *testing.T) {
	s := newScheduler(t)
	boom := errors.New("boom")

	v, err := await(t, s.Immediate(coroutine.Go(func(co *coroutine.Co) (any, error) {
		_, err := co.Yield(task.Go(func(context.Context) (any, error) {
			return nil, boom
		}))
		if errors.Is(err, boom) {
			return "caught", nil
		}
		return nil, err
	})))
	require.NoError(t, err)
	assert.Equal(t, "caught", v)

	_, err = await(t, s.Immediate(task.Go(func(context.Context) (any, error) {
		panic("task")
	})))
	var pe *coroutine.PanicError
	require.ErrorAs(t, err, &pe)
}

func TestTaskEffect_CancelledWithExecution(t *testing.T) {
	s := newScheduler(t)

	cancelled := make(chan error, 1)
	e := s.Run(task.Go(func(ctx context.Context) (any, error) {
		<-ctx.Done()
		cancelled <- ctx.Err()
		return "too late", nil
	}))

	time.Sleep(10 * time.Millisecond)
	e.Cancel()

	select {
	case err := <-cancelled:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}
	<-e.Done()
	assert.True(t, e.Cancelled())
}

func TestTaskEffect_LosingRaceIsCancelled(t *testing.T) {
	s := newScheduler(t)

	var sawCancel atomic.Bool
	v, err := await(t, s.Immediate(saga.Race(
		task.Go(func(ctx context.Context) (any, error) {
			select {
			case <-ctx.Done():
				sawCancel.Store(true)
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return "slow", nil
			}
		}),
		saga.Delay(10*time.Millisecond, "fast"),
	)))
	require.NoError(t, err)
	assert.Equal(t, "fast", v)
	assert.Eventually(t, sawCancel.Load, time.Second, time.Millisecond)
}

func TestTaskEffect_Parallel(t *testing.T) {
	s := newScheduler(t)

	effs := make(saga.Seq, 0, 5)
	for i := 0; i < 5; i++ {
		n := i
		effs = append(effs, task.Go(func(ctx context.Context) (any, error) {
			time.Sleep(time.Duration(50-n*10) * time.Millisecond)
			return n * 2, nil
		}))
	}

	start := time.Now()
	v, err := await(t, s.Immediate(effs))
	require.NoError(t, err)
	assert.Equal(t, []any{0, 2, 4, 6, 8}, v)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestRunner_SameKeyRunsInOrder(t *testing.T) {
	s := newScheduler(t)
	runner := task.NewRunner(context.Background(), task.NewConfig(8, 4))
	defer runner.Close()

	var (
		mu    sync.Mutex
		order []int
	)
	effs := make(saga.Seq, 0, 5)
	for i := 0; i < 5; i++ {
		n := i
		effs = append(effs, runner.Call("account-1", func(context.Context) (any, error) {
			time.Sleep(time.Duration(5-n) * time.Millisecond)
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return n, nil
		}))
	}

	v, err := await(t, s.Immediate(effs))
	require.NoError(t, err)
	assert.Equal(t, []any{0, 1, 2, 3, 4}, v)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestRunner_Closed(t *testing.T) {
	s := newScheduler(t)
	runner := task.NewRunner(context.Background(), task.Config{})
	runner.Close()

	_, err := await(t, s.Immediate(runner.Call("k", func(context.Context) (any, error) {
		return "never", nil
	})))
	require.ErrorIs(t, err, task.ErrRunnerClosed)
}

func TestRunner_CloseRejectsQueuedCalls(t *testing.T) {
	s := newScheduler(t)
	runner := task.NewRunner(context.Background(), task.NewConfig(4, 1))

	started := make(chan struct{})
	release := make(chan struct{})
	first := s.Immediate(runner.Call("k", func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "first", nil
	}))
	<-started
	queued := s.Immediate(runner.Call("k", func(context.Context) (any, error) {
		return "queued", nil
	}))
	time.Sleep(10 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		runner.Close()
		close(closed)
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)
	<-closed

	v, err := await(t, first)
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	_, err = await(t, queued)
	require.ErrorIs(t, err, task.ErrRunnerClosed)
}

func TestNewConfig(t *testing.T) {
	cfg := task.NewConfig(0, -1)
	assert.Equal(t, 1, cfg.BufferSize)
	assert.Equal(t, 1, cfg.NumWorkers)
}
