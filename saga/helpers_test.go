package saga_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/on-the-ground/saga_ive_go/coroutine"
	"github.com/on-the-ground/saga_ive_go/future"
	"github.com/on-the-ground/saga_ive_go/saga"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

var errBoom = errors.New("boom")

// newScheduler returns a scheduler logging to t and closed with the test.
// Debug lines are dropped: timers may still post after the test returned.
func newScheduler(t *testing.T, opts ...saga.Option) *saga.Scheduler {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	s, err := saga.NewScheduler(append([]saga.Option{saga.WithLogger(logger)}, opts...)...)
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

func awaitEnd(t *testing.T, e *saga.Execution) {
	t.Helper()
	select {
	case <-e.Done():
	case <-time.After(time.Second):
		t.Fatalf("%v did not end", e)
	}
}

// flush waits until every task posted to s so far has run.
func flush(t *testing.T, s *saga.Scheduler) {
	t.Helper()
	_, err := await(t, s.Immediate(nil))
	require.NoError(t, err)
}

func gen(body coroutine.Body) *coroutine.Generator {
	return coroutine.Go(body)
}

// failAfter rejects with err once d has elapsed.
func failAfter(d time.Duration, err error) *coroutine.Generator {
	return gen(func(co *coroutine.Co) (any, error) {
		if _, yerr := co.Yield(saga.Sleep(d)); yerr != nil {
			return nil, yerr
		}
		return nil, err
	})
}

var fail = saga.Define("fail", func(_ *saga.Execution, err error) (any, error) {
	return nil, err
})
