package coroutine_test

import (
	"errors"
	"testing"

	"github.com/on-the-ground/saga_ive_go/coroutine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_YieldsAndReturns(t *testing.T) {
	gen := coroutine.Go(func(co *coroutine.Co) (any, error) {
		a, err := co.Yield("first")
		if err != nil {
			return nil, err
		}
		b, err := co.Yield("second")
		if err != nil {
			return nil, err
		}
		return a.(int) + b.(int), nil
	})

	step, err := gen.Resume("discarded")
	require.NoError(t, err)
	assert.Equal(t, coroutine.Yielded("first"), step)

	step, err = gen.Resume(1)
	require.NoError(t, err)
	assert.Equal(t, coroutine.Yielded("second"), step)

	step, err = gen.Resume(2)
	require.NoError(t, err)
	assert.Equal(t, coroutine.Returned(3), step)
	assert.True(t, gen.Finished())

	_, err = gen.Resume(nil)
	assert.ErrorIs(t, err, coroutine.ErrFinished)
}

func TestGenerator_InjectedFailureCanBeCaught(t *testing.T) {
	boom := errors.New("boom")
	gen := coroutine.Go(func(co *coroutine.Co) (any, error) {
		if _, err := co.Yield("risky"); err != nil {
			v, _ := co.Yield("recovering")
			return v, nil
		}
		return "unreachable", nil
	})

	_, err := gen.Resume(nil)
	require.NoError(t, err)

	step, err := gen.ResumeWithError(boom)
	require.NoError(t, err)
	assert.Equal(t, coroutine.Yielded("recovering"), step)

	step, err = gen.Resume("recovered")
	require.NoError(t, err)
	assert.Equal(t, coroutine.Returned("recovered"), step)
}

func TestGenerator_UncaughtFailureFinishes(t *testing.T) {
	boom := errors.New("boom")
	gen := coroutine.Go(func(co *coroutine.Co) (any, error) {
		_, err := co.Yield(nil)
		return nil, err
	})

	_, err := gen.Resume(nil)
	require.NoError(t, err)

	step, err := gen.ResumeWithError(boom)
	assert.ErrorIs(t, err, boom)
	assert.True(t, step.Done)
}

func TestGenerator_FailureBeforeFirstStep(t *testing.T) {
	boom := errors.New("boom")
	started := false
	gen := coroutine.Go(func(co *coroutine.Co) (any, error) {
		started = true
		return nil, nil
	})

	step, err := gen.ResumeWithError(boom)
	assert.ErrorIs(t, err, boom)
	assert.True(t, step.Done)
	assert.False(t, started)
}

func TestGenerator_PanicBecomesPanicError(t *testing.T) {
	boom := errors.New("boom")
	gen := coroutine.Go(func(co *coroutine.Co) (any, error) {
		panic(boom)
	})

	step, err := gen.Resume(nil)
	assert.True(t, step.Done)

	var pe *coroutine.PanicError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, boom)
	assert.NotEmpty(t, pe.Stack)
}

func TestGenerator_StopUnwindsSuspendedBody(t *testing.T) {
	deferred := false
	after := false
	gen := coroutine.Go(func(co *coroutine.Co) (any, error) {
		defer func() { deferred = true }()
		_, _ = co.Yield("parked")
		after = true
		return nil, nil
	})

	_, err := gen.Resume(nil)
	require.NoError(t, err)

	gen.Stop()
	gen.Stop()
	assert.True(t, deferred)
	assert.False(t, after)
	assert.True(t, gen.Finished())
}

func TestStepFunc(t *testing.T) {
	state := 0
	var machine coroutine.Resumable = coroutine.StepFunc(func(v any, err error) (coroutine.StepResult, error) {
		state++
		switch {
		case err != nil:
			return coroutine.Returned("caught"), nil
		case state == 1:
			return coroutine.Yielded("ask"), nil
		default:
			return coroutine.Returned(v), nil
		}
	})

	step, err := machine.Resume(nil)
	require.NoError(t, err)
	assert.Equal(t, coroutine.Yielded("ask"), step)

	step, err = machine.ResumeWithError(errors.New("x"))
	require.NoError(t, err)
	assert.Equal(t, coroutine.Returned("caught"), step)
}
