package recur_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recur"
	"recur/clock"
	"recur/internal/exec"
	"recur/internal/future"
)

func newFakeDriver[T any](producer recur.Producer[T], listener recur.Listener[T]) (*recur.Driver[T], *clock.FakeClock) {
	fc := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctrl := exec.New(fc.Mock(), 4)
	return recur.New(ctrl, fc, producer, listener), fc
}

// Scenario 1: periodic positive delay. Uses the real clock/controller with
// short (rather than the spec's illustrative 1s) delays, so the test
// stays fast while still exercising real scheduling and real elapsed time.
func TestPeriodicPositiveDelay(t *testing.T) {
	/* setup */
	const tick = 40 * time.Millisecond
	producer := func(n int) future.Promise[int] {
		return future.Deferred(tick, n)
	}
	listener := func(n int, r recur.TimedResult[int]) recur.Delay {
		return recur.After(tick)
	}
	d := recur.NewDefault(producer, listener)

	/* run */
	require.NoError(t, d.Start().Run())
	first := d.NextResult()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r1, err := first.Get(ctx)
	require.NoError(t, err)

	second := d.NextResult()
	r2, err := second.Get(ctx)
	require.NoError(t, err)

	require.NoError(t, d.Stop().Run())

	/* check */
	v1, _ := r1.Value()
	v2, _ := r2.Value()
	assert.Equal(t, 0, v1)
	assert.Equal(t, 1, v2)
	assert.GreaterOrEqual(t, r1.Duration(), tick/2)
	assert.GreaterOrEqual(t, r2.Duration(), tick/2)
	assert.True(t, r2.StartedAt().After(r1.FinishedAt()) || r2.StartedAt().Equal(r1.FinishedAt()))
}

// Scenario 2: immediate re-tick. Listener returns a zero delay until
// invocation 10, then halts. Expects exactly 11 ticks.
func TestImmediateReTickUntilHalt(t *testing.T) {
	/* setup */
	done := make(chan struct{})
	producer := func(n int) future.Promise[int] { return future.Value(n) }
	listener := func(n int, r recur.TimedResult[int]) recur.Delay {
		if n == 10 {
			close(done)
			return recur.Halt()
		}
		return recur.After(0)
	}
	d, _ := newFakeDriver(producer, listener)

	/* run */
	require.NoError(t, d.Start().Run())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not reach invocation 10 in time")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := d.NextResult().Get(ctx)
	require.NoError(t, err)

	/* check */
	assert.Equal(t, 11, d.Invocations())
	assert.Equal(t, recur.Stopped, d.State())
	prev, ok := d.PreviousResult()
	require.True(t, ok)
	v, verr := prev.Value()
	require.NoError(t, verr)
	assert.Equal(t, 10, v)
}

// Scenario 3: listener failure. Gates every producer call, including the
// first, so the test can deterministically subscribe to each tick's NextResult
// before that tick's swap makes it the current one.
func TestListenerFailureStopsDriver(t *testing.T) {
	/* setup */
	gate := make(chan struct{})
	boom := errors.New("boom")
	producer := func(n int) future.Promise[int] {
		<-gate
		return future.Value(n)
	}
	listener := func(n int, r recur.TimedResult[int]) recur.Delay {
		if n == 3 {
			panic(boom)
		}
		return recur.After(0)
	}
	d, _ := newFakeDriver(producer, listener)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	/* run + check, tick by tick. Every producer call blocks on gate,
	   including tick 0's, so subscribing right after Start (or right
	   after the previous Get) is guaranteed to land on that tick's own
	   promise rather than racing ahead to a later one. */
	require.NoError(t, d.Start().Run())
	p0 := d.NextResult()
	gate <- struct{}{}
	r0, err := p0.Get(ctx)
	require.NoError(t, err)
	v0, _ := r0.Value()
	assert.Equal(t, 0, v0)

	for _, want := range []int{1, 2} {
		p := d.NextResult()
		gate <- struct{}{}
		r, err := p.Get(ctx)
		require.NoError(t, err)
		v, verr := r.Value()
		require.NoError(t, verr)
		assert.Equal(t, want, v)
	}

	p3 := d.NextResult()
	gate <- struct{}{}
	_, err = p3.Get(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "boom")

	/* final state */
	assert.Equal(t, recur.Stopped, d.State())
	prev, ok := d.PreviousResult()
	require.True(t, ok)
	v, _ := prev.Value()
	assert.Equal(t, 3, v)
}

// Scenario 4: a producer failure is data, not a driver failure — the tick
// still gets a timed result and the driver still consults the listener.
func TestProducerFailureDoesNotStopDriver(t *testing.T) {
	/* setup */
	boom := errors.New("producer boom")
	gate := make(chan struct{})
	producer := func(n int) future.Promise[int] {
		<-gate
		if n == 1 {
			return future.Failed[int](boom)
		}
		return future.Value(n)
	}
	listener := func(n int, r recur.TimedResult[int]) recur.Delay {
		if n == 2 {
			return recur.Halt()
		}
		return recur.After(0)
	}
	d, _ := newFakeDriver(producer, listener)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	/* run */
	require.NoError(t, d.Start().Run())
	p0 := d.NextResult()
	gate <- struct{}{}
	r0, err := p0.Get(ctx)
	require.NoError(t, err)

	p1 := d.NextResult()
	gate <- struct{}{}
	r1, err := p1.Get(ctx)
	require.NoError(t, err) // producer error surfaces via the success channel, wrapped

	p2 := d.NextResult()
	gate <- struct{}{}
	r2, err := p2.Get(ctx)
	require.NoError(t, err)

	/* check */
	v0, verr0 := r0.Value()
	require.NoError(t, verr0)
	assert.Equal(t, 0, v0)

	_, verr1 := r1.Value()
	assert.ErrorIs(t, verr1, boom)
	assert.True(t, r1.IsError())

	v2, verr2 := r2.Value()
	require.NoError(t, verr2)
	assert.Equal(t, 2, v2)

	assert.Equal(t, recur.Stopped, d.State())
}

// Scenario 5: stopping while Pending cancels the armed timer and runs
// onStop exactly once, without ever running a second tick.
func TestStopDuringPendingCancelsTimer(t *testing.T) {
	/* setup */
	gate := make(chan struct{})
	producer := func(n int) future.Promise[int] {
		<-gate
		return future.Value(n)
	}
	listener := func(n int, r recur.TimedResult[int]) recur.Delay {
		return recur.After(5 * time.Second)
	}
	d, _ := newFakeDriver(producer, listener)

	var onStopCalls int
	d.OnStop(future.Of(func() error {
		onStopCalls++
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	/* run. Gating tick 0's producer guarantees NextResult below observes
	   that tick's own promise rather than racing ahead of it. */
	require.NoError(t, d.Start().Run())
	first := d.NextResult()
	gate <- struct{}{}
	r0, err := first.Get(ctx)
	require.NoError(t, err)
	v0, _ := r0.Value()
	assert.Equal(t, 0, v0)
	assert.Equal(t, recur.Pending, d.State())

	next := d.NextResult()
	require.NoError(t, d.Stop().Run())

	res, err := next.Get(ctx)
	require.NoError(t, err)

	/* check */
	assert.Equal(t, recur.TimedResult[int]{}, res) // completion signal carries no value
	assert.Equal(t, recur.Stopped, d.State())
	assert.Equal(t, 1, d.Invocations())
	assert.Equal(t, 1, onStopCalls)
}

// Scenario 6: stopping while Executing does not abort the in-flight
// producer; Stop's operation blocks (since it shares the throttle with the
// running tick) until that tick — including its listener call and its own
// scheduling decision — has fully completed.
func TestStopDuringExecutingWaitsForInFlightTick(t *testing.T) {
	/* setup */
	release := make(chan struct{})
	entered := make(chan struct{})
	producer := func(n int) future.Promise[int] {
		close(entered)
		<-release
		return future.Value(n)
	}
	listener := func(n int, r recur.TimedResult[int]) recur.Delay {
		return recur.After(5 * time.Second)
	}
	d, _ := newFakeDriver(producer, listener)

	var onStopCalls int
	d.OnStop(future.Of(func() error {
		onStopCalls++
		return nil
	}))

	/* run */
	require.NoError(t, d.Start().Run())
	<-entered
	assert.Equal(t, recur.Executing, d.State())

	stopDone := make(chan error, 1)
	go func() { stopDone <- d.Stop().Run() }()

	select {
	case <-stopDone:
		t.Fatal("stop returned before the in-flight tick finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)

	/* check */
	select {
	case err := <-stopDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after the in-flight tick finished")
	}
	assert.Equal(t, recur.Stopped, d.State())
	assert.Equal(t, 1, d.Invocations())
	assert.Equal(t, 1, onStopCalls)
}

// Idempotence: starting a running driver, or stopping a stopped one, has
// no effect.
func TestStartAndStopAreIdempotent(t *testing.T) {
	/* setup */
	var starts, stops int
	gate := make(chan struct{})
	producer := func(n int) future.Promise[int] {
		<-gate
		return future.Value(n)
	}
	listener := func(n int, r recur.TimedResult[int]) recur.Delay { return recur.After(5 * time.Second) }
	d, _ := newFakeDriver(producer, listener)
	d.OnStart(future.Of(func() error { starts++; return nil }))
	d.OnStop(future.Of(func() error { stops++; return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	/* run */
	require.NoError(t, d.Start().Run())
	first := d.NextResult()
	gate <- struct{}{}
	_, err := first.Get(ctx)
	require.NoError(t, err)

	require.NoError(t, d.Start().Run()) // no-op: already running
	require.NoError(t, d.Stop().Run())
	require.NoError(t, d.Stop().Run()) // no-op: already stopped

	/* check */
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
	assert.Equal(t, 1, d.Invocations())
}

// The invocation index passed to the producer matches the one passed to
// the listener, for every tick.
func TestInvocationIndexMatchesAcrossProducerAndListener(t *testing.T) {
	/* setup */
	var seenByProducer, seenByListener []int
	producer := func(n int) future.Promise[int] {
		seenByProducer = append(seenByProducer, n)
		return future.Value(n)
	}
	done := make(chan struct{})
	listener := func(n int, r recur.TimedResult[int]) recur.Delay {
		seenByListener = append(seenByListener, n)
		if n == 4 {
			close(done)
			return recur.Halt()
		}
		return recur.After(0)
	}
	d, _ := newFakeDriver(producer, listener)

	/* run */
	require.NoError(t, d.Start().Run())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not reach invocation 4 in time")
	}

	/* check */
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seenByProducer)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seenByListener)
}
