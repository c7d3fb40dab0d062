package recur

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"recur/clock"
	"recur/internal/exec"
	"recur/internal/future"
	"recur/internal/throttle"
)

// Producer produces the Nth value of a recurring computation,
// asynchronously.
type Producer[T any] func(invocation int) future.Promise[T]

// Listener is told the invocation index and that invocation's timed
// result, and decides how long to wait before the next invocation (or to
// stop) by returning a Delay. A Listener that panics is treated as a
// listener failure (spec's "throws").
type Listener[T any] func(invocation int, result TimedResult[T]) Delay

// Driver is a recurring asynchronous function driver: it repeatedly calls
// a Producer, times each call, and asks a Listener what to do next.
type Driver[T any] struct {
	controller *exec.Controller
	clk        clock.Clock
	producer   Producer[T]
	listener   Listener[T]

	throttle *throttle.Throttle

	state   atomic.Int32
	counter atomic.Int64

	// handle is only ever touched from within a throttled body, all of
	// which run on the throttle's single dispatch goroutine, so no lock
	// is needed for it.
	handle exec.Handle

	hooksMu sync.RWMutex
	onStart future.Operation
	onStop  future.Operation

	resMu          sync.RWMutex
	nextResult     *future.Promised[TimedResult[T]]
	previousResult TimedResult[T]
	hasPrevious    bool
}

// New constructs a Driver that is initially Stopped, using controller to
// fork ticks and schedule delays, and clk to stamp each tick's
// started/finished instants.
func New[T any](controller *exec.Controller, clk clock.Clock, producer Producer[T], listener Listener[T]) *Driver[T] {
	d := &Driver[T]{
		controller: controller,
		clk:        clk,
		producer:   producer,
		listener:   listener,
		throttle:   throttle.New(),
		onStart:    future.Noop(),
		onStop:     future.Noop(),
	}
	initial := future.NewPromised[TimedResult[T]]()
	initial.Complete()
	d.nextResult = initial
	return d
}

// NewDefault constructs a Driver using the real wall clock and a new
// execution controller from exec.NewDefault (real wall clock, worker pool
// sized to GOMAXPROCS). Each call builds its own controller; none is shared
// between Drivers.
func NewDefault[T any](producer Producer[T], listener Listener[T]) *Driver[T] {
	return New[T](exec.NewDefault(), clock.NewReal(), producer, listener)
}

// State returns the driver's current state.
func (d *Driver[T]) State() State {
	return State(d.state.Load())
}

// Invocations returns the total number of ticks started so far, including
// one currently executing.
func (d *Driver[T]) Invocations() int {
	return int(d.counter.Load())
}

// PreviousResult returns the most recently completed tick's timed result.
// The second return value is false if no tick has completed yet.
func (d *Driver[T]) PreviousResult() (TimedResult[T], bool) {
	d.resMu.RLock()
	defer d.resMu.RUnlock()
	return d.previousResult, d.hasPrevious
}

// NextResult returns a Promise for the next tick's timed result. A caller
// that subscribes between ticks receives the upcoming tick; one that
// subscribes during a tick receives that tick's result. A caller that
// does not resubscribe before the next tick begins will receive that
// later tick instead — NextResult does not buffer skipped results.
func (d *Driver[T]) NextResult() future.Promise[TimedResult[T]] {
	d.resMu.RLock()
	defer d.resMu.RUnlock()
	return d.nextResult.Promise()
}

// OnStart replaces the operation run once, after the state transitions to
// Executing, each time Start succeeds. It only takes effect on the next
// transition.
func (d *Driver[T]) OnStart(op future.Operation) *Driver[T] {
	d.hooksMu.Lock()
	d.onStart = op
	d.hooksMu.Unlock()
	return d
}

// OnStop replaces the operation run when Stop transitions the driver out
// of Pending. It only takes effect on the next transition.
func (d *Driver[T]) OnStop(op future.Operation) *Driver[T] {
	d.hooksMu.Lock()
	d.onStop = op
	d.hooksMu.Unlock()
	return d
}

func (d *Driver[T]) hooks() (onStart, onStop future.Operation) {
	d.hooksMu.RLock()
	defer d.hooksMu.RUnlock()
	return d.onStart, d.onStop
}

// Start returns an operation that, when run, transitions the driver from
// Stopped to Executing and forks its first tick. Starting an
// already-running driver is a no-op. The returned operation is throttled,
// so it serializes against Stop and against every in-flight tick body.
func (d *Driver[T]) Start() future.Operation {
	body := func() error {
		if d.State() != Stopped {
			return nil
		}

		fresh := future.NewPromised[TimedResult[T]]()
		d.resMu.Lock()
		d.nextResult = fresh
		d.resMu.Unlock()

		d.state.Store(int32(Executing))
		glog.V(1).Info("recur: starting")

		onStart, _ := d.hooks()
		onStart.OnError(func(err error) {
			glog.Warningf("recur: onStart failed: %v", err)
			d.state.Store(int32(Stopped))
			fresh.Error(err)
		}).Then(func() {
			d.execute()
		}).Run()

		return nil
	}
	return future.Of(body).Throttled(d.throttle)
}

// Stop returns an operation that, when run, transitions the driver to
// Stopped. If a timer was armed (state was Pending), it is cancelled
// (best-effort) and onStop runs. If a tick is currently Executing, Stop
// waits for that tick to fully complete — including its listener call and
// any subsequent scheduling — before running, since Stop is throttled
// alongside every tick body; the in-flight producer itself is never
// aborted. Stopping an already-stopped driver is a no-op.
func (d *Driver[T]) Stop() future.Operation {
	body := func() error {
		previous := State(d.state.Swap(int32(Stopped)))
		if previous != Pending {
			return nil
		}

		glog.V(1).Info("recur: stopping")
		if d.handle != nil {
			d.handle.Cancel(false)
			d.handle = nil
		}

		_, onStop := d.hooks()
		d.resMu.RLock()
		nr := d.nextResult
		d.resMu.RUnlock()

		onStop.OnError(func(err error) {
			glog.Warningf("recur: onStop failed: %v", err)
			nr.Error(err)
		}).Then(func() {
			nr.Complete()
		}).Run()

		return nil
	}
	return future.Of(body).Throttled(d.throttle)
}

// execute forks a fresh logical execution that runs one tick, throttled
// against Start, Stop, and every other tick.
func (d *Driver[T]) execute() {
	tick := future.Of(d.tick).Throttled(d.throttle)
	d.controller.Fork().Start(tick)
}

// tick is the body of a single invocation cycle, run under the throttle.
func (d *Driver[T]) tick() error {
	if d.State() == Stopped {
		return nil
	}

	d.handle = nil
	d.state.Store(int32(Executing))

	startedAt := d.clk.Now()
	num := int(d.counter.Add(1) - 1)

	producer := d.producer
	prom := future.Flatten(func() future.Promise[T] { return producer(num) })
	value, err := prom.Get(context.Background())
	finishedAt := d.clk.Now()

	timed := newTimedResult(value, err, startedAt, finishedAt)
	glog.V(1).Infof("recur: tick %d finished in %s (error=%v)", num, timed.Duration(), err)

	d.resMu.Lock()
	d.previousResult = timed
	d.hasPrevious = true
	snapshot := d.nextResult
	fresh := future.NewPromised[TimedResult[T]]()
	d.nextResult = fresh
	d.resMu.Unlock()

	delay, listenerErr := d.callListener(num, timed)
	if listenerErr != nil {
		glog.Warningf("recur: listener failed on tick %d: %v", num, listenerErr)
		d.state.Store(int32(Stopped))
		fresh.Complete()
		snapshot.Error(listenerErr)
		return nil
	}

	snapshot.Success(timed)

	if d.State() == Stopped {
		return nil
	}

	switch {
	case delay.halt:
		d.state.Store(int32(Stopped))
		fresh.Complete()
	case delay.duration <= 0:
		d.state.Store(int32(Pending))
		d.execute()
	default:
		d.state.Store(int32(Pending))
		d.handle = d.controller.Schedule(d.execute, delay.duration)
	}

	return nil
}

func (d *Driver[T]) callListener(num int, timed TimedResult[T]) (delay Delay, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recur: listener panicked: %v", r)
		}
	}()
	delay = d.listener(num, timed)
	return delay, nil
}
