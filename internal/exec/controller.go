// Package exec provides the recurring driver's two remaining collaborators:
// a Controller that forks isolated logical executions onto a bounded
// worker pool, and a scheduler adapter (schedule.go) that arms cancellable,
// delayed callbacks. Neither is a general-purpose scheduling library; both
// exist only to the extent the driver in package recur needs them.
package exec

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	bclock "github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"go.uber.org/multierr"

	"recur/internal/future"
)

// Execution represents a fresh logical execution, isolated from whichever
// goroutine called Fork.
type Execution interface {
	// Start runs op on the execution's worker, asynchronously.
	Start(op future.Operation)
}

// Controller is the driver's execution controller: it can fork isolated
// executions (Controller.Fork) and schedule delayed callbacks
// (Controller.Schedule).
type Controller struct {
	timeSrc bclock.Clock
	workers chan func()
	wg      sync.WaitGroup

	heapMu sync.Mutex
	heap   *pendingHeap
	seq    uint64

	closeOnce sync.Once
}

// New returns a Controller backed by a fixed-size worker pool of poolSize
// goroutines, using timeSrc as the source of delayed callback firing. Pass
// a *github.com/benbjohnson/clock.Mock (obtainable from a
// recur/clock.FakeClock via Mock()) in tests to control scheduling
// deterministically.
func New(timeSrc bclock.Clock, poolSize int) *Controller {
	if poolSize <= 0 {
		poolSize = 1
	}
	c := &Controller{
		timeSrc: timeSrc,
		workers: make(chan func()),
		heap:    newPendingHeap(),
	}
	for i := 0; i < poolSize; i++ {
		go c.workerLoop()
	}
	return c
}

// NewDefault returns a Controller using the real wall clock and a pool
// sized to GOMAXPROCS.
func NewDefault() *Controller {
	return New(bclock.New(), runtime.GOMAXPROCS(0))
}

func (c *Controller) workerLoop() {
	for fn := range c.workers {
		fn()
	}
}

// Fork returns a fresh Execution bound to this controller's worker pool.
func (c *Controller) Fork() Execution {
	return execution{c: c}
}

type execution struct {
	c *Controller
}

func (e execution) Start(op future.Operation) {
	e.c.wg.Add(1)
	glog.V(2).Info("exec: forking operation onto worker pool")
	e.c.workers <- func() {
		defer e.c.wg.Done()
		if err := op.Run(); err != nil {
			glog.V(2).Infof("exec: forked operation returned error: %v", err)
		}
	}
}

// Shutdown stops accepting new forked work, waits for in-flight forks to
// finish (or ctx to expire), and cancels every scheduled callback that has
// not yet fired. It must only be called after callers are done invoking
// Fork/Schedule, since it closes the worker channel.
func (c *Controller) Shutdown(ctx context.Context) error {
	var shutdownErr error
	c.closeOnce.Do(func() {
		close(c.workers)

		waited := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(waited)
		}()

		select {
		case <-waited:
		case <-ctx.Done():
			shutdownErr = ctx.Err()
			return
		}

		var errs []error
		c.heapMu.Lock()
		for {
			item, ok := c.heap.popMin()
			if !ok {
				break
			}
			if !item.timer.Stop() {
				errs = append(errs, fmt.Errorf("exec: scheduled callback %d fired during shutdown", item.seq))
			}
		}
		c.heapMu.Unlock()

		shutdownErr = multierr.Combine(errs...)
	})
	return shutdownErr
}

// PendingCount reports how many scheduled callbacks are currently armed
// and have not yet fired or been cancelled. Exposed for tests.
func (c *Controller) PendingCount() int {
	c.heapMu.Lock()
	defer c.heapMu.Unlock()
	return c.heap.size()
}
