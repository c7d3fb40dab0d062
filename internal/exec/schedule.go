package exec

import (
	"time"

	bclock "github.com/benbjohnson/clock"
	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/golang/glog"
)

// Handle is a cancellable reference to a scheduled callback, matching
// spec.md §6's scheduled-executor contract.
type Handle interface {
	// Cancel attempts to prevent the callback from firing. It returns
	// true if the callback had not yet fired and was successfully
	// stopped, false if it had already fired or been cancelled.
	// Cancellation is best-effort: a callback that is in the process of
	// firing concurrently with Cancel may still run.
	Cancel(mayInterruptIfRunning bool) bool
}

// pendingItem is the bookkeeping record kept in the controller's timer
// heap for one outstanding Schedule call. The heap orders items by fireAt
// so PendingCount and Shutdown can enumerate everything still armed,
// mirroring the ordered-run-queue role gods/redblacktree played in the
// teacher's CFS scheduler, but keyed by fire time instead of vruntime.
type pendingItem struct {
	seq    uint64
	fireAt time.Time
	timer  *bclock.Timer
}

type pendingHeap struct {
	h *binaryheap.Heap
}

func newPendingHeap() *pendingHeap {
	return &pendingHeap{h: binaryheap.NewWith(pendingItemComparator)}
}

func pendingItemComparator(a, b interface{}) int {
	ai, bi := a.(*pendingItem), b.(*pendingItem)
	switch {
	case ai.fireAt.Before(bi.fireAt):
		return -1
	case ai.fireAt.After(bi.fireAt):
		return 1
	case ai.seq < bi.seq:
		return -1
	case ai.seq > bi.seq:
		return 1
	default:
		return 0
	}
}

func (p *pendingHeap) push(item *pendingItem) {
	p.h.Push(item)
}

func (p *pendingHeap) popMin() (*pendingItem, bool) {
	v, ok := p.h.Pop()
	if !ok {
		return nil, false
	}
	return v.(*pendingItem), true
}

func (p *pendingHeap) size() int {
	return p.h.Size()
}

// remove drops target from the heap, wherever it sits. gods' binaryheap
// only exposes Pop-the-minimum, so removing an arbitrary element means
// draining and rebuilding minus the target; the heaps this controller
// carries stay small (bounded by the number of concurrently-armed
// timers), so the O(n log n) cost is not a concern.
func (p *pendingHeap) remove(target *pendingItem) {
	var kept []*pendingItem
	for {
		v, ok := p.h.Pop()
		if !ok {
			break
		}
		item := v.(*pendingItem)
		if item != target {
			kept = append(kept, item)
		}
	}
	for _, item := range kept {
		p.h.Push(item)
	}
}

// Schedule submits cb to run once, after delay has elapsed, and returns a
// Handle that can cancel it. A zero-argument callback and best-effort
// cancellation are exactly the scheduled-executor contract spec.md §6
// requires of this collaborator.
func (c *Controller) Schedule(cb func(), delay time.Duration) Handle {
	c.heapMu.Lock()
	c.seq++
	item := &pendingItem{seq: c.seq, fireAt: c.timeSrc.Now().Add(delay)}
	c.heap.push(item)
	c.heapMu.Unlock()

	glog.V(2).Infof("exec: scheduling callback %d in %s", item.seq, delay)
	item.timer = c.timeSrc.AfterFunc(delay, func() {
		c.heapMu.Lock()
		c.heap.remove(item)
		c.heapMu.Unlock()
		cb()
	})

	return &handle{c: c, item: item}
}

type handle struct {
	c    *Controller
	item *pendingItem
}

func (h *handle) Cancel(mayInterruptIfRunning bool) bool {
	stopped := h.item.timer.Stop()
	h.c.heapMu.Lock()
	h.c.heap.remove(h.item)
	h.c.heapMu.Unlock()
	glog.V(2).Infof("exec: cancel(%d) -> stopped=%v", h.item.seq, stopped)
	return stopped
}
