// Package throttle provides a capacity-1 FIFO serializer: submitted
// functions run at most one at a time, in submission order. The recurring
// driver submits start, stop, and every tick body through the same
// Throttle instance so that all of its state transitions are linearizable
// with respect to each other (spec.md §4.2, §5).
package throttle

// Throttle serializes submitted work. It is implemented as a single
// dedicated consumer goroutine reading off an unbuffered job channel —
// the "dedicated single-consumer task" option spec.md §9 calls out for
// implementing a capacity-1 throttle. Go's runtime services goroutines
// blocked on a channel send in the order they blocked, which is what
// gives Submit its FIFO guarantee.
type Throttle struct {
	jobs chan job
}

type job struct {
	fn   func() error
	done chan error
}

// New starts a Throttle's dispatch goroutine and returns it.
func New() *Throttle {
	t := &Throttle{jobs: make(chan job)}
	go t.loop()
	return t
}

func (t *Throttle) loop() {
	for j := range t.jobs {
		j.done <- j.fn()
	}
}

// Submit runs fn once it is fn's turn, blocking the caller until fn has
// run to completion, and returns fn's error.
func (t *Throttle) Submit(fn func() error) error {
	done := make(chan error, 1)
	t.jobs <- job{fn: fn, done: done}
	return <-done
}
