// Package future provides the recurring driver's asynchronous result
// primitives: a one-shot completable (Promised) and the read side of it
// (Promise), plus Operation, a value-less Promise composable with error
// handlers and a throttle.
package future

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Promise represents a handle to an eventual value or error. It may be
// obtained from a Promised before or after completion; either way, every
// call to Result or Get observes the same terminal outcome exactly once.
type Promise[T any] struct {
	p *Promised[T]
}

// Result invokes fn with the terminal outcome, asynchronously, whether the
// Promise has already completed or not.
func (pr Promise[T]) Result(fn func(T, error)) {
	go func() {
		<-pr.p.done
		fn(pr.p.val, pr.p.err)
	}()
}

// Get blocks until the Promise completes or ctx is done, whichever comes
// first.
func (pr Promise[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-pr.p.done:
		return pr.p.val, pr.p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Flatten runs supplier and returns the Promise it produces, recovering
// any panic raised by supplier into a failed Promise instead of letting it
// escape. This lets a producer function panic without taking down the
// caller's goroutine, mirroring Ratpack's Promise.flatten deferred
// invocation.
func Flatten[T any](supplier func() Promise[T]) (result Promise[T]) {
	defer func() {
		if r := recover(); r != nil {
			p := NewPromised[T]()
			p.Error(fmt.Errorf("future: panic in flattened promise: %v", r))
			result = p.Promise()
		}
	}()
	return supplier()
}

// Value returns a Promise that has already succeeded with v.
func Value[T any](v T) Promise[T] {
	p := NewPromised[T]()
	p.Success(v)
	return p.Promise()
}

// Failed returns a Promise that has already failed with err.
func Failed[T any](err error) Promise[T] {
	p := NewPromised[T]()
	p.Error(err)
	return p.Promise()
}

// Deferred returns a Promise that succeeds with v after d elapses,
// measured on the real wall clock via time.AfterFunc. It is meant for
// producers in tests and demos that want to simulate latency without
// pulling in a full scheduler.
func Deferred[T any](d time.Duration, v T) Promise[T] {
	p := NewPromised[T]()
	time.AfterFunc(d, func() { p.Success(v) })
	return p.Promise()
}

// Promised is a one-shot completable source of a Promise. Exactly one of
// Success, Error, or Complete may be called on it; a second terminal call
// panics, since it indicates a programming error in the caller.
type Promised[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// NewPromised returns a new, pending Promised.
func NewPromised[T any]() *Promised[T] {
	return &Promised[T]{done: make(chan struct{})}
}

// Promise returns the read side of this Promised. Safe to call any number
// of times, before or after completion.
func (p *Promised[T]) Promise() Promise[T] {
	return Promise[T]{p: p}
}

// Success completes the Promised with a value.
func (p *Promised[T]) Success(v T) {
	p.complete(v, nil)
}

// Error completes the Promised with a failure.
func (p *Promised[T]) Error(err error) {
	var zero T
	p.complete(zero, err)
}

// Complete completes the Promised with neither a value nor an error, for
// Promised[struct{}] used as a completion-only signal.
func (p *Promised[T]) Complete() {
	var zero T
	p.complete(zero, nil)
}

func (p *Promised[T]) complete(v T, err error) {
	fired := false
	p.once.Do(func() {
		p.val = v
		p.err = err
		close(p.done)
		fired = true
	})
	if !fired {
		panic("future: Promised completed more than once")
	}
}
