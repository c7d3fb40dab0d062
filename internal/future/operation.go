package future

import "recur/internal/throttle"

// Operation is a Promise that carries no value: it either completes or
// fails. Unlike Promise/Promised, an Operation is lazy — constructing one
// with Of does not run fn; Run must be called explicitly. This mirrors
// spec.md's "yields an operation ... when the operation is run" phrasing
// for RecurringFunction.Start/Stop.
type Operation struct {
	run func() error
}

// Of builds an Operation from a synchronous function.
func Of(fn func() error) Operation {
	return Operation{run: fn}
}

// Noop returns an Operation that always succeeds without doing anything.
// It is the default value of the driver's onStart/onStop hooks.
func Noop() Operation {
	return Operation{run: func() error { return nil }}
}

// Run executes the operation's body and returns its outcome.
func (op Operation) Run() error {
	return op.run()
}

// OnError returns an Operation that runs op, and if it fails, additionally
// invokes handler with the error before propagating it.
func (op Operation) OnError(handler func(error)) Operation {
	return Operation{run: func() error {
		err := op.run()
		if err != nil {
			handler(err)
		}
		return err
	}}
}

// Then returns an Operation that runs op, and if it succeeds, additionally
// invokes next.
func (op Operation) Then(next func()) Operation {
	return Operation{run: func() error {
		if err := op.run(); err != nil {
			return err
		}
		next()
		return nil
	}}
}

// Throttled returns an Operation that, when run, submits op's body through
// t rather than running it directly. Submitting start(), stop(), and each
// tick body through the same Throttle is what makes the driver's state
// transitions linearizable.
func (op Operation) Throttled(t *throttle.Throttle) Operation {
	return Operation{run: func() error {
		return t.Submit(op.run)
	}}
}
