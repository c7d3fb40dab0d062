// Package recur implements a recurring asynchronous function driver: it
// repeatedly invokes a producer, times each invocation, and asks a
// listener how long to wait before the next one (or whether to stop).
//
// The driver's collaborators — a clock, an execution controller, a
// throttle, and Promise/Promised/Operation — live in the sibling clock
// package and in internal/exec, internal/throttle, and internal/future.
package recur

// State is one of the three states a Driver can be in.
type State int32

const (
	// Stopped means no tick is running and no timer is armed. It is
	// both the initial state and the terminal-idle state.
	Stopped State = iota
	// Executing means a tick is currently running the producer.
	Executing
	// Pending means the previous tick has returned and a timer is
	// armed (or an immediate re-fork is queued) for the next tick.
	Pending
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Executing:
		return "Executing"
	case Pending:
		return "Pending"
	default:
		return "Unknown"
	}
}
