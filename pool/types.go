package pool

// TermBehavior selects what a terminate signal does to live workers
// (spec.md §4.4's signal-semantics table). It is the adapted form of the
// restart-strategy enum technique — a small closed set of named
// behaviors with rich per-value doc comments — applied to shutdown mode
// instead of restart mode.
type TermBehavior int

const (
	// TermImmediate forwards a terminate signal to every live child and
	// returns without waiting for them to exit. The default disposition
	// when no behavior is configured (spec.md §4.4).
	TermImmediate TermBehavior = iota

	// TermGracefulShutdown sends a graceful-quit to every live child and
	// returns immediately, the same as an interrupt — workers finish
	// their current job on their own schedule.
	TermGracefulShutdown

	// TermGracefulShutdownAndWait sends a graceful-quit to every live
	// child and then blocks, reaping them one at a time, before
	// returning — the same as a quit.
	TermGracefulShutdownAndWait
)

// state is the supervisor's own lifecycle state (spec.md §4.4, "three
// supervisor states"). Transitions are linear and one-way: starting ->
// running -> shuttingDown.
type state int

const (
	// starting spans construction through Start(): configuration is
	// initialized, signal traps installed, and the first reconciliation
	// has run, but the supervisor has not yet entered its loop.
	starting state = iota

	// running spans the body of Join()'s loop: the supervisor is
	// reaping, dispatching signals, and reconciling on every iteration.
	running

	// shuttingDown spans the time between a terminating signal's
	// handler returning and the final shutdown log line; no further
	// reconciliation happens in this state.
	shuttingDown
)

func (s state) String() string {
	switch s {
	case starting:
		return "starting"
	case running:
		return "running"
	case shuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}
