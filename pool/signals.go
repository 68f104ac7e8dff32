package pool

import (
	"github.com/resquepool/resque-pool-go/logger"
	"github.com/resquepool/resque-pool-go/platform"
)

// dispatchSignal implements the full signal-semantics table from
// spec.md §4.4. It runs inside handleRunIteration, so it is the only
// place in the package that transitions st.st or touches configuration
// reload — callers never race it against maintainWorkerCount or reaping.
func dispatchSignal(st poolState, sig platform.Signal) poolState {
	switch sig {
	case platform.SIGUSR1, platform.SIGUSR2, platform.SIGCONT:
		st.plat.SignalPids(st.census.allPids(), sig)

	case platform.SIGHUP:
		st = reloadConfig(st)

	case platform.SIGWINCH:
		if st.handleWinch {
			st.cfg.ZeroAll()
			st = maintainWorkerCount(st)
		}

	case platform.SIGQUIT:
		st = beginShutdown(st, true)

	case platform.SIGINT:
		st = beginShutdown(st, false)

	case platform.SIGTERM:
		st = dispatchTerm(st)

	case platform.SIGCHLD:
		// discarded: reaping already happens at the top of every
		// iteration regardless of whether CHLD appears in the queue.

	default:
		st.log.Log(logger.Warning, "unhandled signal {signal}", map[string]any{"signal": string(sig)})
	}

	return st
}

// reloadConfig re-initializes configuration, replaces every current
// worker with one spawned under the fresh desired-count map, and leaves
// the previous configuration in place (logging at error level) if the
// reload itself fails — the Open Question resolution recorded in
// SPEC_FULL.md: a bad config on reload must not take down a running
// pool.
func reloadConfig(st poolState) poolState {
	if err := st.cfg.Initialize(); err != nil {
		st.log.Errorf("config reload failed, keeping previous configuration: %v", err)
		return st
	}

	st.plat.SignalPids(st.census.allPids(), platform.GracefulQuit)

	st.log.Log(logger.Notice, "configuration reloaded", nil)
	return maintainWorkerCount(st)
}

// beginShutdown transitions the pool toward shuttingDown: every live
// child gets a graceful-quit, and wait controls whether this call blocks
// until they've all been reaped (quit) or returns immediately
// (interrupt), per spec.md §4.4's quit/interrupt distinction. Only the
// blocking (quit) path sets quit-on-exit, so the process's final exit
// code (platform.Platform.Exit) comes out as the conventional 128+signal
// rather than 0 (spec.md §4.4/§6).
func beginShutdown(st poolState, wait bool) poolState {
	st.plat.SignalPids(st.census.allPids(), platform.GracefulQuit)
	if wait {
		st = reapUntilEmpty(st)
		st.plat.SetQuitOnExitSignal(true, platform.SIGQUIT)
	}
	st.st = shuttingDown
	return st
}

// dispatchTerm applies the configured TermBehavior (spec.md §4.4): the
// three behaviors mirror immediate-kill, interrupt, and quit exactly, so
// they're expressed in terms of the same primitives those signals use.
func dispatchTerm(st poolState) poolState {
	switch st.termBehavior {
	case TermGracefulShutdownAndWait:
		return beginShutdown(st, true)
	case TermGracefulShutdown:
		return beginShutdown(st, false)
	default: // TermImmediate
		st.plat.SignalPids(st.census.allPids(), platform.SIGTERM)
		st.st = shuttingDown
		return st
	}
}
