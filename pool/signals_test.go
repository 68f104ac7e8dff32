package pool

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/resquepool/resque-pool-go/platform"
)

func TestDispatchSignal_USR1ForwardsToAllLiveChildren(t *testing.T) {
	st, fp := newTestState(t, map[string]int{"default": 2})
	st = maintainWorkerCount(st)
	pids := st.census.allPids()

	st = dispatchSignal(st, platform.SIGUSR1)

	for _, pid := range pids {
		assert.Equal(t, fp.signaled[pid][0], platform.SIGUSR1)
	}
}

func TestDispatchSignal_CHLDIsDiscarded(t *testing.T) {
	st, fp := newTestState(t, map[string]int{"default": 1})
	st = maintainWorkerCount(st)

	st = dispatchSignal(st, platform.SIGCHLD)

	assert.Equal(t, len(fp.signaled), 0)
	assert.Equal(t, st.st, running)
}

func TestDispatchSignal_WinchZeroesWhenEnabled(t *testing.T) {
	st, _ := newTestState(t, map[string]int{"default": 2})
	st.handleWinch = true
	st = maintainWorkerCount(st)

	st = dispatchSignal(st, platform.SIGWINCH)

	assert.Equal(t, st.cfg.WorkerCount("default"), 0)
}

func TestDispatchSignal_WinchIgnoredWhenDisabled(t *testing.T) {
	st, _ := newTestState(t, map[string]int{"default": 2})
	st = maintainWorkerCount(st)

	st = dispatchSignal(st, platform.SIGWINCH)

	assert.Equal(t, st.cfg.WorkerCount("default"), 2)
}

func TestDispatchSignal_QuitShutsDownAndWaits(t *testing.T) {
	st, fp := newTestState(t, map[string]int{"default": 2})
	st = maintainWorkerCount(st)
	pids := st.census.allPids()
	for _, pid := range pids {
		fp.pushDead(pid)
	}

	st = dispatchSignal(st, platform.SIGQUIT)

	assert.Equal(t, st.st, shuttingDown)
	assert.Equal(t, len(st.census.allPids()), 0)
	assert.Assert(t, fp.quitOnExit, "a QUIT shutdown must set quit-on-exit so the final exit code is 128+signal")
	assert.Equal(t, fp.quitOnSignal, platform.SIGQUIT)
}

func TestDispatchSignal_InterruptShutsDownWithoutWaiting(t *testing.T) {
	st, fp := newTestState(t, map[string]int{"default": 2})
	st = maintainWorkerCount(st)

	st = dispatchSignal(st, platform.SIGINT)

	assert.Equal(t, st.st, shuttingDown)
	assert.Equal(t, len(st.census.allPids()), 2, "interrupt doesn't block-reap")
	for _, pid := range st.census.allPids() {
		assert.Equal(t, fp.signaled[pid][0], platform.GracefulQuit)
	}
	assert.Assert(t, !fp.quitOnExit, "an interrupt must not set quit-on-exit")
}

func TestDispatchTerm_Immediate(t *testing.T) {
	st, fp := newTestState(t, map[string]int{"default": 1})
	st = maintainWorkerCount(st)
	pid := st.census.allPids()[0]

	st.termBehavior = TermImmediate
	st = dispatchSignal(st, platform.SIGTERM)

	assert.Equal(t, st.st, shuttingDown)
	assert.Equal(t, fp.signaled[pid][0], platform.SIGTERM)
	assert.Assert(t, !fp.quitOnExit, "an immediate term must not set quit-on-exit")
}

func TestDispatchTerm_GracefulShutdownAndWait(t *testing.T) {
	st, fp := newTestState(t, map[string]int{"default": 1})
	st = maintainWorkerCount(st)
	pid := st.census.allPids()[0]
	fp.pushDead(pid)

	st.termBehavior = TermGracefulShutdownAndWait
	st = dispatchSignal(st, platform.SIGTERM)

	assert.Equal(t, st.st, shuttingDown)
	assert.Equal(t, len(st.census.allPids()), 0)
	assert.Assert(t, fp.quitOnExit, "TermGracefulShutdownAndWait behaves as quit, including quit-on-exit")
	assert.Equal(t, fp.quitOnSignal, platform.SIGQUIT)
}

func TestDispatchTerm_GracefulShutdownDoesNotSetQuitOnExit(t *testing.T) {
	st, fp := newTestState(t, map[string]int{"default": 1})
	st = maintainWorkerCount(st)

	st.termBehavior = TermGracefulShutdown
	st = dispatchSignal(st, platform.SIGTERM)

	assert.Equal(t, st.st, shuttingDown)
	assert.Assert(t, !fp.quitOnExit, "TermGracefulShutdown behaves as interrupt, not quit")
}

func TestReloadConfig_KeepsPreviousConfigOnFailure(t *testing.T) {
	st, _ := newTestState(t, map[string]int{"default": 1})
	st = maintainWorkerCount(st)

	// Point the explicit path at a directory: it exists (so resolvePath
	// accepts it) but os.ReadFile on a directory always errors, forcing
	// Initialize to fail the way a malformed config file would.
	st.cfg.InMemory = nil
	st.cfg.ExplicitPath = "/"

	before := st.cfg.WorkerCount("default")
	st = dispatchSignal(st, platform.SIGHUP)

	assert.Equal(t, st.cfg.WorkerCount("default"), before, "a failed reload keeps the previous desired-count map untouched")
}
