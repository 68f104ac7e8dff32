package pool

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/resquepool/resque-pool-go/erl"
	"github.com/resquepool/resque-pool-go/erl/genserver"
	"github.com/resquepool/resque-pool-go/erl/gensrv"

	"github.com/resquepool/resque-pool-go/config"
	"github.com/resquepool/resque-pool-go/logger"
	"github.com/resquepool/resque-pool-go/platform"
)

// startTestPool wires up a real gensrv-registered Pool actor the same way
// gensrv's own server_test.go exercises StartLink — against a live erl
// supervision tree rooted at a TestReceiver pid — rather than calling
// handleStart/handleRunIteration as bare functions, so the actor-runtime
// plumbing (Call routing, the task-linked signal bridge that startMsg
// spawns) is under test too, not just the reconciliation logic it wraps.
// Join's recurringtask driver is not started by these tests.
func startTestPool(t *testing.T, desired map[string]int) (erl.PID, erl.PID, *fakePlatform) {
	t.Helper()

	testPID, _ := erl.NewTestReceiver(t)

	cfg := config.New()
	cfg.InMemory = desired
	fp := newFakePlatform()

	initArgs := poolInitArgs{
		cfg:  cfg,
		log:  logger.New(logger.Emergency, ""),
		plat: fp,
		factory: func(queues []string) Worker {
			return nil
		},
		done: make(chan struct{}),
	}

	pid, err := gensrv.StartLink[poolState](testPID, initArgs, buildGensrvOpts()...)
	assert.NilError(t, err)

	return testPID, pid, fp
}

func TestPool_StartReconcilesToDesiredCounts(t *testing.T) {
	testPID, pid, fp := startTestPool(t, map[string]int{"high,low": 2, "default": 1})

	_, err := genserver.Call(testPID, pid, startMsg{}, 5*time.Second)
	assert.NilError(t, err)

	result, err := genserver.Call(testPID, pid, querySnapshotMsg{}, 5*time.Second)
	assert.NilError(t, err)
	snap := result.(censusSnapshot)

	assert.Equal(t, len(snap.byKey["high,low"]), 2)
	assert.Equal(t, len(snap.byKey["default"]), 1)
	assert.Equal(t, len(fp.forkKeys), 3)
}

func TestPool_RunIterationReapsExitedWorkers(t *testing.T) {
	testPID, pid, fp := startTestPool(t, map[string]int{"default": 1})

	_, err := genserver.Call(testPID, pid, startMsg{}, 5*time.Second)
	assert.NilError(t, err)

	before, err := genserver.Call(testPID, pid, querySnapshotMsg{}, 5*time.Second)
	assert.NilError(t, err)
	pid0 := before.(censusSnapshot).byKey["default"][0]
	fp.pushDead(pid0)

	result, err := genserver.Call(testPID, pid, runIterationMsg{}, 5*time.Second)
	assert.NilError(t, err)
	assert.Assert(t, !result.(iterationResult).terminated)

	// The same iteration that reaps also reconciles, so the dead worker
	// is immediately replaced to hold the desired count at 1 — but it
	// must be a different pid than the one that was reaped.
	after, err := genserver.Call(testPID, pid, querySnapshotMsg{}, 5*time.Second)
	assert.NilError(t, err)
	afterPids := after.(censusSnapshot).byKey["default"]
	assert.Equal(t, len(afterPids), 1)
	assert.Assert(t, afterPids[0] != pid0, "the reaped pid must have been replaced, not left tracked")
}

func TestPool_RunIterationDispatchesSignalAndCanTerminate(t *testing.T) {
	testPID, pid, fp := startTestPool(t, map[string]int{"default": 1})

	_, err := genserver.Call(testPID, pid, startMsg{}, 5*time.Second)
	assert.NilError(t, err)

	// A QUIT triggers a wait-for-reap shutdown (dispatchSignal ->
	// beginShutdown(st, true)), so the live worker must already have an
	// exit queued in the fake or reapUntilEmpty would spin forever
	// waiting for a dead child that never arrives.
	snap, err := genserver.Call(testPID, pid, querySnapshotMsg{}, 5*time.Second)
	assert.NilError(t, err)
	pid0 := snap.(censusSnapshot).byKey["default"][0]
	fp.pushDead(pid0)
	fp.pushSignal(platform.SIGQUIT)

	result, err := genserver.Call(testPID, pid, runIterationMsg{}, 5*time.Second)
	assert.NilError(t, err)
	assert.Assert(t, result.(iterationResult).terminated, "a QUIT signal must transition the pool into shuttingDown")
}
