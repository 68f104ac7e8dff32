package pool

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/resquepool/resque-pool-go/logger"
	"github.com/resquepool/resque-pool-go/platform"
)

// maintainWorkerCount implements spec.md §4.4's reconciliation: for every
// key in the union of the desired-count map and the census, compute
// delta = desired - live. A positive delta forks that many new children
// under key; a negative delta sends a graceful-quit to the first |delta|
// pids (insertion order), which is the adapted form of the deleted
// supervisor's "split children, terminate the tail" downsize technique
// applied to "terminate the head" instead (spec.md §8 scenario 2's
// tie-break: earliest-spawned pids are asked to quit first).
func maintainWorkerCount(st poolState) poolState {
	desired := st.cfg.DesiredCounts()

	keys := make(map[string]struct{}, len(desired))
	for k := range desired {
		keys[k] = struct{}{}
	}
	for _, k := range st.census.keys() {
		keys[k] = struct{}{}
	}

	for key := range keys {
		want := desired[key]
		have := st.census.live(key)
		delta := want - have

		switch {
		case delta > 0:
			st = spawnWorkers(st, key, delta)
		case delta < 0:
			victims := st.census.firstN(key, -delta)
			st.plat.SignalPids(victims, platform.GracefulQuit)
		}
	}

	return st
}

// spawnWorkers forks n new children for key, inserting each into the
// census as it comes up. A fork failure is logged and the process exits
// non-zero (spec.md §7: a failed fork leaves the supervisor unable to
// maintain its core invariant, so it is not treated as recoverable).
func spawnWorkers(st poolState, key string, n int) poolState {
	for i := 0; i < n; i++ {
		pid, err := st.plat.Fork(key, nil)
		if err != nil {
			st.log.Errorf("fork for queues %q failed: %v", key, err)
			st.plat.Exit(1)
			return st
		}
		st.census.insert(key, pid)
		st.log.Log(logger.Notice, "spawned worker {pid} for queues {queues}", map[string]any{
			"pid":    pid,
			"queues": key,
		})
	}
	return st
}

// reapAllWorkers drains Platform.NextDeadChild, removing every reaped pid
// from the census and logging its exit status (spec.md §4.4,
// Pool.reap-all-workers(wait)). When wait is true it blocks for at least
// one exit before returning, used by the graceful-shutdown-and-wait
// signal handlers; when false it's the non-blocking drain the main loop
// runs every iteration.
func reapAllWorkers(st poolState, wait bool) poolState {
	first := true
	for {
		status, ok := st.plat.NextDeadChild(wait && first)
		first = false
		if !ok {
			return st
		}

		key, _ := st.census.remove(status.Pid)
		st.log.Log(logger.Notice, "worker {pid} from queues {queues} exited {status}", map[string]any{
			"pid":    status.Pid,
			"queues": key,
			"status": describeExitStatus(status.Status),
		})
	}
}

func describeExitStatus(status unix.WaitStatus) string {
	switch {
	case status.Exited():
		return fmt.Sprintf("exit status %d", status.ExitStatus())
	case status.Signaled():
		return fmt.Sprintf("signal %v", status.Signal())
	default:
		return "unknown"
	}
}

// reapUntilEmpty blocks, reaping one at a time, until the census has no
// live pids left under any key — used by TermGracefulShutdownAndWait and
// a quit signal (spec.md §4.4's "block-reap" shutdown behavior).
func reapUntilEmpty(st poolState) poolState {
	for len(st.census.allPids()) > 0 {
		st = reapAllWorkers(st, true)
	}
	return st
}
