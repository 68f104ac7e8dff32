package pool

import (
	"time"

	"github.com/resquepool/resque-pool-go/erl"
	"github.com/resquepool/resque-pool-go/erl/genserver"

	"github.com/resquepool/resque-pool-go/logger"
)

// censusSnapshot is what the census-query Call handler returns: a plain
// value safe to hand back across the Call boundary without exposing the
// actor's live *census to the caller's goroutine.
type censusSnapshot struct {
	byKey map[string][]int
}

type querySnapshotMsg struct{}

func handleQuerySnapshot(self erl.PID, _ querySnapshotMsg, from genserver.From, st poolState) (genserver.CallResult[poolState], error) {
	return genserver.CallResult[poolState]{Msg: censusSnapshot{byKey: st.census.snapshot()}, State: st}, nil
}

func (p *Pool) snapshot() censusSnapshot {
	result, err := genserver.Call(erl.RootPID(), p.gensrvPID, querySnapshotMsg{}, 10*time.Second)
	if err != nil {
		return censusSnapshot{}
	}
	snap, _ := result.(censusSnapshot)
	return snap
}

// AllPids reports every live worker pid across every queue combination
// (spec.md §4.4, Pool.report-worker-pool-pids()'s underlying data).
func (p *Pool) AllPids() []int {
	snap := p.snapshot()
	out := make([]int, 0)
	for _, pids := range snap.byKey {
		out = append(out, pids...)
	}
	return out
}

// WorkerQueues returns the queue-combination key pid was spawned for, or
// ok=false if pid isn't currently tracked.
func (p *Pool) WorkerQueues(pid int) (string, bool) {
	snap := p.snapshot()
	for key, pids := range snap.byKey {
		for _, candidate := range pids {
			if candidate == pid {
				return key, true
			}
		}
	}
	return "", false
}

// AllKnownQueues returns the union of configured queue-combination keys
// and keys the census currently has live pids under (spec.md §4.4's
// invariant: all-known-queues() ⊇ known-queues() ∪ keys(census) — a key
// can outlive its configuration entry while its workers drain).
func (p *Pool) AllKnownQueues(cfgKnownQueues []string) []string {
	snap := p.snapshot()
	seen := make(map[string]struct{}, len(cfgKnownQueues)+len(snap.byKey))
	out := make([]string, 0, len(cfgKnownQueues)+len(snap.byKey))
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, k := range cfgKnownQueues {
		add(k)
	}
	for k := range snap.byKey {
		add(k)
	}
	return out
}

// ReportWorkerPoolPids logs the current census snapshot — spec.md §4.4's
// Pool.report-worker-pool-pids(). Nothing in this module calls it; it is
// available to callers of the Pool.
func (p *Pool) ReportWorkerPoolPids() {
	snap := p.snapshot()
	p.log.Log(logger.Notice, "worker pool pids {pids}", map[string]any{"pids": snap.byKey})
}
