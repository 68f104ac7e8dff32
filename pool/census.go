package pool

import "sync"

// census is the supervisor's live-child bookkeeping: a mapping from
// queue-combination key to the set of live pids spawned for it, in
// insertion order so that a downsize can deterministically pick "the
// first |delta| pids" (spec.md §4.4, §8 scenario 2).
//
// This is the adapted form of the ChildSpec-slice get/update/delete/split
// helpers: instead of one ChildSpec per managed child, each key owns an
// ordered slice of pids, and the split operation downsize needs is
// "take the first n, leave the rest" rather than supervisor's restart
// bookkeeping.
type census struct {
	mu        sync.Mutex
	pidsByKey map[string][]int
	keyByPid  map[int]string
}

func newCensus() *census {
	return &census{
		pidsByKey: make(map[string][]int),
		keyByPid:  make(map[int]string),
	}
}

// insert records a newly forked pid under key. Invariant (spec.md §8):
// a pid appears under at most one key, so inserting a pid already
// present is a programmer error and is ignored rather than corrupting
// the other key's slice.
func (c *census) insert(key string, pid int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.keyByPid[pid]; exists {
		return
	}
	c.pidsByKey[key] = append(c.pidsByKey[key], pid)
	c.keyByPid[pid] = key
}

// remove deletes pid from the census (called on reap), returning the
// key it belonged to, or ok=false if the pid wasn't tracked.
func (c *census) remove(pid int) (key string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok = c.keyByPid[pid]
	if !ok {
		return "", false
	}
	delete(c.keyByPid, pid)
	c.pidsByKey[key] = removeFirst(c.pidsByKey[key], pid)
	if len(c.pidsByKey[key]) == 0 {
		delete(c.pidsByKey, key)
	}
	return key, true
}

// live returns the current count of tracked pids for key.
func (c *census) live(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pidsByKey[key])
}

// firstN returns the first n pids (insertion order) tracked for key,
// used to pick which pids receive a graceful-quit on downsize — "first
// occurrence" tie-breaking per spec.md §4.4.
func (c *census) firstN(key string, n int) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	pids := c.pidsByKey[key]
	if n > len(pids) {
		n = len(pids)
	}
	out := make([]int, n)
	copy(out, pids[:n])
	return out
}

// allPids concatenates pid sets across all keys — Pool.AllPids.
func (c *census) allPids() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.keyByPid))
	for pid := range c.keyByPid {
		out = append(out, pid)
	}
	return out
}

// keys returns the set of currently-occupied census keys.
func (c *census) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.pidsByKey))
	for k := range c.pidsByKey {
		out = append(out, k)
	}
	return out
}

// keyFor returns the key pid belongs to, or ok=false if untracked —
// Pool.WorkerQueues.
func (c *census) keyFor(pid int) (key string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok = c.keyByPid[pid]
	return key, ok
}

// snapshot returns a copy of the key->pids map, used for reconciliation
// and for the startup/shutdown log lines.
func (c *census) snapshot() map[string][]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]int, len(c.pidsByKey))
	for k, pids := range c.pidsByKey {
		cp := make([]int, len(pids))
		copy(cp, pids)
		out[k] = cp
	}
	return out
}

func removeFirst(pids []int, pid int) []int {
	for i, p := range pids {
		if p == pid {
			return append(pids[:i], pids[i+1:]...)
		}
	}
	return pids
}
