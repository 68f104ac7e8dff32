package pool

import (
	"sync"

	"github.com/resquepool/resque-pool-go/platform"
)

// fakePlatform is a hand-rolled test double for platformAPI: reconcile.go
// and signals.go only need a handful of these methods to drive
// deterministic assertions, so a mock generated by go.uber.org/mock would
// add ceremony (expectation setup per call) for no benefit over a small
// in-memory fake — the teacher itself reaches for hand-written fakes over
// generated mocks whenever a type is this small (see erl's own
// TestRunnable in erl/testutil_test.go).
type fakePlatform struct {
	mu sync.Mutex

	nextPid        int
	forkKeys       []string
	forkErr        error
	signaled       map[int][]platform.Signal
	dead           []platform.ExitStatus
	pendingSignals []platform.Signal
	exitCode       int
	exited         bool
	quitOnExit     bool
	quitOnSignal   platform.Signal
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{nextPid: 1000, signaled: make(map[int][]platform.Signal)}
}

var _ platformAPI = (*fakePlatform)(nil)

func (f *fakePlatform) InstallSignalTrap()  {}
func (f *fakePlatform) ReleaseSignals()     {}
func (f *fakePlatform) SetProcessTitle(string) {}

func (f *fakePlatform) NextSignal() (platform.Signal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pendingSignals) == 0 {
		return "", false
	}
	sig := f.pendingSignals[0]
	f.pendingSignals = f.pendingSignals[1:]
	return sig, true
}

func (f *fakePlatform) PendingSignalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pendingSignals)
}

func (f *fakePlatform) pushSignal(sig platform.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingSignals = append(f.pendingSignals, sig)
}
func (f *fakePlatform) SignalReady() <-chan struct{} {
	ch := make(chan struct{})
	return ch
}
func (f *fakePlatform) Sleep(float64) bool { return false }

func (f *fakePlatform) Fork(queueKey string, _ []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forkErr != nil {
		return -1, f.forkErr
	}
	pid := f.nextPid
	f.nextPid++
	f.forkKeys = append(f.forkKeys, queueKey)
	return pid, nil
}

func (f *fakePlatform) SignalPids(pids []int, sig platform.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pid := range pids {
		f.signaled[pid] = append(f.signaled[pid], sig)
	}
}

func (f *fakePlatform) NextDeadChild(wait bool) (platform.ExitStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.dead) == 0 {
		return platform.ExitStatus{}, false
	}
	status := f.dead[0]
	f.dead = f.dead[1:]
	return status, true
}

func (f *fakePlatform) pushDead(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead = append(f.dead, platform.ExitStatus{Pid: pid})
}

func (f *fakePlatform) SetQuitOnExitSignal(flag bool, sig platform.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quitOnExit = flag
	f.quitOnSignal = sig
}

func (f *fakePlatform) Exit(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exitCode = code
	f.exited = true
}
