package platform

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// ExitStatus is what NextDeadChild reports for a reaped child: its pid and
// the raw wait status the kernel returned, which the pool package
// formats for its log line (describeExitStatus) via WaitStatus's own
// accessors.
type ExitStatus struct {
	Pid    int
	Status unix.WaitStatus
}

// GracefulQuit is the signal forwarded to a worker when the supervisor
// wants it to finish its current job and exit; resque's worker body
// traps it distinctly from an immediate Terminate.
const GracefulQuit = SIGQUIT

// Platform is the thin abstraction over the host OS the rest of
// resque-pool-go is built on: forking (via re-exec), delivering signals,
// sleeping, and reaping dead children. Exactly one should exist per
// process — see the package doc comment.
type Platform struct {
	queue *signalQueue

	mu             sync.Mutex
	tracked        map[int]struct{}
	quitOnExit     bool
	lastExitSignal Signal

	raw        chan os.Signal
	feederDone chan struct{}
}

// realPlatform is an alias kept distinct from Platform only so the
// //go:build unix file can attach installSignalTrap/releaseSignalsOS
// methods without every field needing to be exported across files.
type realPlatform = Platform

// New constructs the process's single Platform. Call once, near the top
// of main, before spawning any children.
func New() *Platform {
	return &Platform{
		queue:   newSignalQueue(),
		tracked: make(map[int]struct{}),
	}
}

// InstallSignalTrap registers asynchronous handlers for the full
// supervised signal set (spec.md §4.4). The handler's only effect is to
// append to the internal signal queue; all other work happens
// synchronously off of NextSignal/PendingSignalCount.
func (p *Platform) InstallSignalTrap() {
	p.installSignalTrap()
}

// ReleaseSignals restores default dispositions for every signal
// InstallSignalTrap trapped in this process. A re-exec'd work child
// never installs the trap and does not call this.
func (p *Platform) ReleaseSignals() {
	p.releaseSignalsOS()
}

// NextSignal pops the oldest buffered signal. The bool is false if the
// queue was empty (the null sentinel from spec.md §4.1).
func (p *Platform) NextSignal() (Signal, bool) {
	return p.queue.pop()
}

// PendingSignalCount returns the size of the signal queue.
func (p *Platform) PendingSignalCount() int {
	return p.queue.len()
}

// SignalReady returns a channel that's closed the next time a signal is
// appended to the queue. Callers select on it alongside their own stop
// channel instead of polling PendingSignalCount; NextSignal must still be
// called afterward to actually pop the value.
func (p *Platform) SignalReady() <-chan struct{} {
	return p.queue.waitChan()
}

// Sleep suspends the caller for up to the given duration in seconds,
// returning early (with woke=true) if a signal is delivered in the
// meantime.
func (p *Platform) Sleep(seconds float64) (woke bool) {
	if seconds <= 0 {
		return p.PendingSignalCount() > 0
	}
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-p.queue.waitChan():
		return true
	case <-timer.C:
		return false
	}
}

// Fork is the re-exec translation of spec.md's fork(): rather than
// literally duplicating the process (unsafe for a running Go runtime),
// it spawns a new OS process running the same binary with the hidden
// "work" subcommand, passing the queue key so the child knows what to
// poll. It returns the child's pid, or a negative sentinel on failure,
// matching the contract fork() documents for its caller.
func (p *Platform) Fork(queueKey string, extraEnv []string) (pid int, err error) {
	exe, err := os.Executable()
	if err != nil {
		return -1, fmt.Errorf("platform: resolve executable for fork: %w", err)
	}

	cmd := exec.Command(exe, "work", "--queues="+queueKey)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.Env = append(os.Environ(), extraEnv...)
	// Run as its own process group leader would diverge from resque-pool's
	// actual semantics (workers share the supervisor's group so a signal
	// to the group reaches them too); leave it default.

	if startErr := cmd.Start(); startErr != nil {
		return -1, fmt.Errorf("platform: fork: %w", startErr)
	}

	childPid := cmd.Process.Pid
	p.mu.Lock()
	p.tracked[childPid] = struct{}{}
	p.mu.Unlock()

	// Detach from the *os.Process without waiting on it ourselves through
	// cmd.Wait; reaping is done via NextDeadChild's own unix.Wait4 calls so
	// that the process's exit status is observable to arbitrary callers,
	// not just whichever goroutine called Start.
	if releaser, ok := any(cmd.Process).(interface{ Release() error }); ok {
		_ = releaser.Release()
	}

	return childPid, nil
}

// SignalPids delivers sig to each pid in pids. A pid that no longer
// exists is silently ignored — the spec expects races with reaping.
func (p *Platform) SignalPids(pids []int, sig Signal) {
	for _, pid := range pids {
		if err := killPid(pid, sig); err != nil && err != unix.ESRCH {
			// best effort; the caller has no recourse beyond logging, which
			// is the pool package's job, not this leaf abstraction's.
			_ = err
		}
	}
}

// NextDeadChild returns the next (pid, exit-status) pair for a tracked
// child that has exited. When wait is false it is non-blocking and
// returns ok=false if nothing has exited since the last call. When wait
// is true it blocks until at least one tracked child exits.
func (p *Platform) NextDeadChild(wait bool) (ExitStatus, bool) {
	p.mu.Lock()
	if len(p.tracked) == 0 {
		p.mu.Unlock()
		return ExitStatus{}, false
	}
	p.mu.Unlock()

	pid, status, err := waitAnyChild(wait)
	if err != nil || pid <= 0 {
		return ExitStatus{}, false
	}

	p.mu.Lock()
	delete(p.tracked, pid)
	p.mu.Unlock()

	return ExitStatus{Pid: pid, Status: status}, true
}

// SetQuitOnExitSignal records whether the process, on its final return
// from the supervisor loop, should exit with a code derived from the
// terminating signal rather than 0.
func (p *Platform) SetQuitOnExitSignal(flag bool, sig Signal) {
	p.mu.Lock()
	p.quitOnExit = flag
	p.lastExitSignal = sig
	p.mu.Unlock()
}

// Exit terminates the process with the appropriate code: the
// quit-on-exit-signal's conventional 128+n code if set, otherwise the
// plain code passed in (normally 0).
func (p *Platform) Exit(code int) {
	p.mu.Lock()
	quit, sig := p.quitOnExit, p.lastExitSignal
	p.mu.Unlock()

	if quit {
		os.Exit(128 + signalNumber(sig))
	}
	os.Exit(code)
}

func signalNumber(sig Signal) int {
	n := int(supervisedSetSyscall(sig))
	if n <= 0 {
		return 0
	}
	return n
}

// SetProcessTitle best-effort renames the process as seen in `ps`. No
// library in the corpus offers proctitle rewriting (it requires
// clobbering argv's backing array, which every example repo that forks
// real OS children leaves alone); left as a documented no-op rather than
// hand-rolled unsafe argv surgery.
func (p *Platform) SetProcessTitle(title string) {
	_ = title
}

// ParseQueueKey splits a queue-combination key on commas into the
// worker's poll-order queue list. The work subcommand, Fork's child
// side, calls it; Platform is the leaf with no dependents to create an
// import cycle with.
func ParseQueueKey(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, ",")
}
