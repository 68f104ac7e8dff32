package pool

import "github.com/resquepool/resque-pool-go/platform"

// platformAPI is the subset of *platform.Platform the pool package
// depends on, declared here (consumer side) so tests can substitute a
// fake without forking real OS processes. *platform.Platform satisfies
// this implicitly; no changes to the platform package are needed.
type platformAPI interface {
	InstallSignalTrap()
	ReleaseSignals()
	NextSignal() (platform.Signal, bool)
	PendingSignalCount() int
	SignalReady() <-chan struct{}
	Sleep(seconds float64) (woke bool)
	Fork(queueKey string, extraEnv []string) (pid int, err error)
	SignalPids(pids []int, sig platform.Signal)
	NextDeadChild(wait bool) (platform.ExitStatus, bool)
	SetQuitOnExitSignal(flag bool, sig platform.Signal)
	Exit(code int)
	SetProcessTitle(title string)
}
