//go:build unix

package platform

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// supervisedSet is the set installed by InstallSignalTrap: every signal
// the Pool supervisor reacts to, plus SIGCHLD purely to make Sleep
// interruptible when a worker exits (spec.md §4.4, "the supervised signal
// set").
var supervisedSet = map[Signal]os.Signal{
	SIGQUIT:  unix.SIGQUIT,
	SIGINT:   unix.SIGINT,
	SIGTERM:  unix.SIGTERM,
	SIGUSR1:  unix.SIGUSR1,
	SIGUSR2:  unix.SIGUSR2,
	SIGCONT:  unix.SIGCONT,
	SIGHUP:   unix.SIGHUP,
	SIGWINCH: unix.SIGWINCH,
	SIGCHLD:  unix.SIGCHLD,
}

var reverseSignalTable = func() map[os.Signal]Signal {
	m := make(map[os.Signal]Signal, len(supervisedSet))
	for name, sig := range supervisedSet {
		m[sig] = name
	}
	return m
}()

// installSignalTrap registers os/signal.Notify for every signal in
// supervisedSet and starts the goroutine that feeds p.queue. Handlers in Go
// already run outside async-signal-context (the runtime forwards them
// through a dedicated goroutine), so the only discipline required of the
// feeder goroutine is the one spec.md §5 calls out for a real async
// handler: touch nothing but the signal queue.
func (p *realPlatform) installSignalTrap() {
	p.raw = make(chan os.Signal, 64)

	names := make([]os.Signal, 0, len(supervisedSet))
	for _, sig := range supervisedSet {
		names = append(names, sig)
	}
	signal.Notify(p.raw, names...)

	p.feederDone = make(chan struct{})
	go func() {
		defer close(p.feederDone)
		for sig := range p.raw {
			if name, ok := reverseSignalTable[sig]; ok {
				p.queue.push(name)
			}
		}
	}()
}

func (p *realPlatform) releaseSignalsOS() {
	if p.raw == nil {
		return
	}
	signal.Stop(p.raw)
	close(p.raw)
	<-p.feederDone
	p.raw = nil
}

func waitAnyChild(block bool) (pid int, status unix.WaitStatus, err error) {
	flag := unix.WNOHANG
	if block {
		flag = 0
	}
	for {
		pid, err = unix.Wait4(-1, &status, flag, nil)
		if err == unix.EINTR {
			continue
		}
		return pid, status, err
	}
}

func killPid(pid int, sig Signal) error {
	return unix.Kill(pid, supervisedSetSyscall(sig))
}

func supervisedSetSyscall(sig Signal) unix.Signal {
	switch s := supervisedSet[sig].(type) {
	case unix.Signal:
		return s
	default:
		// SIGKILL isn't part of the supervised set (it can't be trapped),
		// but BrutalKill-style callers still need to send it.
		if sig == sigKillName {
			return unix.SIGKILL
		}
		return 0
	}
}

const sigKillName Signal = "KILL"
