package erl

import "github.com/resquepool/resque-pool-go/erl/exitreason"

// an opaque unique string. Don't rely on structure format or even size for that matter.
type Ref string

// A Process managed
type Runnable interface {
	Receive(self PID, inbox <-chan any) error
}

type ProcFlag string

var TrapExit ProcFlag = "trap_exit"

// ExitMsg is delivered to a Runnable's Receive method (when trapping exits)
// to report that a linked process has exited.
type ExitMsg struct {
	Proc   PID
	Reason *exitreason.S
	Link   bool
}

// DownMsg is delivered to a Runnable's Receive method to report that a
// monitored process has exited.
type DownMsg struct {
	Proc   PID
	Ref    Ref
	Reason *exitreason.S
}
