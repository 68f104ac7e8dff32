// Package pool implements the reconciliation engine: the supervisor
// that maintains the live worker census against a configured
// desired-count map and translates OS signals into lifecycle actions
// (spec.md §4.4).
package pool

import (
	"errors"
	"fmt"
	"time"

	"github.com/resquepool/resque-pool-go/erl"
	"github.com/resquepool/resque-pool-go/erl/exitreason"
	"github.com/resquepool/resque-pool-go/erl/genserver"
	"github.com/resquepool/resque-pool-go/erl/gensrv"
	"github.com/resquepool/resque-pool-go/erl/recurringtask"
	"github.com/resquepool/resque-pool-go/erl/task"

	"github.com/resquepool/resque-pool-go/config"
	"github.com/resquepool/resque-pool-go/logger"
)

// managerName is how the running Pool registers itself (erl.Register),
// so diagnostics code or tests can find it via erl.WhereIs without
// threading the PID through every call site.
const managerName erl.Name = "resque_pool_manager"

// Option configures a Pool at construction.
type Option func(*options)

type options struct {
	handleWinch  bool
	termBehavior TermBehavior
}

// HandleWinch enables the window-change drain handler (spec.md §4.4).
// Off by default, matching the original's opt-in behavior.
func HandleWinch(enabled bool) Option {
	return func(o *options) { o.handleWinch = enabled }
}

// WithTermBehavior selects what a terminate signal does (spec.md §4.4).
// Defaults to TermImmediate.
func WithTermBehavior(b TermBehavior) Option {
	return func(o *options) { o.termBehavior = b }
}

// Pool is the handle returned by New: the public operations a caller
// (cmd/resque-pool-go's root command) drives. The reconciliation logic
// itself runs inside a gensrv-registered actor so that reap, signal
// dispatch, and reconciliation are always serialized against each other,
// matching spec.md §5's single-threaded-cooperative model.
type Pool struct {
	gensrvPID erl.PID
	done      chan struct{}
	log       *logger.Logger
}

// poolState is the gensrv actor's state.
type poolState struct {
	cfg          *config.Config
	log          *logger.Logger
	plat         platformAPI
	factory      Factory
	census       *census
	handleWinch  bool
	termBehavior TermBehavior
	st           state
	done         chan struct{}
	bridgePID    erl.PID
}

// New constructs a Pool. It does not yet touch the OS or configuration
// — call Start to do that.
func New(cfg *config.Config, log *logger.Logger, plat platformAPI, factory Factory, opts ...Option) (*Pool, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	self := erl.RootPID()
	done := make(chan struct{})

	initArgs := poolInitArgs{
		cfg: cfg, log: log, plat: plat, factory: factory,
		handleWinch: o.handleWinch, termBehavior: o.termBehavior, done: done,
	}

	pid, err := gensrv.StartLink[poolState](self, initArgs, buildGensrvOpts()...)
	if err != nil {
		return nil, fmt.Errorf("pool: start: %w", err)
	}

	return &Pool{gensrvPID: pid, done: done, log: log}, nil
}

type poolInitArgs struct {
	cfg          *config.Config
	log          *logger.Logger
	plat         platformAPI
	factory      Factory
	handleWinch  bool
	termBehavior TermBehavior
	done         chan struct{}
}

func buildGensrvOpts() []gensrv.GenSrvOpt[poolState] {
	return []gensrv.GenSrvOpt[poolState]{
		gensrv.SetName[poolState](managerName),
		gensrv.RegisterInit(poolInit),
		gensrv.RegisterCall(startMsg{}, handleStart),
		gensrv.RegisterCall(runIterationMsg{}, handleRunIteration),
		gensrv.RegisterCall(querySnapshotMsg{}, handleQuerySnapshot),
		gensrv.RegisterCast(signalObservedMsg{}, handleSignalObserved),
		gensrv.RegisterTerminate(handlePoolTerminate),
	}
}

func poolInit(self erl.PID, args poolInitArgs) (poolState, any, error) {
	// gensrv.SetName(managerName) (see buildGensrvOpts) already registers
	// self under managerName as part of genserver's own startup path; no
	// manual erl.Register call needed here.
	st := poolState{
		cfg:          args.cfg,
		log:          args.log,
		plat:         args.plat,
		factory:      args.factory,
		census:       newCensus(),
		handleWinch:  args.handleWinch,
		termBehavior: args.termBehavior,
		st:           starting,
		done:         args.done,
	}
	return st, nil, nil
}

// Start initializes configuration, installs the signal trap, runs a
// first reconciliation, and logs the startup line (spec.md §4.4,
// Pool.start()).
func (p *Pool) Start() error {
	_, err := genserver.Call(erl.RootPID(), p.gensrvPID, startMsg{}, 30*time.Second)
	if err != nil {
		return fmt.Errorf("pool: start: %w", err)
	}
	return nil
}

type startMsg struct{}

// handleStart implements spec.md §4.4's Pool.start(): initialize
// configuration, install the signal trap, spawn the observability bridge
// that Casts arriving signals into this actor, run one reconciliation so
// the pool is already at its desired counts before Join's loop begins,
// and log the startup line.
func handleStart(self erl.PID, _ startMsg, from genserver.From, st poolState) (genserver.CallResult[poolState], error) {
	if err := st.cfg.Initialize(); err != nil {
		return genserver.CallResult[poolState]{}, fmt.Errorf("pool: start: %w", err)
	}

	st.plat.InstallSignalTrap()

	bridgeStop := make(chan struct{})
	bridgePID, err := task.StartLink(self,
		func() error { return runSignalBridge(self, st.plat, bridgeStop) },
		func() error { close(bridgeStop); return nil },
	)
	if err != nil {
		return genserver.CallResult[poolState]{}, fmt.Errorf("pool: start signal bridge: %w", err)
	}
	st.bridgePID = bridgePID

	st.st = running
	st = maintainWorkerCount(st)

	st.log.Log(logger.Notice, "pool started with pids {pids}", map[string]any{"pids": st.census.allPids()})

	return genserver.CallResult[poolState]{Msg: nil, State: st}, nil
}

// runSignalBridge is the body of the task-wrapped goroutine handleStart
// spawns: it blocks on plat.SignalReady() and Casts a signalObservedMsg
// into poolPID each time one fires, purely so logs/tests can observe "a
// signal arrived" independent of handleRunIteration's own Sleep, which
// watches the identical underlying wake channel for the real pacing. It
// exits once stop is closed, which the task's cleanup callback does.
func runSignalBridge(poolPID erl.PID, plat platformAPI, stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		case <-plat.SignalReady():
			if plat.PendingSignalCount() == 0 {
				continue
			}
			genserver.Cast(poolPID, signalObservedMsg{}) //nolint:errcheck
		}
	}
}

// Join runs the supervisor loop until a shutdown signal is handled, then
// returns (spec.md §4.4, Pool.join()). Internally this drives a
// recurringtask process that repeatedly calls into the gensrv to run one
// main-loop iteration; Join itself blocks on the done channel, which
// handleRunIteration closes once the pool reaches shuttingDown (and the
// terminate handler closes if the actor exits first).
func (p *Pool) Join() error {
	self := erl.RootPID()

	tickPID, err := recurringtask.StartLink[tickState, tickArgs](
		self, tickFun, tickInit, tickArgs{poolPID: p.gensrvPID},
		recurringtask.SetInterval(time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("pool: start reconciliation loop: %w", err)
	}

	<-p.done

	recurringtask.Stop(self, tickPID) //nolint:errcheck

	return nil
}

type tickState struct {
	poolPID erl.PID
}

type tickArgs struct {
	poolPID erl.PID
}

var errLoopDone = errors.New("pool: main loop terminated")

func tickInit(self erl.PID, args tickArgs) (tickState, error) {
	return tickState{poolPID: args.poolPID}, nil
}

func tickFun(self erl.PID, state tickState) (tickState, error) {
	result, err := genserver.Call(self, state.poolPID, runIterationMsg{}, 5*time.Minute)
	if err != nil {
		return state, err
	}
	if r, ok := result.(iterationResult); ok && r.terminated {
		return state, errLoopDone
	}
	return state, nil
}

// runIterationMsg triggers one main-loop iteration (spec.md §4.4,
// "Main-loop ordering"). Sent by the recurringtask driver in Join, and
// directly usable from tests via genserver.Call for deterministic
// single-step assertions.
type runIterationMsg struct{}

type iterationResult struct {
	terminated bool
}

func handleRunIteration(self erl.PID, _ runIterationMsg, from genserver.From, st poolState) (genserver.CallResult[poolState], error) {
	st = reapAllWorkers(st, false)

	if sig, ok := st.plat.NextSignal(); ok {
		st = dispatchSignal(st, sig)
	}

	if st.st == running && st.plat.PendingSignalCount() == 0 {
		st = maintainWorkerCount(st)
		st.plat.Sleep(st.cfg.Interval)
	}

	st.plat.SetProcessTitle(titleFor(st))

	terminated := st.st == shuttingDown
	if terminated && st.done != nil {
		close(st.done)
		st.done = nil // only close once
	}

	return genserver.CallResult[poolState]{Msg: iterationResult{terminated: terminated}, State: st}, nil
}

func titleFor(st poolState) string {
	app := ""
	if st.cfg.AppName != "" {
		app = "[" + st.cfg.AppName + "]"
	}
	return fmt.Sprintf("resque-pool-manager%s: %s", app, st.st)
}

// signalObservedMsg carries no payload: the bridge only tells the actor
// that the queue became non-empty, never which signal, since popping it
// here (rather than in handleRunIteration's NextSignal) would steal the
// value the main loop is responsible for consuming.
type signalObservedMsg struct{}

// handleSignalObserved is the observability hook the task-wrapped signal
// bridge Casts into: it does not itself drive reconciliation (the
// interruptible plat.Sleep inside handleRunIteration already wakes on
// the same underlying signal queue), it only gives tests and logs a
// point to observe "a signal arrived" independent of the reconciliation
// cadence.
func handleSignalObserved(self erl.PID, _ signalObservedMsg, st poolState) (poolState, any, error) {
	st.log.Log(logger.Debug, "signal observed, pending count {count}", map[string]any{"count": st.plat.PendingSignalCount()})
	return st, nil, nil
}

func handlePoolTerminate(self erl.PID, reason error, st poolState) {
	if st.bridgePID != erl.UndefinedPID && erl.IsAlive(st.bridgePID) {
		task.Stop(st.bridgePID) //nolint:errcheck
	}
	if st.done != nil {
		close(st.done)
	}
	if !exitreason.IsNormal(reason) && !exitreason.IsShutdown(reason) {
		st.log.Errorf("pool terminating abnormally: %v", reason)
	}
}
