package pool

import "context"

// Worker is the in-child job-execution body. The supervisor never
// defines its semantics (spec.md §1, "the job-execution body inside
// each worker... treated as an external collaborator") — it only
// constructs one via Factory and calls Work in the forked child.
type Worker interface {
	// Work runs the worker's dequeue/run loop. interval is the
	// configured polling interval in seconds (spec.md §6, INTERVAL).
	// Work returns when the worker should exit — typically because its
	// context was canceled by the signal.NotifyContext the work
	// subcommand sets up for QUIT, TERM and INT.
	Work(ctx context.Context, interval float64) error
}

// Factory builds a Worker for one queue-combination key, receiving the
// already-comma-split queue list in poll-priority order (spec.md §9,
// "Worker implementation as a configurable type": "model this as a
// factory interface (queues) -> Worker").
type Factory func(queues []string) Worker
