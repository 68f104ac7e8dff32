// Command resque-pool-go is the supervisor's process entry point: the
// default invocation runs the Pool supervisor itself; the hidden "work"
// subcommand is what Platform.Fork re-execs into for each spawned
// worker (see platform.Fork's doc comment for why re-exec replaces a
// literal fork()).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/resquepool/resque-pool-go/config"
	"github.com/resquepool/resque-pool-go/logger"
	"github.com/resquepool/resque-pool-go/platform"
	"github.com/resquepool/resque-pool-go/pool"
	"github.com/resquepool/resque-pool-go/pool/workerdefault"
)

func main() {
	root := newRootCommand()
	root.AddCommand(newWorkCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newFactory builds the pool.Factory both the root command (which only
// needs it to satisfy pool.New's signature) and the work subcommand
// (which actually constructs a Worker from it) call. A forked child is a
// brand-new OS process re-exec'd from the same binary, so it cannot
// receive the parent's in-memory Factory/closures across the fork
// boundary (no shared memory survives exec) — both commands reconstruct
// an equivalent Factory from the same environment instead of sharing one
// value (see DESIGN.md's note on the fork boundary).
func newFactory(log *logger.Logger) pool.Factory {
	return func(queues []string) pool.Worker {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			redisURL = "redis://127.0.0.1:6379/0"
		}
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Errorf("parse REDIS_URL: %v", err)
			opts = &redis.Options{Addr: "127.0.0.1:6379"}
		}
		client := redis.NewClient(opts)

		handler := func(ctx context.Context, job workerdefault.Job) error {
			log.Log(logger.Debug, "processing job from {queue}", map[string]any{"queue": job.Queue})
			return nil
		}

		return workerdefault.NewRedisWorker(client, queues, handler, log)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "resque-pool-go",
		Short:         "Supervise a configured set of resque worker processes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor()
		},
	}
	return cmd
}

func runSupervisor() error {
	cfg := config.New()
	log := logger.New(logger.LevelFromEnv(), cfg.AppName).WithRole("manager")
	plat := platform.New()

	p, err := pool.New(cfg, log, plat, newFactory(log),
		pool.WithTermBehavior(termBehaviorFromEnv()),
		pool.HandleWinch(os.Getenv("RESQUE_POOL_HANDLE_WINCH") != ""),
	)
	if err != nil {
		return fmt.Errorf("resque-pool-go: %w", err)
	}

	if err := p.Start(); err != nil {
		return fmt.Errorf("resque-pool-go: %w", err)
	}

	if cfg.Pidfile != "" {
		if err := os.WriteFile(cfg.Pidfile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
			log.Errorf("write pidfile %q: %v", cfg.Pidfile, err)
		}
	}

	if err := p.Join(); err != nil {
		return fmt.Errorf("resque-pool-go: %w", err)
	}

	_ = log.Sync()
	plat.Exit(0)
	return nil
}

func termBehaviorFromEnv() pool.TermBehavior {
	switch os.Getenv("TERM_BEHAVIOR") {
	case "graceful_worker_shutdown_and_wait":
		return pool.TermGracefulShutdownAndWait
	case "graceful_worker_shutdown":
		return pool.TermGracefulShutdown
	default:
		return pool.TermImmediate
	}
}

func newWorkCommand() *cobra.Command {
	var queuesFlag string

	cmd := &cobra.Command{
		Use:    "work",
		Short:  "Run a single worker polling the given queues (internal, used by fork)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(queuesFlag)
		},
	}
	cmd.Flags().StringVar(&queuesFlag, "queues", "", "comma-separated queue-combination key")
	return cmd
}

func runWorker(queuesKey string) error {
	cfg := config.New()
	log := logger.New(logger.LevelFromEnv(), cfg.AppName).WithRole("worker")

	// The child never called Platform.InstallSignalTrap (only the root
	// command does), so signal.NotifyContext here establishes the
	// child's own graceful-quit handling against default dispositions —
	// Platform.ReleaseSignals is a no-op in this process and isn't
	// needed.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	queues := platform.ParseQueueKey(queuesKey)
	worker := newFactory(log)(queues)

	if cfg.AfterPrefork != nil {
		cfg.AfterPrefork(nil, worker)
	}

	return worker.Work(ctx, cfg.Interval)
}
