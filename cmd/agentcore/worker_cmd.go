package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	appconfig "github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/jobs"
	"github.com/haasonsaas/agentcore/internal/worker"
	"github.com/spf13/cobra"
)

// buildWorkerCmd runs the C7 worker pool: the process that claims jobs
// off the dispatcher and drives each chat's agent loop to a new
// terminal state. Grounded on the teacher's service-command shutdown
// pattern (signal.NotifyContext + a bounded Stop on exit).
func buildWorkerCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the job worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runWorker(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "agentcore.yaml", "Path to YAML configuration file")
	return cmd
}

func runWorker(ctx context.Context, cfg appconfig.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := buildLogger(cfg)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	dispatcher, err := openDispatcher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open dispatcher: %w", err)
	}
	defer dispatcher.Close()

	tools, err := buildToolRegistry(cfg)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	perms, err := loadPermissions(cfg)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	defer perms.Close()
	if cfg.Permissions.Watch {
		if err := perms.Watch(ctx, logger.Slog()); err != nil {
			return fmt.Errorf("watch permissions: %w", err)
		}
	}

	// The on-disk local queue needs a janitor to reclaim jobs stuck in
	// running/ past their visibility window; the SQS binding has no
	// analogue (the broker reclaims on its own).
	if local, ok := dispatcher.(*jobs.LocalDispatcher); ok {
		maxAge := cfg.Queue.VisibilityTimeout
		if maxAge <= 0 {
			maxAge = jobs.DefaultVisibilityTimeout
		}
		janitor := jobs.NewJanitor(local, maxAge, logger.Slog())
		if err := janitor.Start(""); err != nil {
			return fmt.Errorf("start janitor: %w", err)
		}
		defer janitor.Stop()
	}

	poolCfg := worker.DefaultConfig()
	poolCfg.Loop = agentLoopConfig(cfg)
	pool := worker.New(dispatcher, st, tools, perms, buildProviderFactory(cfg), poolCfg, logger.Slog())

	pool.Start(ctx)
	logger.Info(ctx, "worker pool started", "concurrency", poolCfg.Concurrency)

	<-ctx.Done()
	logger.Info(ctx, "shutting down worker pool")

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn(ctx, "worker pool shutdown timed out")
	}
	return nil
}
