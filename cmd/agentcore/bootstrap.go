package main

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/agent/providers"
	appconfig "github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/jobs"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/permissions"
	"github.com/haasonsaas/agentcore/internal/store"
	"github.com/haasonsaas/agentcore/internal/toolsrt"
	"github.com/haasonsaas/agentcore/internal/worker"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// openStore selects a Store backend by cfg.Database.Driver, the way
// the teacher's openMigrationDB picks a sql.Open driver from
// cfg.Database.URL.
func openStore(cfg appconfig.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "memory", "":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.Database.DSN)
	case "postgres":
		return store.NewPostgresStore(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// openDispatcher selects a jobs.Dispatcher backend by cfg.Queue.Backend.
func openDispatcher(ctx context.Context, cfg appconfig.Config) (jobs.Dispatcher, error) {
	switch cfg.Queue.Backend {
	case "local", "":
		return jobs.NewLocalDispatcher(cfg.Queue.LocalDir)
	case "sqs":
		sqsCfg := jobs.DefaultSQSConfig()
		sqsCfg.QueueURL = cfg.Queue.QueueURL
		if cfg.Queue.VisibilityTimeout > 0 {
			sqsCfg.VisibilityTimeout = cfg.Queue.VisibilityTimeout
		}
		return jobs.NewSQSDispatcher(ctx, sqsCfg)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

// buildToolRegistry wires the four core tools against a local runtime,
// applying cfg.Loop.ToolTimeout as BashTool's per-execution wall clock.
func buildToolRegistry(cfg appconfig.Config) (*toolsrt.Registry, error) {
	reg := toolsrt.NewRegistry()
	bash := toolsrt.NewBashTool(toolsrt.NewLocalRuntime())
	if cfg.Loop.ToolTimeout > 0 {
		bash.Timeout = cfg.Loop.ToolTimeout
	}
	for _, t := range []toolsrt.Tool{
		bash,
		&toolsrt.FileReadTool{},
		&toolsrt.FileWriteTool{},
		&toolsrt.FileEditTool{},
	} {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// timeoutProvider enforces cfg.Loop.ProviderTimeout on every Call,
// since the Provider interface itself has no deadline knob and
// SPEC_FULL.md's LoopConfig names one.
type timeoutProvider struct {
	agent.Provider
	timeout time.Duration
}

func (p timeoutProvider) Call(ctx context.Context, req agent.Request) (*agent.Result, error) {
	if p.timeout <= 0 {
		return p.Provider.Call(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Provider.Call(ctx, req)
}

// buildProviderFactory returns a worker.ProviderFactory that dispatches
// on bot.Dialect, keeping internal/worker free of any dependency on
// either provider SDK.
func buildProviderFactory(cfg appconfig.Config) worker.ProviderFactory {
	return func(bot models.BotConfig) (agent.Provider, error) {
		var p agent.Provider
		switch bot.Dialect {
		case models.DialectOpenAI:
			p = providers.NewOpenAIProvider(bot)
		case models.DialectAnthropic:
			p = providers.NewAnthropicProvider(bot)
		default:
			return nil, fmt.Errorf("bot %s/%s: unknown provider dialect %q", bot.UserID, bot.Name, bot.Dialect)
		}
		return timeoutProvider{Provider: p, timeout: cfg.Loop.ProviderTimeout}, nil
	}
}

// loadPermissions builds the permission evaluator from cfg.Permissions.Path.
func loadPermissions(cfg appconfig.Config) (*permissions.Evaluator, error) {
	return permissions.Load(cfg.Permissions.Path)
}

func buildLogger(cfg appconfig.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

func agentLoopConfig(cfg appconfig.Config) agent.Config {
	loop := agent.DefaultConfig()
	if cfg.Loop.MaxIterations > 0 {
		loop.MaxIterations = cfg.Loop.MaxIterations
	}
	return loop
}
