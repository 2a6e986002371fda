// Package worker implements the worker runtime (C7): the process that
// claims a Job off the dispatcher, loads the chat it names, drives the
// agent loop to a new terminal state, and persists the outcome.
//
// Grounded on the teacher's internal/infra.WorkerPool[T, R] for the
// concurrent-goroutine shape (N long-lived goroutines pulling off a
// shared source), adapted from a bounded in-process channel onto
// jobs.Dispatcher's Receive/Ack/Nack protocol, since a job here comes
// from a possibly-remote queue rather than an in-process Submit call.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/jobs"
	"github.com/haasonsaas/agentcore/internal/permissions"
	"github.com/haasonsaas/agentcore/internal/store"
	"github.com/haasonsaas/agentcore/internal/toolsrt"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// ProviderFactory builds a Provider for a resolved bot configuration.
// Supplied by the caller (cmd/agentcore) so this package never imports
// internal/agent/providers directly, keeping the two dialect SDKs out
// of the worker's own dependency surface.
type ProviderFactory func(bot models.BotConfig) (agent.Provider, error)

// Config bounds a Pool's behavior.
type Config struct {
	Concurrency int // number of goroutines pulling jobs; default 4
	Loop        agent.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Concurrency: 4, Loop: agent.DefaultConfig()}
}

// Pool runs Config.Concurrency goroutines, each looping
// Dispatcher.Receive -> process -> Ack/Nack, per spec.md §4.6/§4.7.
type Pool struct {
	dispatcher jobs.Dispatcher
	store      store.Store
	tools      *toolsrt.Registry
	perms      *permissions.Evaluator
	providers  ProviderFactory
	cfg        Config
	logger     *slog.Logger

	locks chatLockTable

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Pool. logger may be nil (slog.Default() is used then).
func New(d jobs.Dispatcher, st store.Store, tools *toolsrt.Registry, perms *permissions.Evaluator, providers ProviderFactory, cfg Config, logger *slog.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		dispatcher: d,
		store:      st,
		tools:      tools,
		perms:      perms,
		providers:  providers,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start launches the pool's goroutines. Call Stop to shut down.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Stop signals all goroutines to exit and waits for in-flight jobs to
// finish their current iteration.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		del, err := p.dispatcher.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("worker: receive failed", "worker", id, "error", err)
			continue
		}
		if del == nil {
			continue
		}
		p.handle(ctx, del)
	}
}

// handle enforces the at-most-one-worker-per-chat_id policy with an
// in-process advisory lock (the queue's own visibility timeout is the
// first line of defense; this closes the gap where two goroutines in
// the same process each separately Receive a redelivered or
// re-enqueued job for the same chat). A chat already locked is Nacked
// immediately so another poll picks it up once the lock is free,
// rather than blocking this goroutine.
func (p *Pool) handle(ctx context.Context, del *jobs.Delivery) {
	if !p.locks.TryLock(del.Job.ChatID) {
		if err := p.dispatcher.Nack(ctx, del); err != nil {
			p.logger.Error("worker: nack contended job", "chat_id", del.Job.ChatID, "error", err)
		}
		return
	}
	defer p.locks.Unlock(del.Job.ChatID)

	status, err := p.process(ctx, del.Job)
	if err != nil {
		p.logger.Error("worker: job processing failed", "chat_id", del.Job.ChatID, "error", err)
		if nackErr := p.dispatcher.Nack(ctx, del); nackErr != nil {
			p.logger.Error("worker: nack failed job", "chat_id", del.Job.ChatID, "error", nackErr)
		}
		return
	}

	p.logger.Info("worker: job complete", "chat_id", del.Job.ChatID, "status", status)
	if err := p.dispatcher.Ack(ctx, del); err != nil {
		p.logger.Error("worker: ack failed", "chat_id", del.Job.ChatID, "error", err)
	}
}

// process implements spec.md §4.6's six-step per-job contract.
func (p *Pool) process(ctx context.Context, job models.Job) (agent.LoopStatus, error) {
	chat, err := p.store.GetChatByID(ctx, job.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		// Redelivered job for a chat that no longer exists: a no-op per
		// spec.md §4.6's idempotency note, not a failure.
		return agent.StatusCompleted, nil
	}
	if err != nil {
		return "", fmt.Errorf("load chat %s: %w", job.ChatID, err)
	}

	if chat.Interrupted {
		// A redelivered job, or the job enqueued by the following
		// message, observing a chat that was stopped while tool calls
		// were still unhandled: synthesize their cancellation per
		// spec.md §4.5/§8 scenario 5 before treating this as a no-op, so
		// no ToolCall is ever left permanently pending.
		chat.Messages = agent.Backfill(chat.Messages, agent.BackfillCancelled)
		if err := p.store.SaveChatByID(ctx, chat); err != nil {
			return "", fmt.Errorf("save chat %s: %w", job.ChatID, err)
		}
		return agent.StatusInterrupted, nil
	}

	bot, err := p.resolveBot(ctx, chat, job)
	if err != nil {
		return "", fmt.Errorf("resolve bot for chat %s: %w", job.ChatID, err)
	}

	provider, err := p.providers(*bot)
	if err != nil {
		return "", fmt.Errorf("build provider for chat %s: %w", job.ChatID, err)
	}

	loop := &agent.Loop{Provider: provider, Tools: p.tools, Permissions: p.perms, Config: p.cfg.Loop}

	hooks := agent.Hooks{
		AutoApprove: func() bool { return chat.AutoApprove },
		MessageCallback: func(msg models.Message) {
			if err := p.store.AppendMessage(ctx, chat.UserID, chat.ChatID, msg); err != nil {
				p.logger.Error("worker: append message", "chat_id", chat.ChatID, "error", err)
			}
		},
		CheckInterrupted: func() bool {
			fresh, err := p.store.GetChatByID(ctx, chat.ChatID)
			if err != nil {
				return false
			}
			return fresh.Interrupted
		},
	}

	result := loop.Run(ctx, chat.Messages, hooks)
	chat.Messages = append(chat.Messages, result.Appended...)

	if result.Status == agent.StatusApprovalNeeded {
		chat.Interrupted = false // waiting on a decision, not a user-requested stop
	}

	if result.Status == agent.StatusInterrupted {
		// CheckInterrupted tripped mid-loop: cover any call left
		// unhandled at that point the same way the entry check above
		// does, so interruption never skips backfill depending on
		// where in the loop it was observed.
		chat.Messages = agent.Backfill(chat.Messages, agent.BackfillCancelled)
	}

	if err := p.store.SaveChatByID(ctx, chat); err != nil {
		return result.Status, fmt.Errorf("save chat %s: %w", job.ChatID, err)
	}

	if result.Err != nil {
		p.logger.Warn("worker: loop terminated with error", "chat_id", job.ChatID, "status", result.Status, "error", result.Err)
	}
	return result.Status, nil
}

// resolveBot implements spec.md §4.6 step 2: prefer the job's named
// bot, then the chat's own bot_name, then the user's default, then the
// platform-default user's config.
func (p *Pool) resolveBot(ctx context.Context, chat *models.Chat, job models.Job) (*models.BotConfig, error) {
	userID := chat.UserID
	if job.UserID != "" {
		userID = job.UserID
	}

	name := job.BotName
	if name == "" {
		name = chat.BotName
	}
	if name != "" {
		if bot, err := p.store.GetBot(ctx, userID, name); err == nil {
			return bot, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	if bot, err := p.store.GetDefaultBot(ctx, userID); err == nil {
		return bot, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if bot, err := p.store.GetDefaultBot(ctx, PlatformDefaultUserID); err == nil {
		return bot, nil
	}
	return nil, fmt.Errorf("no bot configuration found for user %s", userID)
}

// PlatformDefaultUserID identifies the platform-level fallback user
// whose default bot config backs chats with no per-user configuration
// at all, per spec.md §4.6 step 2's fallback chain.
const PlatformDefaultUserID = "platform-default"
