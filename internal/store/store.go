// Package store implements chat/bot persistence (C3): a single
// source of truth for a user's chats and their full message logs, plus
// per-user bot configurations.
//
// Grounded on the teacher's internal/sessions.Store interface shape
// (CRUD + GetOrCreate + AppendMessage) and, for the chat blob itself,
// original_source/storage/src/storage/repository/chat.py: a chat is
// persisted as one JSON-encoded blob per row (json_content), with
// title/updated_at kept as queryable columns extracted from that blob
// on every save. Three backends share this interface: PostgresStore
// (lib/pq, production), SQLiteStore (modernc.org/sqlite, single-node /
// CLI), and MemoryStore (tests).
package store

import (
	"context"
	"errors"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// ErrNotFound is returned when a lookup by id/key finds no row.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyExists is returned by a Create-only operation when the
// unique key is already taken.
var ErrAlreadyExists = errors.New("store: already exists")

// Store is the persistence boundary every C4/C5/C6/C7 component talks
// to. All chat methods are scoped to a user except GetChatByID /
// SaveChatByID, which the worker uses once it has already resolved a
// chat_id from a Job and does not have (or need) the owning user_id on
// the hot path.
type Store interface {
	CreateChat(ctx context.Context, userID string, chat *models.Chat) error
	GetChat(ctx context.Context, userID, chatID string) (*models.Chat, error)
	ListChats(ctx context.Context, userID string, opts ListOptions) ([]models.ChatSummary, error)
	SaveChat(ctx context.Context, userID string, chat *models.Chat) error
	AppendMessage(ctx context.Context, userID, chatID string, msg models.Message) error
	DeleteChat(ctx context.Context, userID, chatID string) error

	// GetChatByID/SaveChatByID are unscoped lookups for worker use,
	// grounded on the reference implementation's
	// get_chat_by_id/save_chat_by_id split.
	GetChatByID(ctx context.Context, chatID string) (*models.Chat, error)
	SaveChatByID(ctx context.Context, chat *models.Chat) error

	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error

	CreateBot(ctx context.Context, bot *models.BotConfig) error
	GetBot(ctx context.Context, userID, name string) (*models.BotConfig, error)
	GetDefaultBot(ctx context.Context, userID string) (*models.BotConfig, error)
	ListBots(ctx context.Context, userID string) ([]models.BotConfig, error)
	UpdateBot(ctx context.Context, bot *models.BotConfig) error
	DeleteBot(ctx context.Context, userID, name string) error

	// ForkChat copies sourceChatID's messages up to and including
	// uptoMessageID into a brand-new chat owned by userID, tagging the
	// copy with OriginChatID/OriginMsgID. See SPEC_FULL.md §3.3.
	ForkChat(ctx context.Context, userID, sourceChatID, uptoMessageID string) (*models.Chat, error)

	Close() error
}

// ListOptions filters/paginates ListChats.
type ListOptions struct {
	Query string
	Limit int
}

// extractTitle mirrors the reference implementation's
// _extract_title: the first user message's content, truncated to 100
// characters, or "" if there is none yet.
func extractTitle(chat *models.Chat) string {
	for _, m := range chat.Messages {
		if m.Role == models.RoleUser {
			return models.TitleFromPrompt(m.Content)
		}
	}
	return ""
}
