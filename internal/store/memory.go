package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// MemoryStore is an in-memory Store for tests and local runs.
// Grounded on the teacher's internal/sessions.MemoryStore: a guarded
// map plus a defensive clone on every read/write boundary so callers
// can never mutate stored state through a returned pointer.
type MemoryStore struct {
	mu    sync.RWMutex
	chats map[string]*models.Chat // key: userID + "/" + chatID
	users map[string]*models.User // key: external ID
	bots  map[string]*models.BotConfig
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats: make(map[string]*models.Chat),
		users: make(map[string]*models.User),
		bots:  make(map[string]*models.BotConfig),
	}
}

func chatKey(userID, chatID string) string { return userID + "/" + chatID }
func botKey(userID, name string) string    { return userID + "/" + name }

func cloneChat(c *models.Chat) *models.Chat {
	clone := *c
	clone.Messages = append([]models.Message(nil), c.Messages...)
	for i := range clone.Messages {
		clone.Messages[i].ToolCalls = append([]models.ToolCall(nil), c.Messages[i].ToolCalls...)
	}
	return &clone
}

func (m *MemoryStore) CreateChat(ctx context.Context, userID string, chat *models.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := chatKey(userID, chat.ChatID)
	if _, exists := m.chats[key]; exists {
		return ErrAlreadyExists
	}
	now := time.Now()
	chat.UserID = userID
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	chat.UpdatedAt = now
	chat.Title = extractTitle(chat)
	m.chats[key] = cloneChat(chat)
	return nil
}

func (m *MemoryStore) GetChat(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chat, ok := m.chats[chatKey(userID, chatID)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneChat(chat), nil
}

func (m *MemoryStore) GetChatByID(ctx context.Context, chatID string) (*models.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, chat := range m.chats {
		if chat.ChatID == chatID {
			return cloneChat(chat), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListChats(ctx context.Context, userID string, opts ListOptions) ([]models.ChatSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.ChatSummary
	for _, chat := range m.chats {
		if chat.UserID != userID {
			continue
		}
		if opts.Query != "" && !strings.Contains(strings.ToLower(chat.Title), strings.ToLower(opts.Query)) {
			continue
		}
		out = append(out, models.ChatSummary{
			ChatID:    chat.ChatID,
			Title:     chat.Title,
			CreatedAt: chat.CreatedAt,
			UpdatedAt: chat.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *MemoryStore) SaveChat(ctx context.Context, userID string, chat *models.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveChatLocked(userID, chat)
}

func (m *MemoryStore) SaveChatByID(ctx context.Context, chat *models.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, existing := range m.chats {
		if existing.ChatID == chat.ChatID {
			return m.saveChatLocked(existing.UserID, chat, key)
		}
	}
	return ErrNotFound
}

// saveChatLocked upserts chat under userID, recomputing Title and
// UpdatedAt the way the reference implementation's save_chat does on
// every save. An optional explicit key lets SaveChatByID reuse the
// caller-resolved map key without a second lookup.
func (m *MemoryStore) saveChatLocked(userID string, chat *models.Chat, key ...string) error {
	k := chatKey(userID, chat.ChatID)
	if len(key) > 0 {
		k = key[0]
	}
	chat.UserID = userID
	chat.UpdatedAt = time.Now()
	chat.Title = extractTitle(chat)
	m.chats[k] = cloneChat(chat)
	return nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, userID, chatID string, msg models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := chatKey(userID, chatID)
	chat, ok := m.chats[key]
	if !ok {
		return ErrNotFound
	}
	chat.Messages = append(chat.Messages, msg)
	chat.UpdatedAt = time.Now()
	chat.Title = extractTitle(chat)
	return nil
}

func (m *MemoryStore) DeleteChat(ctx context.Context, userID, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := chatKey(userID, chatID)
	if _, ok := m.chats[key]; !ok {
		return ErrNotFound
	}
	delete(m.chats, key)
	return nil
}

func (m *MemoryStore) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.ExternalID]; exists {
		return ErrAlreadyExists
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	clone := *user
	m.users[user.ExternalID] = &clone
	return nil
}

func (m *MemoryStore) CreateBot(ctx context.Context, bot *models.BotConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := botKey(bot.UserID, bot.Name)
	if _, exists := m.bots[key]; exists {
		return ErrAlreadyExists
	}
	now := time.Now()
	bot.CreatedAt, bot.UpdatedAt = now, now
	clone := *bot
	m.bots[key] = &clone
	return nil
}

func (m *MemoryStore) GetBot(ctx context.Context, userID, name string) (*models.BotConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bots[botKey(userID, name)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *b
	return &clone, nil
}

func (m *MemoryStore) GetDefaultBot(ctx context.Context, userID string) (*models.BotConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var fallback *models.BotConfig
	for _, b := range m.bots {
		if b.UserID != userID {
			continue
		}
		if b.IsDefault {
			clone := *b
			return &clone, nil
		}
		if fallback == nil {
			clone := *b
			fallback = &clone
		}
	}
	if fallback == nil {
		return nil, ErrNotFound
	}
	return fallback, nil
}

func (m *MemoryStore) ListBots(ctx context.Context, userID string) ([]models.BotConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.BotConfig
	for _, b := range m.bots {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) UpdateBot(ctx context.Context, bot *models.BotConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := botKey(bot.UserID, bot.Name)
	existing, ok := m.bots[key]
	if !ok {
		return ErrNotFound
	}
	bot.CreatedAt = existing.CreatedAt
	bot.UpdatedAt = time.Now()
	clone := *bot
	m.bots[key] = &clone
	return nil
}

// ForkChat copies sourceChatID's messages up to and including
// uptoMessageID into a new chat owned by userID. Grounded on
// original_source/cli/src/ycli/commands/chat/share.py's fork-on-share
// behavior.
func (m *MemoryStore) ForkChat(ctx context.Context, userID, sourceChatID, uptoMessageID string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var source *models.Chat
	for _, c := range m.chats {
		if c.ChatID == sourceChatID {
			source = c
			break
		}
	}
	if source == nil {
		return nil, ErrNotFound
	}

	cut := len(source.Messages)
	for i, msg := range source.Messages {
		if msg.ID == uptoMessageID {
			cut = i + 1
			break
		}
	}

	fork := &models.Chat{
		UserID:       userID,
		ChatID:       models.NewID(),
		BotName:      source.BotName,
		Messages:     append([]models.Message(nil), source.Messages[:cut]...),
		OriginChatID: sourceChatID,
		OriginMsgID:  uptoMessageID,
	}
	now := time.Now()
	fork.CreatedAt, fork.UpdatedAt = now, now
	fork.Title = extractTitle(fork)
	m.chats[chatKey(userID, fork.ChatID)] = cloneChat(fork)
	return cloneChat(fork), nil
}

func (m *MemoryStore) DeleteBot(ctx context.Context, userID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := botKey(userID, name)
	if _, ok := m.bots[key]; !ok {
		return ErrNotFound
	}
	delete(m.bots, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
