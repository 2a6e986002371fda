package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// sqlStore is the database/sql-backed Store shared by PostgresStore
// and SQLiteStore. The two differ only in driver name, DSN handling,
// and placeholder syntax ($1.. vs ?) - everything else, grounded on
// the teacher's internal/sessions.CockroachStore, is identical.
//
// Chats are persisted as one JSON blob per row (json_content), title
// extracted on every save, per
// original_source/storage/src/storage/repository/chat.py - there is
// no separate messages table, since a chat's message log is always
// read and written as a unit (the whole point of the resume/backfill
// protocol is operating on that unit in memory before one save call).
type sqlStore struct {
	db    *sql.DB
	ph    func(n int) string
	dialect string
}

func newSQLStore(db *sql.DB, dialect string, ph func(n int) string) (*sqlStore, error) {
	schema, err := schemaFS.ReadFile("schema/" + dialect + ".sql")
	if err != nil {
		return nil, fmt.Errorf("read schema for %s: %w", dialect, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	for _, stmt := range splitStatements(string(schema)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("apply %s schema: %w", dialect, err)
		}
	}
	return &sqlStore{db: db, ph: ph, dialect: dialect}, nil
}

// splitStatements splits a .sql file on top-level semicolons. The
// embedded schema files contain no string literals with embedded
// semicolons, so this plain split is sufficient.
func splitStatements(schema string) []string {
	var out []string
	start := 0
	for i, c := range schema {
		if c == ';' {
			if stmt := trimSpace(schema[start:i]); stmt != "" {
				out = append(out, stmt)
			}
			start = i + 1
		}
	}
	if stmt := trimSpace(schema[start:]); stmt != "" {
		out = append(out, stmt)
	}
	return out
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func (s *sqlStore) Close() error { return s.db.Close() }

func (s *sqlStore) q(n int) string { return s.ph(n) }

func (s *sqlStore) CreateChat(ctx context.Context, userID string, chat *models.Chat) error {
	chat.UserID = userID
	now := time.Now()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	chat.UpdatedAt = now
	chat.Title = extractTitle(chat)

	content, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("marshal chat: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO chats
		(user_id, chat_id, bot_name, title, json_content, auto_approve, interrupted, origin_chat_id, origin_message_id, created_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.q(1), s.q(2), s.q(3), s.q(4), s.q(5), s.q(6), s.q(7), s.q(8), s.q(9), s.q(10), s.q(11))

	_, err = s.db.ExecContext(ctx, query,
		chat.UserID, chat.ChatID, chat.BotName, chat.Title, content,
		chat.AutoApprove, chat.Interrupted, chat.OriginChatID, chat.OriginMsgID,
		chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}
	return nil
}

func (s *sqlStore) scanChatRow(row interface{ Scan(...any) error }) (*models.Chat, error) {
	var content []byte
	var chat models.Chat
	if err := row.Scan(&content); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	if err := json.Unmarshal(content, &chat); err != nil {
		return nil, fmt.Errorf("unmarshal chat: %w", err)
	}
	return &chat, nil
}

func (s *sqlStore) GetChat(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	query := fmt.Sprintf(`SELECT json_content FROM chats WHERE user_id = %s AND chat_id = %s`, s.q(1), s.q(2))
	row := s.db.QueryRowContext(ctx, query, userID, chatID)
	return s.scanChatRow(row)
}

func (s *sqlStore) GetChatByID(ctx context.Context, chatID string) (*models.Chat, error) {
	query := fmt.Sprintf(`SELECT json_content FROM chats WHERE chat_id = %s`, s.q(1))
	row := s.db.QueryRowContext(ctx, query, chatID)
	return s.scanChatRow(row)
}

func (s *sqlStore) ListChats(ctx context.Context, userID string, opts ListOptions) ([]models.ChatSummary, error) {
	query := fmt.Sprintf(`SELECT chat_id, title, created_at, updated_at FROM chats WHERE user_id = %s`, s.q(1))
	args := []any{userID}
	if opts.Query != "" {
		query += fmt.Sprintf(` AND title LIKE %s`, s.q(2))
		args = append(args, "%"+opts.Query+"%")
	}
	query += ` ORDER BY updated_at DESC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %s`, s.q(len(args)+1))
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var out []models.ChatSummary
	for rows.Next() {
		var c models.ChatSummary
		if err := rows.Scan(&c.ChatID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat summary: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqlStore) SaveChat(ctx context.Context, userID string, chat *models.Chat) error {
	return s.upsertChat(ctx, userID, chat)
}

func (s *sqlStore) SaveChatByID(ctx context.Context, chat *models.Chat) error {
	existing, err := s.GetChatByID(ctx, chat.ChatID)
	if err != nil {
		return err
	}
	return s.upsertChat(ctx, existing.UserID, chat)
}

func (s *sqlStore) upsertChat(ctx context.Context, userID string, chat *models.Chat) error {
	chat.UserID = userID
	chat.UpdatedAt = time.Now()
	chat.Title = extractTitle(chat)

	content, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("marshal chat: %w", err)
	}

	query := fmt.Sprintf(`UPDATE chats SET title = %s, json_content = %s, bot_name = %s,
		auto_approve = %s, interrupted = %s, updated_at = %s
		WHERE user_id = %s AND chat_id = %s`,
		s.q(1), s.q(2), s.q(3), s.q(4), s.q(5), s.q(6), s.q(7), s.q(8))

	res, err := s.db.ExecContext(ctx, query,
		chat.Title, content, chat.BotName, chat.AutoApprove, chat.Interrupted, chat.UpdatedAt,
		userID, chat.ChatID,
	)
	if err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save chat rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) AppendMessage(ctx context.Context, userID, chatID string, msg models.Message) error {
	chat, err := s.GetChat(ctx, userID, chatID)
	if err != nil {
		return err
	}
	chat.Messages = append(chat.Messages, msg)
	return s.upsertChat(ctx, userID, chat)
}

func (s *sqlStore) DeleteChat(ctx context.Context, userID, chatID string) error {
	query := fmt.Sprintf(`DELETE FROM chats WHERE user_id = %s AND chat_id = %s`, s.q(1), s.q(2))
	res, err := s.db.ExecContext(ctx, query, userID, chatID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chat rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT id, external_id, email, name, deleted, created_at FROM users WHERE external_id = %s`, s.q(1))
	var u models.User
	err := s.db.QueryRowContext(ctx, query, externalID).Scan(&u.ID, &u.ExternalID, &u.Email, &u.Name, &u.Deleted, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *sqlStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	query := fmt.Sprintf(`INSERT INTO users (id, external_id, email, name, deleted, created_at) VALUES (%s, %s, %s, %s, %s, %s)`,
		s.q(1), s.q(2), s.q(3), s.q(4), s.q(5), s.q(6))
	_, err := s.db.ExecContext(ctx, query, user.ID, user.ExternalID, user.Email, user.Name, user.Deleted, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *sqlStore) CreateBot(ctx context.Context, bot *models.BotConfig) error {
	now := time.Now()
	bot.CreatedAt, bot.UpdatedAt = now, now
	query := fmt.Sprintf(`INSERT INTO bots
		(user_id, name, base_url, api_key, model, dialect, max_tokens, api_path, is_default, created_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.q(1), s.q(2), s.q(3), s.q(4), s.q(5), s.q(6), s.q(7), s.q(8), s.q(9), s.q(10), s.q(11))
	_, err := s.db.ExecContext(ctx, query,
		bot.UserID, bot.Name, bot.BaseURL, bot.APIKey, bot.Model, string(bot.Dialect),
		bot.MaxTokens, bot.APIPath, bot.IsDefault, bot.CreatedAt, bot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	return nil
}

func (s *sqlStore) scanBot(row interface{ Scan(...any) error }) (*models.BotConfig, error) {
	var b models.BotConfig
	var dialect string
	err := row.Scan(&b.UserID, &b.Name, &b.BaseURL, &b.APIKey, &b.Model, &dialect,
		&b.MaxTokens, &b.APIPath, &b.IsDefault, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan bot: %w", err)
	}
	b.Dialect = models.ProviderDialect(dialect)
	return &b, nil
}

func (s *sqlStore) GetBot(ctx context.Context, userID, name string) (*models.BotConfig, error) {
	query := fmt.Sprintf(`SELECT user_id, name, base_url, api_key, model, dialect, max_tokens, api_path, is_default, created_at, updated_at
		FROM bots WHERE user_id = %s AND name = %s`, s.q(1), s.q(2))
	return s.scanBot(s.db.QueryRowContext(ctx, query, userID, name))
}

func (s *sqlStore) GetDefaultBot(ctx context.Context, userID string) (*models.BotConfig, error) {
	query := fmt.Sprintf(`SELECT user_id, name, base_url, api_key, model, dialect, max_tokens, api_path, is_default, created_at, updated_at
		FROM bots WHERE user_id = %s ORDER BY is_default DESC, name ASC LIMIT 1`, s.q(1))
	return s.scanBot(s.db.QueryRowContext(ctx, query, userID))
}

func (s *sqlStore) ListBots(ctx context.Context, userID string) ([]models.BotConfig, error) {
	query := fmt.Sprintf(`SELECT user_id, name, base_url, api_key, model, dialect, max_tokens, api_path, is_default, created_at, updated_at
		FROM bots WHERE user_id = %s ORDER BY name ASC`, s.q(1))
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()

	var out []models.BotConfig
	for rows.Next() {
		b, err := s.scanBot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *sqlStore) UpdateBot(ctx context.Context, bot *models.BotConfig) error {
	bot.UpdatedAt = time.Now()
	query := fmt.Sprintf(`UPDATE bots SET base_url = %s, api_key = %s, model = %s, dialect = %s,
		max_tokens = %s, api_path = %s, is_default = %s, updated_at = %s
		WHERE user_id = %s AND name = %s`,
		s.q(1), s.q(2), s.q(3), s.q(4), s.q(5), s.q(6), s.q(7), s.q(8), s.q(9), s.q(10))
	res, err := s.db.ExecContext(ctx, query,
		bot.BaseURL, bot.APIKey, bot.Model, string(bot.Dialect), bot.MaxTokens, bot.APIPath,
		bot.IsDefault, bot.UpdatedAt, bot.UserID, bot.Name,
	)
	if err != nil {
		return fmt.Errorf("update bot: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update bot rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ForkChat copies sourceChatID's messages up to and including
// uptoMessageID into a new chat row owned by userID, grounded on
// original_source/cli/src/ycli/commands/chat/share.py's fork-on-share
// behavior.
func (s *sqlStore) ForkChat(ctx context.Context, userID, sourceChatID, uptoMessageID string) (*models.Chat, error) {
	source, err := s.GetChatByID(ctx, sourceChatID)
	if err != nil {
		return nil, err
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
	if err := s.CreateChat(ctx, userID, fork); err != nil {
		return nil, fmt.Errorf("create forked chat: %w", err)
	}
	return fork, nil
}

func (s *sqlStore) DeleteBot(ctx context.Context, userID, name string) error {
	query := fmt.Sprintf(`DELETE FROM bots WHERE user_id = %s AND name = %s`, s.q(1), s.q(2))
	res, err := s.db.ExecContext(ctx, query, userID, name)
	if err != nil {
		return fmt.Errorf("delete bot: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete bot rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
