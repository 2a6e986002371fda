// Package models defines the persisted entities shared across agentcore:
// users, bot configurations, chats, messages and their embedded tool
// calls, and the transient job envelope handed to the worker pool.
package models

import "time"

// Role identifies who produced a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCallStatus is the lifecycle state of a single requested tool
// invocation. Absence of a status on a decoded legacy record means
// Approved.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallApproved  ToolCallStatus = "approved"
	ToolCallRejected  ToolCallStatus = "rejected"
	ToolCallCancelled ToolCallStatus = "cancelled"
)

// ToolCallFunction carries the name and raw JSON arguments the model
// emitted for one tool call. Arguments are kept as the provider's raw
// JSON-encoded string; callers decode lazily and fall back to an empty
// object when it fails to parse (spec: the agent never fails for this
// reason).
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is embedded in an assistant Message. IDs are provider
// assigned and unique within the owning message.
type ToolCall struct {
	ID       string           `json:"id"`
	Function ToolCallFunction `json:"function"`
	Status   ToolCallStatus   `json:"status,omitempty"`
}

// EffectiveStatus returns Approved when Status is unset, matching the
// "absence of status means approved (legacy)" rule in the data model.
func (tc ToolCall) EffectiveStatus() ToolCallStatus {
	if tc.Status == "" {
		return ToolCallApproved
	}
	return tc.Status
}

// Message is one entry in a chat's ordered log. The fields that apply
// depend on Role: Content may be empty for an assistant message that
// only carries ToolCalls; ToolCalls is only meaningful for
// Role==RoleAssistant; Tool/Arguments/ToolCallID only for
// Role==RoleTool.
type Message struct {
	ID            string     `json:"id"`
	ParentID      string     `json:"parent_id,omitempty"`
	Role          Role       `json:"role"`
	Content       string     `json:"content"`
	Timestamp     string     `json:"timestamp"`
	UnixTimestamp int64      `json:"unix_timestamp"`
	Model         string     `json:"model,omitempty"`
	Provider      string     `json:"provider,omitempty"`
	ToolCalls     []ToolCall `json:"tool_calls,omitempty"`

	// Tool-role fields.
	Tool       string `json:"tool,omitempty"`
	Arguments  any    `json:"arguments,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// HasToolCalls reports whether this is an assistant message carrying
// at least one tool call.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// Chat is a per-user conversation: a totally ordered message log plus
// a small set of flags. ChatID is an opaque short token, unique per
// user.
type Chat struct {
	UserID        string    `json:"user_id"`
	ChatID        string    `json:"chat_id"`
	BotName       string    `json:"bot_name,omitempty"`
	Title         string    `json:"title"`
	Messages      []Message `json:"messages"`
	AutoApprove   bool      `json:"auto_approve"`
	Interrupted   bool      `json:"interrupted"`
	OriginChatID  string    `json:"origin_chat_id,omitempty"`
	OriginMsgID   string    `json:"origin_message_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ChatSummary is the listing projection returned by Store.ListChats:
// metadata only, never the message blob.
type ChatSummary struct {
	ChatID    string    `json:"chat_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TitleFromPrompt derives a chat title from the first user message:
// the first 100 characters, trimmed.
func TitleFromPrompt(prompt string) string {
	r := []rune(prompt)
	if len(r) > 100 {
		r = r[:100]
	}
	return string(r)
}

// User is a stable integer-backed account identity. ExternalID (e.g.
// an email address) is the uniqueness key used at the authentication
// boundary; ID is the stable surrogate used internally.
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Email      string    `json:"email,omitempty"`
	Name       string    `json:"name,omitempty"`
	Deleted    bool      `json:"deleted"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProviderDialect names which wire dialect a BotConfig speaks.
type ProviderDialect string

const (
	DialectOpenAI    ProviderDialect = "openai"
	DialectAnthropic ProviderDialect = "anthropic"
)

// BotConfig is a named, per-user binding of a model identifier to a
// Provider dialect and credential. (user_id, name) is unique.
type BotConfig struct {
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	BaseURL   string          `json:"base_url"`
	APIKey    string          `json:"api_key"`
	Model     string          `json:"model"`
	Dialect   ProviderDialect `json:"dialect"`
	MaxTokens int             `json:"max_tokens,omitempty"`
	APIPath   string          `json:"api_path,omitempty"`
	IsDefault bool            `json:"is_default,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Job is a transient request to advance a specific chat. It is created
// by the dispatcher and consumed exactly once by a worker (at-least-once
// delivery; idempotency is the worker's responsibility, not the job's).
type Job struct {
	ChatID  string `json:"chat_id"`
	BotName string `json:"bot_name,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}
