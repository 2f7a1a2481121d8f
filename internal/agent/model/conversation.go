package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// DefaultSessionID is used when a client does not identify its session; all
// such clients share one conversation.
const DefaultSessionID = "default"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one archived utterance or reply. Only role and text are
// kept; parsed parameters never reach the history.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Message converts the turn to the eino message stored by repositories.
func (t ConversationTurn) Message() *schema.Message {
	if t.Role == RoleAssistant {
		return schema.AssistantMessage(t.Content, nil)
	}
	return schema.UserMessage(t.Content)
}

// TurnFromMessage maps a stored message back to a turn. Messages with other
// roles (system, tool) are skipped.
func TurnFromMessage(m *schema.Message) (ConversationTurn, bool) {
	if m == nil {
		return ConversationTurn{}, false
	}
	switch m.Role {
	case schema.User:
		return ConversationTurn{Role: RoleUser, Content: m.Content}, true
	case schema.Assistant:
		return ConversationTurn{Role: RoleAssistant, Content: m.Content}, true
	}
	return ConversationTurn{}, false
}

// ConversationRepository stores bounded per-session histories. Implementations
// are safe for concurrent use and never keep more messages per session than
// their configured capacity.
type ConversationRepository interface {
	// AddMessages appends messages to a session as one unit, evicting the
	// oldest ones beyond capacity.
	AddMessages(ctx context.Context, conversationID string, messages ...*schema.Message) error

	// LoadHistory retrieves the conversation history for a session, oldest first.
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// ClearHistory removes all conversation history for a session.
	ClearHistory(ctx context.Context, conversationID string) error

	// GetMessageCount returns the number of messages in the session.
	GetMessageCount(ctx context.Context, conversationID string) (int, error)
}

// ConversationHistory is a snapshot of one session's stored messages.
type ConversationHistory struct {
	ConversationID string
	Messages       []*schema.Message
}

// Turns returns the user and assistant turns of the snapshot.
func (h *ConversationHistory) Turns() []ConversationTurn {
	if h == nil {
		return nil
	}
	turns := make([]ConversationTurn, 0, len(h.Messages))
	for _, m := range h.Messages {
		if t, ok := TurnFromMessage(m); ok {
			turns = append(turns, t)
		}
	}
	return turns
}
