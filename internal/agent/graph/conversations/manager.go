package conversations

import (
	"context"
	"strings"

	"github.com/voice-agent-core/server/internal/agent/model"
)

// MessagesManager is the graph's only access path to conversation history.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	contextTurns     int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	config.Normalize()
	return &MessagesManager{
		conversationRepo: conversationRepo,
		contextTurns:     config.ContextTurns,
	}
}

// BuildIntentContext renders the last turns of a session as the prompt's
// context block, or "" when there is nothing to show.
func (cm *MessagesManager) BuildIntentContext(ctx context.Context, sessionID string) (string, error) {
	if cm.contextTurns == 0 {
		return "", nil
	}
	history, err := cm.conversationRepo.LoadHistory(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return renderContext(trimTail(history.Turns(), cm.contextTurns)), nil
}

// SaveExchange archives one utterance and the assistant's reply together.
func (cm *MessagesManager) SaveExchange(ctx context.Context, sessionID, utterance, reply string) error {
	return cm.conversationRepo.AddMessages(ctx, sessionID,
		model.ConversationTurn{Role: model.RoleUser, Content: utterance}.Message(),
		model.ConversationTurn{Role: model.RoleAssistant, Content: reply}.Message(),
	)
}

func (cm *MessagesManager) Reset(ctx context.Context, sessionID string) error {
	return cm.conversationRepo.ClearHistory(ctx, sessionID)
}

func (cm *MessagesManager) Count(ctx context.Context, sessionID string) (int, error) {
	return cm.conversationRepo.GetMessageCount(ctx, sessionID)
}

func renderContext(turns []model.ConversationTurn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nRecent conversation context:\n")
	for _, t := range turns {
		b.WriteString("  ")
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func trimTail(turns []model.ConversationTurn, maxTurns int) []model.ConversationTurn {
	if maxTurns <= 0 {
		return nil
	}
	if len(turns) <= maxTurns {
		return turns
	}
	return turns[len(turns)-maxTurns:]
}
