// Package intent turns an utterance into a ParsedIntent by prompting the
// language model with recent conversation context.
package intent

import (
	"context"
	"errors"
	"fmt"

	"github.com/voice-agent-core/server/internal/agent/graph/conversations"
	"github.com/voice-agent-core/server/internal/agent/graph/parsers"
	"github.com/voice-agent-core/server/internal/agent/graph/prompts"
	"github.com/voice-agent-core/server/internal/agent/model"
	errx "github.com/voice-agent-core/server/internal/core/error"
	logx "github.com/voice-agent-core/server/pkg/logger"
)

const (
	UnderstandFailureMessage = "I couldn't understand that command. Could you try again?"
	processFailurePrefix     = "Failed to process your command: "
)

// Completer is the resilient completion client as seen by the parser.
type Completer interface {
	Complete(ctx context.Context, prompt string) (*model.Completion, error)
}

// Analysis is a parse result together with the completion behind it. The
// completion is nil when the model could not be reached.
type Analysis struct {
	Intent     model.ParsedIntent
	Completion *model.Completion
}

type Parser struct {
	completer Completer
	messages  *conversations.MessagesManager
}

func NewParser(completer Completer, messages *conversations.MessagesManager) *Parser {
	return &Parser{completer: completer, messages: messages}
}

// Parse classifies utterance within the given session. It never fails:
// unreachable models yield an error intent and unreadable completions a
// general_chat intent asking the user to repeat.
func (p *Parser) Parse(ctx context.Context, sessionID, utterance string) model.ParsedIntent {
	return p.Analyze(ctx, sessionID, utterance).Intent
}

// Analyze is Parse plus the completion that produced the intent.
func (p *Parser) Analyze(ctx context.Context, sessionID, utterance string) Analysis {
	history, err := p.messages.BuildIntentContext(ctx, sessionID)
	if err != nil {
		logx.Warn().Err(err).Str("session_id", sessionID).Msg("conversation history unavailable, continuing without context")
		history = ""
	}

	prompt, err := prompts.RenderIntentPrompt(ctx, history, utterance)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("intent prompt rendering failed")
		return Analysis{Intent: errorIntent(err)}
	}

	out, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		logx.Error().Str("session_id", sessionID).Str("error", logx.Truncate(err.Error())).Msg("intent parsing failed")
		return Analysis{Intent: errorIntent(err)}
	}

	obj, err := parsers.ExtractJSON(out.Text)
	if err != nil {
		logx.Warn().Str("session_id", sessionID).Str("model", out.Model).Msg("failed to parse JSON from model response")
		return Analysis{Intent: fallbackIntent(), Completion: out}
	}
	parsed, err := parsers.DecodeIntent(obj)
	if err != nil {
		logx.Warn().Err(err).Str("session_id", sessionID).Str("model", out.Model).Msg("model response has unexpected shape")
		return Analysis{Intent: fallbackIntent(), Completion: out}
	}

	if err := p.messages.SaveExchange(ctx, sessionID, utterance, parsed.Message); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to save conversation turn")
	}

	logx.Info().
		Str("session_id", sessionID).
		Str("intent", string(parsed.Kind)).
		Str("model", out.Model).
		Int("attempts", out.Attempts).
		Msg("intent parsed")
	return Analysis{Intent: parsed, Completion: out}
}

// Reset forgets the session's conversation.
func (p *Parser) Reset(ctx context.Context, sessionID string) error {
	if err := p.messages.Reset(ctx, sessionID); err != nil {
		return err
	}
	logx.Info().Str("session_id", sessionID).Msg("conversation history cleared")
	return nil
}

func errorIntent(err error) model.ParsedIntent {
	cause := err.Error()
	var exhausted *errx.ExhaustedError
	if errors.As(err, &exhausted) {
		cause = exhausted.Message()
	}
	return model.ParsedIntent{
		Kind:       model.IntentError,
		Parameters: map[string]any{},
		Message:    fmt.Sprintf("%s%s", processFailurePrefix, cause),
	}
}

func fallbackIntent() model.ParsedIntent {
	return model.ParsedIntent{
		Kind:       model.IntentGeneralChat,
		Parameters: map[string]any{},
		Message:    UnderstandFailureMessage,
	}
}
