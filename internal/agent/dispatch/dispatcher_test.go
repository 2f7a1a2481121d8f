package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voice-agent-core/server/internal/agent/model"
	"github.com/voice-agent-core/server/internal/mailer"
)

type sendCall struct {
	to, subject, body string
}

type stubMailer struct {
	outcome mailer.Outcome
	calls   []sendCall
}

func (s *stubMailer) Send(_ context.Context, to, subject, body string) mailer.Outcome {
	s.calls = append(s.calls, sendCall{to: to, subject: subject, body: body})
	return s.outcome
}

func emailIntent(params map[string]any) model.ParsedIntent {
	return model.ParsedIntent{Kind: model.IntentSendEmail, Parameters: params}
}

func TestDispatchSendEmailSuccess(t *testing.T) {
	m := &stubMailer{outcome: mailer.Outcome{
		Success: true,
		Details: map[string]any{"to": "bob@example.com", "subject": "Lunch", "from": "agent@example.com"},
	}}
	d := NewDispatcher(m)

	res := d.Dispatch(context.Background(), emailIntent(map[string]any{
		"to_email": " bob@example.com ",
		"subject":  "Lunch",
		"body":     "Noon?",
	}))

	assert.True(t, res.Success)
	assert.Equal(t, model.ActionEmailSent, res.Action)
	assert.Equal(t, model.IntentSendEmail, res.Intent)
	assert.Equal(t, "Email sent successfully to bob@example.com", res.Message)
	assert.Equal(t, "agent@example.com", res.Details["from"])
	assert.Equal(t, map[string]any{"to": "bob@example.com", "subject": "Lunch", "body": "Noon?"}, res.Parsed)
	assert.Empty(t, res.Error)
	require.Len(t, m.calls, 1)
	assert.Equal(t, sendCall{to: "bob@example.com", subject: "Lunch", body: "Noon?"}, m.calls[0])
}

func TestDispatchSendEmailMissingRecipient(t *testing.T) {
	m := &stubMailer{}
	d := NewDispatcher(m)

	for _, params := range []map[string]any{
		{"subject": "Hi"},
		{"to_email": "   "},
		{"to_email": nil},
		nil,
	} {
		res := d.Dispatch(context.Background(), emailIntent(params))

		assert.False(t, res.Success)
		assert.Equal(t, model.ActionNeedMoreInfo, res.Action)
		assert.Equal(t, MissingRecipientMessage, res.Message)
	}
	assert.Empty(t, m.calls)
}

func TestDispatchSendEmailInvalidAddress(t *testing.T) {
	m := &stubMailer{outcome: mailer.Outcome{Success: true}}
	d := NewDispatcher(m)

	res := d.Dispatch(context.Background(), emailIntent(map[string]any{"to_email": "bob at example", "body": "hi"}))

	assert.False(t, res.Success)
	assert.Equal(t, model.ActionEmailFailed, res.Action)
	assert.Equal(t, "Invalid email address: bob at example", res.Error)
	assert.Empty(t, m.calls)
}

func TestDispatchSendEmailFailure(t *testing.T) {
	m := &stubMailer{outcome: mailer.Outcome{
		Error: "Failed to connect to email server after 2 attempts",
		Kind:  mailer.KindConnectionFailure,
	}}
	d := NewDispatcher(m)

	res := d.Dispatch(context.Background(), emailIntent(map[string]any{"to_email": "bob@example.com"}))

	assert.False(t, res.Success)
	assert.Equal(t, model.ActionEmailFailed, res.Action)
	assert.Equal(t, "Failed to send email: Failed to connect to email server after 2 attempts", res.Message)
	assert.Equal(t, "Failed to connect to email server after 2 attempts", res.Error)
	assert.NotNil(t, res.Details)
	assert.Len(t, m.calls, 1)
}

func TestDispatchCoercesNonStringParameters(t *testing.T) {
	m := &stubMailer{outcome: mailer.Outcome{Success: true}}
	d := NewDispatcher(m)

	res := d.Dispatch(context.Background(), emailIntent(map[string]any{
		"to_email": "bob@example.com",
		"subject":  42,
		"body":     true,
	}))

	require.True(t, res.Success)
	require.Len(t, m.calls, 1)
	assert.Equal(t, "42", m.calls[0].subject)
	assert.Equal(t, "true", m.calls[0].body)
}

func TestDispatchConversationalIntents(t *testing.T) {
	d := NewDispatcher(&stubMailer{})

	tests := []struct {
		name    string
		intent  model.ParsedIntent
		action  model.ActionKind
		success bool
		message string
	}{
		{
			name:    "chat",
			intent:  model.ParsedIntent{Kind: model.IntentGeneralChat, Message: "Hello there"},
			action:  model.ActionChatResponse,
			success: true,
			message: "Hello there",
		},
		{
			name:    "clarification",
			intent:  model.ParsedIntent{Kind: model.IntentNeedMoreInfo, Message: "Who should I email?"},
			action:  model.ActionNeedMoreInfo,
			success: true,
			message: "Who should I email?",
		},
		{
			name:    "error with message",
			intent:  model.ParsedIntent{Kind: model.IntentError, Message: "Failed to process your command: boom"},
			action:  model.ActionError,
			message: "Failed to process your command: boom",
		},
		{
			name:    "error without message",
			intent:  model.ParsedIntent{Kind: model.IntentError},
			action:  model.ActionError,
			message: FallbackErrorMessage,
		},
		{
			name:    "unknown kind",
			intent:  model.ParsedIntent{Kind: "book_flight"},
			action:  model.ActionError,
			message: FallbackErrorMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Dispatch(context.Background(), tt.intent)

			assert.Equal(t, tt.action, res.Action)
			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, tt.intent.Kind, res.Intent)
			assert.NotNil(t, res.Details)
			assert.NotNil(t, res.Parsed)
		})
	}
}

func TestRoute(t *testing.T) {
	assert.Equal(t, RouteSendEmail, Route(model.ParsedIntent{Kind: model.IntentSendEmail}))
	assert.Equal(t, RouteClarification, Route(model.ParsedIntent{Kind: model.IntentNeedMoreInfo}))
	assert.Equal(t, RouteChatResponse, Route(model.ParsedIntent{Kind: model.IntentGeneralChat}))
	assert.Equal(t, RouteErrorResponse, Route(model.ParsedIntent{Kind: model.IntentError}))
	assert.Equal(t, RouteErrorResponse, Route(model.ParsedIntent{Kind: ""}))
}
