// Package dispatch turns a ParsedIntent into an ActionResult, performing
// the email side effect when the intent asks for it.
package dispatch

import (
	"context"
	"fmt"

	"github.com/voice-agent-core/server/internal/agent/model"
	"github.com/voice-agent-core/server/internal/mailer"
	logx "github.com/voice-agent-core/server/pkg/logger"
)

const (
	MissingRecipientMessage = "I need the recipient's email address. Could you provide it?"
	FallbackErrorMessage    = "I encountered an error processing your request."
)

// Route names, one per outcome branch of the agent graph.
const (
	RouteSendEmail     = "send_email"
	RouteClarification = "clarification"
	RouteChatResponse  = "chat_response"
	RouteErrorResponse = "error_response"
)

// Mailer is the mail transport as seen by the dispatcher.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) mailer.Outcome
}

type Dispatcher struct {
	mailer Mailer
}

func NewDispatcher(m Mailer) *Dispatcher {
	return &Dispatcher{mailer: m}
}

// Route selects the handler for an intent.
func Route(intent model.ParsedIntent) string {
	switch intent.Kind {
	case model.IntentSendEmail:
		return RouteSendEmail
	case model.IntentNeedMoreInfo:
		return RouteClarification
	case model.IntentGeneralChat:
		return RouteChatResponse
	default:
		return RouteErrorResponse
	}
}

// Dispatch executes intent and reports the outcome. It never fails; every
// problem is expressed in the returned result.
func (d *Dispatcher) Dispatch(ctx context.Context, intent model.ParsedIntent) *model.ActionResult {
	switch Route(intent) {
	case RouteSendEmail:
		return d.SendEmail(ctx, intent)
	case RouteClarification:
		return d.Clarify(intent)
	case RouteChatResponse:
		return d.Chat(intent)
	default:
		return d.Fail(intent)
	}
}

func (d *Dispatcher) SendEmail(ctx context.Context, intent model.ParsedIntent) *model.ActionResult {
	to := intent.Param(model.ParamToEmail)
	subject := intent.Param(model.ParamSubject)
	body := intent.Param(model.ParamBody)

	if to == "" {
		return model.NewActionResult(model.ActionNeedMoreInfo, intent.Kind, false, MissingRecipientMessage)
	}

	parsed := map[string]any{"to": to, "subject": subject, "body": body}

	if !mailer.ValidateAddress(to) {
		logx.Info().Str("to", to).Msg("rejected invalid recipient address")
		msg := fmt.Sprintf("Invalid email address: %s", to)
		res := model.NewActionResult(model.ActionEmailFailed, intent.Kind, false, msg)
		res.Error = msg
		res.Parsed = parsed
		return res
	}

	out := d.mailer.Send(ctx, to, subject, body)
	if out.Success {
		res := model.NewActionResult(model.ActionEmailSent, intent.Kind, true, fmt.Sprintf("Email sent successfully to %s", to))
		if out.Details != nil {
			res.Details = out.Details
		}
		res.Parsed = parsed
		return res
	}

	logx.Warn().Str("to", to).Str("kind", string(out.Kind)).Msg("email delivery failed")
	res := model.NewActionResult(model.ActionEmailFailed, intent.Kind, false, fmt.Sprintf("Failed to send email: %s", out.Error))
	res.Error = out.Error
	res.Parsed = parsed
	return res
}

func (d *Dispatcher) Clarify(intent model.ParsedIntent) *model.ActionResult {
	return model.NewActionResult(model.ActionNeedMoreInfo, intent.Kind, true, intent.Message)
}

func (d *Dispatcher) Chat(intent model.ParsedIntent) *model.ActionResult {
	return model.NewActionResult(model.ActionChatResponse, intent.Kind, true, intent.Message)
}

// Fail reports an error intent, or any intent kind the dispatcher does not
// know how to handle.
func (d *Dispatcher) Fail(intent model.ParsedIntent) *model.ActionResult {
	msg := intent.Message
	if msg == "" {
		msg = FallbackErrorMessage
	}
	if !intent.Kind.Known() && intent.Kind != model.IntentError {
		logx.Warn().Str("intent", string(intent.Kind)).Msg("unknown intent kind")
	}
	return model.NewActionResult(model.ActionError, intent.Kind, false, msg)
}
