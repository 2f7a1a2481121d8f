package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"

	"github.com/voice-agent-core/server/internal/agent/dispatch"
	"github.com/voice-agent-core/server/internal/agent/intent"
	"github.com/voice-agent-core/server/internal/agent/model"
	logx "github.com/voice-agent-core/server/pkg/logger"
)

// Node names. The outcome nodes share their names with dispatch routes so the
// branch condition can return dispatch.Route directly.
const (
	NodeIntentParser  = "intent_parser"
	NodeSendEmail     = dispatch.RouteSendEmail
	NodeClarification = dispatch.RouteClarification
	NodeChatResponse  = dispatch.RouteChatResponse
	NodeErrorResponse = dispatch.RouteErrorResponse
)

// OutcomeNodes lists every node the intent branch may route to.
var OutcomeNodes = []string{NodeSendEmail, NodeClarification, NodeChatResponse, NodeErrorResponse}

// NewIntentParserPreHandler seeds per-query state from the input.
func NewIntentParserPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		in.SessionID = normalizeSessionID(in.SessionID)
		s.SessionID = in.SessionID
		s.Utterance = in.Text
		s.Intent = nil
		s.Model = ""
		s.Attempts = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewIntentParserNode classifies the utterance.
func NewIntentParserNode(p *intent.Parser) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) (intent.Analysis, error) {
		return p.Analyze(ctx, in.SessionID, in.Text), nil
	})
}

// NewIntentParserPostHandler stores the intent and prices the completion.
func NewIntentParserPostHandler() func(context.Context, intent.Analysis, *model.AppState) (intent.Analysis, error) {
	return func(ctx context.Context, out intent.Analysis, s *model.AppState) (intent.Analysis, error) {
		parsed := out.Intent
		s.Intent = &parsed
		if out.Completion != nil {
			s.Model = out.Completion.Model
			s.Attempts = out.Completion.Attempts
		}
		recordUsage(s, out.Completion)
		return out, nil
	}
}

// NewIntentCondition routes to the outcome node for the parsed intent.
func NewIntentCondition() func(context.Context, intent.Analysis) (string, error) {
	return func(ctx context.Context, in intent.Analysis) (string, error) {
		route := dispatch.Route(in.Intent)
		logx.Debug().Str("intent", string(in.Intent.Kind)).Str("route", route).Msg("Routing intent")
		return route, nil
	}
}

// NewSendEmailNode validates the parameters and sends the email.
func NewSendEmailNode(d *dispatch.Dispatcher) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in intent.Analysis) (*model.ActionResult, error) {
		return d.SendEmail(ctx, in.Intent), nil
	})
}

func NewClarificationNode(d *dispatch.Dispatcher) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in intent.Analysis) (*model.ActionResult, error) {
		return d.Clarify(in.Intent), nil
	})
}

func NewChatResponseNode(d *dispatch.Dispatcher) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in intent.Analysis) (*model.ActionResult, error) {
		return d.Chat(in.Intent), nil
	})
}

func NewErrorResponseNode(d *dispatch.Dispatcher) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in intent.Analysis) (*model.ActionResult, error) {
		return d.Fail(in.Intent), nil
	})
}

// NewOutcomePostHandler logs the final result of a query.
func NewOutcomePostHandler(node string) func(context.Context, *model.ActionResult, *model.AppState) (*model.ActionResult, error) {
	return func(ctx context.Context, out *model.ActionResult, s *model.AppState) (*model.ActionResult, error) {
		if out == nil {
			return out, nil
		}
		logx.Info().
			Str("session_id", s.SessionID).
			Str("node", node).
			Str("intent", string(out.Intent)).
			Str("action", string(out.Action)).
			Bool("success", out.Success).
			Str("model", s.Model).
			Int("attempts", s.Attempts).
			Float64("total_cost_usd", s.TotalCostUSD).
			Msg("Query handled")
		return out, nil
	}
}
