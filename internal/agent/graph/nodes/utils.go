package nodes

import (
	"strings"

	"github.com/voice-agent-core/server/internal/agent/model"
	logx "github.com/voice-agent-core/server/pkg/logger"
)

func normalizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.DefaultSessionID
	}
	return id
}

// recordUsage adds the priced usage of c to the running query cost.
func recordUsage(s *model.AppState, c *model.Completion) {
	cost, ok := c.Cost()
	if !ok {
		return
	}
	s.TotalCostUSD += cost.TotalCost
	logx.Debug().
		Str("session_id", s.SessionID).
		Str("node", NodeIntentParser).
		Str("model", cost.Model).
		Int("prompt_tokens", cost.PromptTokens).
		Int("completion_tokens", cost.CompletionTokens).
		Float64("input_cost_usd", cost.InputCost).
		Float64("output_cost_usd", cost.OutputCost).
		Float64("total_cost_usd", s.TotalCostUSD).
		Msg("LLM usage")
}
