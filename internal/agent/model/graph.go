package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// It is registered via compose.WithGenLocalState and only read or written
// inside state handlers (WithStatePreHandler, WithStatePostHandler,
// compose.ProcessState), which Eino serializes.
type AppState struct {
	SessionID string
	Utterance string
	Intent    *ParsedIntent // set by the parser post-handler

	// Model that produced the intent and how many attempts it took.
	Model    string
	Attempts int

	// Accumulated total LLM cost (USD) for this query
	TotalCostUSD float64
}

// QueryInput is the graph input: one utterance in one session.
type QueryInput struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// Completion is a successful generation together with where it came from.
type Completion struct {
	Text     string
	Model    string
	Tier     int // 0 for the primary model
	Attempts int // total attempts across all tiers, including this one
	Usage    *schema.TokenUsage
}
