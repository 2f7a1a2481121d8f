package model

import "time"

// ================ Config ================

// GeminiConfig configures the model tiers and the retry policy of the
// completion client.
type GeminiConfig struct {
	APIKey        string        `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL       string        `envconfig:"GEMINI_BASE_URL"`
	Model         string        `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	FallbackModel string        `envconfig:"GEMINI_FALLBACK_MODEL" default:"gemini-2.0-flash-lite"`
	MaxRetries    int           `envconfig:"GEMINI_MAX_RETRIES" default:"3"`
	TimeoutSecs   int           `envconfig:"GEMINI_TIMEOUT_SECONDS" default:"30"`
	Temperature   float32       `envconfig:"GEMINI_TEMPERATURE" default:"0.2"`
	MaxTokens     int           `envconfig:"GEMINI_MAX_TOKENS" default:"1024"`
	BackoffBase   time.Duration `envconfig:"GEMINI_BACKOFF_BASE" default:"2s"`
}

// Tiers returns the model ids in the order they are tried. Empty ids are
// dropped; a fallback equal to the primary is kept and tried as its own tier.
func (c GeminiConfig) Tiers() []string {
	tiers := make([]string, 0, 2)
	for _, m := range []string{c.Model, c.FallbackModel} {
		if m != "" {
			tiers = append(tiers, m)
		}
	}
	return tiers
}

// Timeout is the per-call deadline applied to each generation attempt.
func (c GeminiConfig) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

type ConversationConfig struct {
	TTL          time.Duration `envconfig:"CONVERSATION_TTL" default:"24h"`
	HistoryLimit int           `envconfig:"CONVERSATION_HISTORY_LIMIT" default:"10"`
	ContextTurns int           `envconfig:"CONVERSATION_CONTEXT_TURNS" default:"5"`
	MaxSessions  int           `envconfig:"CONVERSATION_MAX_SESSIONS" default:"1000"`
}

// Normalize clamps the limits: capacity is never negative and the prompt
// never shows more turns than are kept.
func (c *ConversationConfig) Normalize() {
	if c.HistoryLimit < 0 {
		c.HistoryLimit = 0
	}
	if c.ContextTurns < 0 {
		c.ContextTurns = 0
	}
	if c.ContextTurns > c.HistoryLimit {
		c.ContextTurns = c.HistoryLimit
	}
}
