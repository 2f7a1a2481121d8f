package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	errx "github.com/voice-agent-core/server/internal/core/error"
	logx "github.com/voice-agent-core/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200        // limit error snippet size
)

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
	// greedy: first '{' through last '}'
	objectSpan = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ExtractJSON recovers a JSON object from a model completion. It tries, in
// order: the text with markdown fences stripped, then the span from the first
// '{' to the last '}'. Anything else is an *errx.MalformedOutputError that
// carries the raw completion.
func ExtractJSON(raw string) (obj map[string]any, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "json_extractor").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("json extractor panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			obj = nil
		}
	}()

	content := raw
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "json_extractor").
			Int("length", len(content)).
			Int("limit", maxContentLen).
			Msg("completion exceeds max length, truncating")
		content = content[:maxContentLen]
	}

	cleaned := strings.TrimSpace(content)
	cleaned = leadingFence.ReplaceAllString(cleaned, "")
	cleaned = trailingFence.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if obj, ok := decodeObject(cleaned); ok {
		return obj, nil
	}

	if span := objectSpan.FindString(cleaned); span != "" {
		if obj, ok := decodeObject(span); ok {
			logx.Debug().Str("component", "json_extractor").Msg("recovered JSON object embedded in prose")
			return obj, nil
		}
	}

	logx.Warn().
		Str("component", "json_extractor").
		Str("snippet", safeSnippet(raw)).
		Msg("no JSON object found in completion")
	return nil, &errx.MalformedOutputError{Raw: raw, Reason: "no JSON object found"}
}

// decodeObject accepts only a JSON object; arrays, scalars and null are rejected.
func decodeObject(s string) (map[string]any, bool) {
	if s == "" {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
