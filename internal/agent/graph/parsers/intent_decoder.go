package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/voice-agent-core/server/internal/agent/model"
	errx "github.com/voice-agent-core/server/internal/core/error"
)

// intentEnvelopeSchema describes the object the model is asked to return.
// Every field is optional; only the types are enforced.
const intentEnvelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "intent":     {"type": ["string", "null"]},
    "parameters": {"type": ["object", "null"]},
    "message":    {"type": ["string", "null"]}
  }
}`

var intentSchema = mustCompileSchema(intentEnvelopeSchema)

func mustCompileSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile intent schema: %v", err))
	}
	return s
}

// DecodeIntent converts an extracted object into a ParsedIntent. A missing
// intent becomes general_chat, missing parameters an empty map and a missing
// message "". Type mismatches are reported as malformed output.
func DecodeIntent(obj map[string]any) (model.ParsedIntent, error) {
	result, err := intentSchema.Validate(gojsonschema.NewGoLoader(obj))
	if err != nil {
		return model.ParsedIntent{}, &errx.MalformedOutputError{Raw: rawOf(obj), Reason: err.Error()}
	}
	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			reasons = append(reasons, e.String())
		}
		return model.ParsedIntent{}, &errx.MalformedOutputError{Raw: rawOf(obj), Reason: strings.Join(reasons, "; ")}
	}

	intent := model.ParsedIntent{
		Kind:       model.IntentGeneralChat,
		Parameters: map[string]any{},
	}
	if s, ok := obj["intent"].(string); ok && strings.TrimSpace(s) != "" {
		intent.Kind = model.IntentKind(strings.TrimSpace(s))
	}
	if p, ok := obj["parameters"].(map[string]any); ok {
		intent.Parameters = p
	}
	if m, ok := obj["message"].(string); ok {
		intent.Message = m
	}
	return intent, nil
}

func rawOf(obj map[string]any) string {
	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Sprint(obj)
	}
	return string(b)
}
