package model

import (
	"fmt"
	"strings"
)

// IntentKind is the goal the model assigned to an utterance. Values outside
// the known set are kept verbatim so they can be logged; the dispatcher
// treats them as errors.
type IntentKind string

const (
	IntentSendEmail    IntentKind = "send_email"
	IntentGeneralChat  IntentKind = "general_chat"
	IntentNeedMoreInfo IntentKind = "need_more_info"
	IntentError        IntentKind = "error"
)

// Known reports whether k is one of the kinds the model may legitimately return.
func (k IntentKind) Known() bool {
	switch k {
	case IntentSendEmail, IntentGeneralChat, IntentNeedMoreInfo:
		return true
	}
	return false
}

// send_email parameter names.
const (
	ParamToEmail = "to_email"
	ParamSubject = "subject"
	ParamBody    = "body"
)

type ParsedIntent struct {
	Kind       IntentKind     `json:"intent"`
	Parameters map[string]any `json:"parameters"`
	Message    string         `json:"message"`
}

// Param returns a parameter as trimmed text. Non-string values are
// formatted; missing or null values yield "".
func (p ParsedIntent) Param(name string) string {
	v, ok := p.Parameters[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// ActionKind is the outcome reported to the client.
type ActionKind string

const (
	ActionEmailSent    ActionKind = "email_sent"
	ActionEmailFailed  ActionKind = "email_failed"
	ActionNeedMoreInfo ActionKind = "need_more_info"
	ActionChatResponse ActionKind = "chat_response"
	ActionError        ActionKind = "error"
)

// ActionResult is the terminal value of one pipeline run.
type ActionResult struct {
	Success bool           `json:"success"`
	Action  ActionKind     `json:"action"`
	Intent  IntentKind     `json:"intent"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
	Parsed  map[string]any `json:"parsed"`
	Error   string         `json:"error,omitempty"`
}

// NewActionResult returns a result with empty, non-nil detail maps so the
// JSON shape is stable.
func NewActionResult(action ActionKind, intent IntentKind, success bool, message string) *ActionResult {
	return &ActionResult{
		Success: success,
		Action:  action,
		Intent:  intent,
		Message: message,
		Details: map[string]any{},
		Parsed:  map[string]any{},
	}
}
