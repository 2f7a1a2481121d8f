package errx

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

var (
	ErrTransientProvider   = errors.New("transient provider error")
	ErrTerminalProvider    = errors.New("terminal provider error")
	ErrCompletionExhausted = errors.New("completion exhausted")
	ErrMalformedOutput     = errors.New("malformed model output")
)

// ProviderError is a classified failure returned by a text generation backend.
type ProviderError struct {
	Model     string
	Code      int
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "terminal"
	if e.Transient {
		kind = "transient"
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s provider error (model=%s, code=%d): %v", kind, e.Model, e.Code, e.Err)
	}
	return fmt.Sprintf("%s provider error (model=%s): %v", kind, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrTransientProvider:
		return e.Transient
	case ErrTerminalProvider:
		return !e.Transient
	}
	return false
}

// NewProviderError classifies err by its HTTP status code. A zero code falls
// back to inspecting the error text.
func NewProviderError(model string, code int, err error) *ProviderError {
	transient := IsTransientStatus(code)
	if code == 0 && err != nil {
		transient = looksTransient(err.Error())
	}
	return &ProviderError{Model: model, Code: code, Transient: transient, Err: err}
}

// IsTransientStatus reports whether an HTTP status signals rate limiting or a
// temporary server-side failure.
func IsTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// IsTransient reports whether err is worth retrying on the same model tier.
// Unclassified errors are judged from their text.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return looksTransient(err.Error())
}

func looksTransient(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range []string{"quota", "rate limit", "resource_exhausted", "unavailable", "overloaded"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return transientStatusPattern.MatchString(lower)
}

// transientStatusPattern matches a standalone 429 or 5xx status code, so
// token counts or port numbers that merely contain those digits do not match.
var transientStatusPattern = regexp.MustCompile(`\b(429|500|502|503|504)\b`)

// ExhaustedError is returned once every attempt on every model tier failed.
type ExhaustedError struct {
	Attempts int
	Tiers    int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s across %d model tiers: %v", e.Message(), e.Tiers, e.Last)
}

// Message is the summary without the provider payload.
func (e *ExhaustedError) Message() string {
	return fmt.Sprintf("%s after %d attempts", ErrCompletionExhausted.Error(), e.Attempts)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrCompletionExhausted
}

// MalformedOutputError carries a model completion that held no JSON object.
type MalformedOutputError struct {
	Raw    string
	Reason string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedOutput.Error(), e.Reason)
}

func (e *MalformedOutputError) Is(target error) bool {
	return target == ErrMalformedOutput
}
