package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapRedis(t *testing.T) {
	assert.Nil(t, WrapRedis(nil))

	notFound := WrapRedis(redis.Nil)
	assert.Equal(t, http.StatusNotFound, StatusOf(notFound))
	assert.ErrorIs(t, notFound, redis.Nil)

	down := WrapRedis(errors.New("connection refused"))
	assert.Equal(t, http.StatusBadGateway, StatusOf(down))
	assert.Contains(t, down.Error(), RedisErrorMessage)
}

func TestStatusOfWrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", Validation("text is required"))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(err))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
}

func TestProviderErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		code      int
		err       error
		transient bool
	}{
		{"rate limited", 429, errors.New("too many requests"), true},
		{"server error", 503, errors.New("unavailable"), true},
		{"bad request", 400, errors.New("invalid argument"), false},
		{"auth", 403, errors.New("permission denied"), false},
		{"unknown code quota text", 0, errors.New("Quota exceeded for model"), true},
		{"unknown code plain text", 0, errors.New("malformed request"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pe := NewProviderError("gemini-2.0-flash", tc.code, tc.err)
			assert.Equal(t, tc.transient, IsTransient(pe))
			assert.Equal(t, tc.transient, errors.Is(pe, ErrTransientProvider))
			assert.Equal(t, !tc.transient, errors.Is(pe, ErrTerminalProvider))
		})
	}
}

func TestIsTransientHeuristics(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", errors.New("HTTP 500 internal"))))
	assert.False(t, IsTransient(errors.New("invalid api key")))
}

func TestIsTransientMatchesWholeStatusCodes(t *testing.T) {
	assert.False(t, IsTransient(errors.New("request exceeded the 5000 tokens limit")))
	assert.False(t, IsTransient(errors.New("prompt id 15021 rejected: invalid argument")))
	assert.True(t, IsTransient(errors.New("status 503: backend busy")))
	assert.True(t, IsTransient(errors.New("error 429")))
}

func TestExhaustedError(t *testing.T) {
	last := NewProviderError("gemini-2.0-flash-lite", 429, errors.New("slow down"))
	err := &ExhaustedError{Attempts: 4, Tiers: 2, Last: last}

	assert.ErrorIs(t, err, ErrCompletionExhausted)
	assert.ErrorIs(t, err, ErrTransientProvider)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "gemini-2.0-flash-lite", pe.Model)
	assert.Equal(t, "completion exhausted after 4 attempts", err.Message())
	assert.Contains(t, err.Error(), "4 attempts across 2 model tiers")
}

func TestMalformedOutputError(t *testing.T) {
	err := error(&MalformedOutputError{Raw: "hello", Reason: "no JSON object found"})
	assert.ErrorIs(t, err, ErrMalformedOutput)

	var mo *MalformedOutputError
	require.ErrorAs(t, err, &mo)
	assert.Equal(t, "hello", mo.Raw)
}
