package logx

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"

	"github.com/voice-agent-core/server/internal/core"
)

func TestInitProductionWritesJSONAtLevel(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	Init(LoggerOpts{Environment: core.Production, Level: "WARN", Output: &buf})

	Info().Msg("hidden")
	Warn().Str("model", "gemini-2.0-flash").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"model":"gemini-2.0-flash"`)
	assert.Equal(t, zerolog.WarnLevel, log.Logger.GetLevel())
}

func TestWithFieldsAttachesToContext(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	Init(LoggerOpts{Environment: core.Production, Level: "info", Output: &buf})

	ctx := WithFields(context.Background(), map[string]string{"request_id": "abcd1234"})
	Ctx(ctx).Info().Msg("handled")

	assert.Contains(t, buf.String(), `"request_id":"abcd1234"`)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short"))
	long := strings.Repeat("x", 500)
	got := Truncate(long)
	assert.Len(t, got, maxErrText+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}
