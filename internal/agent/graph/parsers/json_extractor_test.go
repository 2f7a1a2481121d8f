package parsers

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/voice-agent-core/server/internal/core/error"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "plain object",
			raw:  `{"intent":"general_chat","parameters":{},"message":"hi"}`,
			want: map[string]any{"intent": "general_chat", "parameters": map[string]any{}, "message": "hi"},
		},
		{
			name: "json fence",
			raw:  "```json\n{\"intent\":\"general_chat\",\"message\":\"hey\"}\n```",
			want: map[string]any{"intent": "general_chat", "message": "hey"},
		},
		{
			name: "untagged fence",
			raw:  "```\n{\"intent\":\"need_more_info\"}\n```",
			want: map[string]any{"intent": "need_more_info"},
		},
		{
			name: "fence inside prose",
			raw:  "Sure! Here is the result:\n```json\n{\"intent\":\"general_chat\",\"message\":\"ok\"}\n```\nLet me know.",
			want: map[string]any{"intent": "general_chat", "message": "ok"},
		},
		{
			name: "nested braces in prose",
			raw:  `I understood: {"intent":"send_email","parameters":{"to_email":"a@b.com"}} done`,
			want: map[string]any{"intent": "send_email", "parameters": map[string]any{"to_email": "a@b.com"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSON(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractJSONMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"I am not sure what you mean.",
		"[1, 2, 3]",
		"null",
		`{"intent": "general_chat"`,
		`{"a":1} and then {"b":2}`,
	} {
		_, err := ExtractJSON(raw)
		require.Error(t, err, "input %q", raw)
		assert.ErrorIs(t, err, errx.ErrMalformedOutput)

		var mo *errx.MalformedOutputError
		require.ErrorAs(t, err, &mo)
		assert.Equal(t, raw, mo.Raw)
	}
}

func TestExtractJSONIsIdempotent(t *testing.T) {
	first, err := ExtractJSON("```json\n{\"intent\":\"send_email\",\"parameters\":{\"to_email\":\"a@b.com\",\"subject\":\"Budget\"},\"message\":\"Sending\"}\n```")
	require.NoError(t, err)

	b, err := json.Marshal(first)
	require.NoError(t, err)
	second, err := ExtractJSON(string(b))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtractJSONTruncatesHugeInput(t *testing.T) {
	raw := `{"intent":"general_chat"}` + strings.Repeat(" ", maxContentLen)
	got, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "general_chat", got["intent"])
}
