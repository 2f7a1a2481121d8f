package logx

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/voice-agent-core/server/internal/core"
)

// maxErrText bounds error text copied into log fields.
const maxErrText = 200

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
	Level:       "debug",
}

type LoggerOpts struct {
	Environment core.Environment
	// Level is a zerolog level name such as "info" or "DEBUG". Empty keeps
	// the environment default.
	Level string
	// Output overrides the destination; nil means stderr.
	Output io.Writer
}

func safe(otps ...LoggerOpts) *LoggerOpts {
	if len(otps) == 0 {
		return DefaultLoggerOpts
	}
	return &otps[0]
}

func Init(otps ...LoggerOpts) {
	opts := safe(otps...)

	var out io.Writer = os.Stderr
	if opts.Output != nil {
		out = opts.Output
	}

	level := zerolog.InfoLevel
	if opts.Environment.HumanReadableLogs() {
		out = zerolog.ConsoleWriter{Out: out}
		level = zerolog.DebugLevel
	}
	if opts.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level)); err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if !opts.Environment.IsProduction() {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger().Level(level)
}

// Ctx returns the logger stored on ctx (for example one carrying a request id)
// or the global logger.
func Ctx(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// WithFields stores a child of the global logger carrying the given string
// fields on ctx.
func WithFields(ctx context.Context, kv map[string]string) context.Context {
	lc := Ctx(ctx).With()
	for k, v := range kv {
		lc = lc.Str(k, v)
	}
	l := lc.Logger()
	return l.WithContext(ctx)
}

// Truncate shortens s for log fields.
func Truncate(s string) string {
	if len(s) <= maxErrText {
		return s
	}
	return s[:maxErrText] + "..."
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Panic() *zerolog.Event {
	return log.Panic()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
