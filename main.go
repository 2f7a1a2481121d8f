package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/voice-agent-core/server/internal/agent/graph"
	"github.com/voice-agent-core/server/internal/agent/model"
	"github.com/voice-agent-core/server/internal/agent/repo"
	"github.com/voice-agent-core/server/internal/core"
	"github.com/voice-agent-core/server/internal/mailer"
	"github.com/voice-agent-core/server/internal/server"
	"github.com/voice-agent-core/server/internal/transcribe"
	logx "github.com/voice-agent-core/server/pkg/logger"
	pkgredis "github.com/voice-agent-core/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the service, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"INFO"`

	// Infrastructure
	Redis pkgredis.Config
	HTTP  server.Config

	// Agent configs
	Gemini       model.GeminiConfig
	Conversation model.ConversationConfig

	// Collaborators
	Mail          mailer.Config
	Transcription transcribe.Config
}

func main() {
	// Load .env file
	envErr := godotenv.Load(".env")

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}

	env := core.ParseEnvironment(cfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env, Level: cfg.LogLevel})
	if envErr != nil {
		logx.Debug().Err(envErr).Msg("No .env file loaded")
	}

	if cfg.Gemini.MaxRetries < 1 {
		logx.Fatal().Int("max_retries", cfg.Gemini.MaxRetries).Msg("GEMINI_MAX_RETRIES must be at least 1")
	}
	cfg.Conversation.Normalize()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logx.Info().
		Str("environment", env.String()).
		Str("primary_model", cfg.Gemini.Model).
		Str("fallback_model", cfg.Gemini.FallbackModel).
		Int("history_limit", cfg.Conversation.HistoryLimit).
		Msg("=== Voice AI Agent starting ===")
	if cfg.Gemini.FallbackModel != "" && cfg.Gemini.FallbackModel == cfg.Gemini.Model {
		logx.Warn().Str("model", cfg.Gemini.Model).
			Msg("GEMINI_FALLBACK_MODEL equals GEMINI_MODEL, the fallback tier retries the same model")
	}

	conversationRepo := model.ConversationRepository(repo.NewMemoryConversationRepository(
		cfg.Conversation.HistoryLimit,
		repo.WithIdleTTL(cfg.Conversation.TTL),
		repo.WithMaxSessions(cfg.Conversation.MaxSessions),
	))
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New()
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
		}
		defer rdb.Close()
		conversationRepo = repo.NewRedisConversationRepository(rdb, cfg.Conversation.TTL, cfg.Conversation.HistoryLimit)
		logx.Info().Msg("Conversation history stored in Redis")
	} else {
		logx.Info().Msg("Conversation history kept in memory")
	}

	mail := mailer.New(cfg.Mail)

	runner, err := graph.BuildAgentGraph(ctx, graph.Config{
		Gemini:           cfg.Gemini,
		Conversation:     cfg.Conversation,
		ConversationRepo: conversationRepo,
		Mailer:           mail,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build agent graph")
	}

	srv := server.New(cfg.HTTP, runner, transcribe.New(cfg.Transcription), server.Info{
		Model:           cfg.Gemini.Model,
		FallbackModel:   cfg.Gemini.FallbackModel,
		EmailConfigured: mail.Configured(),
	})
	if err := srv.Run(ctx); err != nil {
		logx.Error().Err(err).Msg("HTTP server stopped with error")
		return
	}
	logx.Info().Msg("=== Voice AI Agent shut down ===")
}
