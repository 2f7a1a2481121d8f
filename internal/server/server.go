// Package server exposes the agent over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/cors"

	"github.com/voice-agent-core/server/internal/agent/model"
	logx "github.com/voice-agent-core/server/pkg/logger"
)

const Version = "2.1.0"

type Config struct {
	Port            int           `envconfig:"PORT" default:"8000"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	MaxAudioBytes   int64         `envconfig:"MAX_AUDIO_BYTES" default:"26214400"`
}

// Agent runs one utterance through the pipeline.
type Agent interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.ActionResult, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

// Transcriber turns uploaded audio into text.
type Transcriber interface {
	Configured() bool
	Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error)
}

// Info is static service information reported by /health and the status route.
type Info struct {
	Model           string
	FallbackModel   string
	EmailConfigured bool
}

type Server struct {
	cfg         Config
	agent       Agent
	transcriber Transcriber
	info        Info
	ready       atomic.Bool
	httpServer  *http.Server
}

func New(cfg Config, agent Agent, transcriber Transcriber, info Info) *Server {
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = 25 << 20
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{cfg: cfg, agent: agent, transcriber: transcriber, info: info}
}

// Handler returns the routed handler wrapped in CORS, request id and access
// log middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/agent/status", s.handleStatus)
	mux.HandleFunc("POST /api/agent/execute", s.handleExecute)
	mux.HandleFunc("POST /api/agent/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /api/agent/voice", s.handleVoice)
	mux.HandleFunc("POST /api/agent/clear-history", s.handleClearHistory)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{requestIDHeader},
	})
	return requestID(accessLog(c.Handler(mux)))
}

// SetReady flips the readiness probe.
func (s *Server) SetReady(ready bool) { s.ready.Store(ready) }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Int("port", s.cfg.Port).Strs("cors_origins", s.cfg.CORSOrigins).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listen: %w", err)
		}
		close(errCh)
	}()
	s.SetReady(true)

	select {
	case err, ok := <-errCh:
		s.SetReady(false)
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.SetReady(false)
	logx.Info().Dur("timeout", s.cfg.ShutdownTimeout).Msg("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
