package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/voice-agent-core/server/internal/agent/model"
	errx "github.com/voice-agent-core/server/internal/core/error"
	logx "github.com/voice-agent-core/server/pkg/logger"
)

const (
	maxTextRunes      = 2000
	maxSessionIDRunes = 128
	sessionIDHeader   = "X-Session-ID"
)

type executeRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

type capability struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Example     string `json:"example"`
}

var capabilities = []capability{
	{
		ID:          "send_email",
		Name:        "Send Email",
		Description: "Send emails to any address via voice command",
		Icon:        "mail",
		Example:     "Send an email to john@example.com about the project update",
	},
	{
		ID:          "general_chat",
		Name:        "General Chat",
		Description: "Ask questions or have a conversation",
		Icon:        "chat",
		Example:     "What's the weather like today?",
	},
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Voice AI Agent API",
		"status":  "running",
		"version": Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"gemini_model":     s.info.Model,
		"fallback_model":   s.info.FallbackModel,
		"email_configured": s.info.EmailConfigured,
		"version":          Version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "online",
		"capabilities":     capabilities,
		"email_configured": s.info.EmailConfigured,
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, errx.Validation("request body must be JSON with a text field"))
		return
	}
	if err := validateText(req.Text); err != nil {
		writeError(w, err)
		return
	}

	s.execute(w, r, sessionID(r, req.SessionID), req.Text, func(res *model.ActionResult) any { return res })
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	text, ok := s.transcribeUpload(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": text})
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	text, ok := s.transcribeUpload(w, r)
	if !ok {
		return
	}
	if err := validateText(text); err != nil {
		writeError(w, errx.Validation("no speech recognized in the recording"))
		return
	}

	s.execute(w, r, sessionID(r, r.FormValue("session_id")), text, func(res *model.ActionResult) any {
		return map[string]any{"transcript": text, "result": res}
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.ClearHistory(r.Context(), sessionID(r, "")); err != nil {
		logx.Ctx(r.Context()).Error().Err(err).Msg("failed to clear conversation history")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Conversation history cleared"})
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, session, text string, shape func(*model.ActionResult) any) {
	res, err := s.agent.Invoke(r.Context(), model.QueryInput{SessionID: session, Text: text})
	if err != nil {
		logx.Ctx(r.Context()).Error().Str("error", logx.Truncate(err.Error())).Msg("agent execution error")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": fmt.Sprintf("Agent execution error: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, shape(res))
}

// transcribeUpload reads the multipart "file" field and transcribes it. On
// failure it has already written the response.
func (s *Server) transcribeUpload(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.transcriber == nil || !s.transcriber.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"detail": "Transcription service not configured. Set OPENAI_API_KEY in .env"})
		return "", false
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxAudioBytes+(1<<20))
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"detail": "Audio file too large"})
			return "", false
		}
		writeError(w, errx.Validation("multipart field 'file' is required"))
		return "", false
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxAudioBytes+1))
	if err != nil {
		writeError(w, errx.Validation("could not read uploaded audio"))
		return "", false
	}
	if int64(len(audio)) > s.cfg.MaxAudioBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"detail": "Audio file too large"})
		return "", false
	}
	if len(audio) == 0 {
		writeError(w, errx.Validation("uploaded audio is empty"))
		return "", false
	}

	text, err := s.transcriber.Transcribe(r.Context(), audio, hdr.Filename, hdr.Header.Get("Content-Type"))
	if err != nil {
		logx.Ctx(r.Context()).Error().Str("error", logx.Truncate(err.Error())).Msg("transcription error")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": fmt.Sprintf("Transcription error: %v", err)})
		return "", false
	}
	return text, true
}

func validateText(text string) error {
	n := utf8.RuneCountInString(text)
	if strings.TrimSpace(text) == "" || n > maxTextRunes {
		return errx.Validation(fmt.Sprintf("text must be between 1 and %d characters", maxTextRunes))
	}
	return nil
}

// sessionID prefers the X-Session-ID header, then the body value.
func sessionID(r *http.Request, fromBody string) string {
	if id := strings.TrimSpace(r.Header.Get(sessionIDHeader)); id != "" {
		return clampSessionID(id)
	}
	if id := strings.TrimSpace(fromBody); id != "" {
		return clampSessionID(id)
	}
	return model.DefaultSessionID
}

// clampSessionID bounds client-chosen ids, which become storage keys.
func clampSessionID(id string) string {
	if utf8.RuneCountInString(id) <= maxSessionIDRunes {
		return id
	}
	return string([]rune(id)[:maxSessionIDRunes])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err using the status and safe message of an AppError.
func writeError(w http.ResponseWriter, err error) {
	status := errx.StatusOf(err)
	msg := errx.SystemErrorMessage
	var appErr *errx.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		msg = appErr.Message
	}
	writeJSON(w, status, map[string]any{"detail": msg})
}
