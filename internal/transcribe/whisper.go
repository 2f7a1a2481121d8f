// Package transcribe converts recorded speech to text using the OpenAI
// audio transcription API.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	logx "github.com/voice-agent-core/server/pkg/logger"
)

const defaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("transcription service not configured")

type Config struct {
	APIKey   string        `envconfig:"OPENAI_API_KEY"`
	Model    string        `envconfig:"TRANSCRIPTION_MODEL" default:"whisper-1"`
	Endpoint string        `envconfig:"TRANSCRIPTION_URL"`
	Timeout  time.Duration `envconfig:"TRANSCRIPTION_TIMEOUT" default:"60s"`
}

type Transcriber struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

func New(cfg Config) *Transcriber {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	return &Transcriber{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *Transcriber) Configured() bool { return t.apiKey != "" }

// Transcribe uploads audio and returns the trimmed transcript.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error) {
	if !t.Configured() {
		return "", ErrNotConfigured
	}
	if filename == "" {
		filename = "audio" + extFromContentType(contentType)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("writing model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	started := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("transcription failed (status %d): %s", resp.StatusCode, respBody)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	logx.Debug().Int("text_length", len(text)).Dur("elapsed", time.Since(started)).Msg("transcription complete")
	return text, nil
}

func extFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "webm"):
		return ".webm"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return ".mp3"
	case strings.Contains(ct, "mp4"), strings.Contains(ct, "m4a"):
		return ".m4a"
	case strings.Contains(ct, "flac"):
		return ".flac"
	default:
		return ".wav"
	}
}
