package nodes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/voice-agent-core/server/internal/agent/completion"
	"github.com/voice-agent-core/server/internal/agent/model"
	errx "github.com/voice-agent-core/server/internal/core/error"
	logx "github.com/voice-agent-core/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey  string
	BaseURL string
	Gemini  model.GeminiConfig
}

// ChatModels holds one Gemini chat model per tier and serves as the
// completion client's Generator.
type ChatModels struct {
	models  map[string]einomodel.BaseChatModel
	timeout time.Duration
}

// NewChatModels creates a chat model for every configured tier over one
// shared Gemini client.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	tiers := config.Gemini.Tiers()
	if len(tiers) == 0 {
		return nil, errors.New("no Gemini model configured")
	}

	models := make(map[string]einomodel.BaseChatModel, len(tiers))
	for _, name := range tiers {
		temperature := config.Gemini.Temperature
		maxTokens := config.Gemini.MaxTokens
		cm, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       name,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})
		if err != nil {
			logx.Error().Err(err).Str("model", name).Msg("Error creating Gemini chat model")
			return nil, fmt.Errorf("error creating chat model %s: %w", name, err)
		}
		models[name] = cm
	}

	logx.Debug().Strs("tiers", tiers).Msg("Gemini chat models ready")
	return NewChatModelsFrom(models, config.Gemini.Timeout()), nil
}

// NewChatModelsFrom wraps already constructed chat models keyed by model id.
func NewChatModelsFrom(models map[string]einomodel.BaseChatModel, timeout time.Duration) *ChatModels {
	return &ChatModels{models: models, timeout: timeout}
}

// Generate sends prompt as a single user message to the named model. Errors
// are returned as *errx.ProviderError so the completion client can decide
// whether to retry.
func (cm *ChatModels) Generate(ctx context.Context, prompt, modelID string) (*model.Completion, error) {
	chatModel, ok := cm.models[modelID]
	if !ok {
		return nil, errx.NewProviderError(modelID, http.StatusBadRequest, fmt.Errorf("model %q is not configured", modelID))
	}

	callCtx := ctx
	if cm.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cm.timeout)
		defer cancel()
	}
	callCtx = callbacks.ReuseHandlers(callCtx, &callbacks.RunInfo{
		Name:      modelID,
		Type:      "Gemini",
		Component: components.ComponentOfChatModel,
	})

	out, err := chatModel.Generate(callCtx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return nil, classifyGenerateError(ctx, modelID, err)
	}
	if out == nil {
		return &model.Completion{Model: modelID}, nil
	}

	c := &model.Completion{Text: strings.TrimSpace(out.Content), Model: modelID}
	if out.ResponseMeta != nil {
		c.Usage = out.ResponseMeta.Usage
	}
	return c, nil
}

// classifyGenerateError maps Gemini API status codes onto the provider error
// taxonomy. A per-call timeout that fired while the caller is still waiting
// counts as a transient 504.
func classifyGenerateError(parent context.Context, modelID string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return errx.NewProviderError(modelID, apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return errx.NewProviderError(modelID, apiErrPtr.Code, err)
	}
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return errx.NewProviderError(modelID, http.StatusGatewayTimeout, err)
	}
	return errx.NewProviderError(modelID, 0, err)
}

var _ completion.Generator = (*ChatModels)(nil)
