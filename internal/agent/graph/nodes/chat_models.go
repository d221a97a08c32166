package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/Chative-order-agent/server/internal/agent/model"
	logx "github.com/Chative-order-agent/server/pkg/logger"
)

// ChatModelConfig holds the configuration for planner model creation
type ChatModelConfig struct {
	APIKey  string
	BaseURL string
	Planner *model.PlannerModelConfig
}

// NewPlannerModel creates the Gemini chat model that plans function calls and
// binds the order functions to it.
func NewPlannerModel(ctx context.Context, config ChatModelConfig, tools []*schema.ToolInfo) (*gemini.ChatModel, error) {
	if config.Planner == nil {
		return nil, fmt.Errorf("planner model config is nil")
	}

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

	cfg := &gemini.Config{
		Client:      client,
		Model:       config.Planner.Model,
		Temperature: &config.Planner.Temperature,
		MaxTokens:   &config.Planner.MaxTokens,
	}
	if config.Planner.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(config.Planner.ThinkingBudget),
		}
	}

	planner, err := gemini.NewChatModel(ctx, cfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating planner model")
		return nil, fmt.Errorf("error creating planner model: %w", err)
	}

	if err := planner.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}

	logx.Debug().Str("model", config.Planner.Model).Int("tools", len(tools)).Msg("Planner model ready")
	return planner, nil
}
