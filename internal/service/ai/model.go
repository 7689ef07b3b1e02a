package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/z-market/backend/internal/config"
)

// NewChatModel 使用配置创建一个模型实例。
func NewChatModel(ctx context.Context, cfg config.AIConfig) (model.ChatModel, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("模型配置缺失：provider=%s，至少提供 Model 以及对应后端的凭证或地址", cfg.Provider)
	}

	var temperature *float32
	if cfg.Temperature != nil {
		val := float32(*cfg.Temperature)
		temperature = &val
	}

	var maxTokens *int
	if cfg.MaxTokens != nil {
		val := *cfg.MaxTokens
		maxTokens = &val
	}

	switch cfg.Provider {
	case config.ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     cfg.BaseURL,
			Region:      cfg.Region,
			APIKey:      cfg.APIKey,
			AccessKey:   cfg.AccessKey,
			SecretKey:   cfg.SecretKey,
			Model:       cfg.Model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
	case config.ProviderOpenAI:
		return newOpenAIChatModel(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.Model, temperature, maxTokens), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
