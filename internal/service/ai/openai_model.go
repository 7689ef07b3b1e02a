package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAIChatModel adapts an OpenAI-compatible endpoint (Ollama by default)
// to eino's ChatModel so it can sit in the same chain as Ark.
type openAIChatModel struct {
	client      *openai.Client
	model       string
	temperature *float32
	maxTokens   *int
}

func newOpenAIChatModel(baseURL, apiKey, modelName string, temperature *float32, maxTokens *int) *openAIChatModel {
	// relative endpoint paths replace the last segment unless the base ends in "/"
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &openAIChatModel{
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(apiKey),
		),
		model:       modelName,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (m *openAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	common := model.GetCommonOptions(&model.Options{
		Model:       &m.model,
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	}, opts...)

	params := openai.ChatCompletionNewParams{
		Messages: openai.F(toOpenAIMessages(input)),
		Model:    openai.F(*common.Model),
		N:        openai.Int(1),
	}
	if common.Temperature != nil {
		params.Temperature = openai.Float(float64(*common.Temperature))
	}
	if common.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*common.MaxTokens))
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai chat completion: no choices returned")
	}

	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

// Stream answers with a single chunk; the gateway never needs token streaming.
func (m *openAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *openAIChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) > 0 {
		return errors.New("openai chat model: tools are not supported")
	}
	return nil
}

func toOpenAIMessages(input []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			out = append(out, openai.SystemMessage(msg.Content))
		case schema.Assistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessageParts(openai.TextPart(msg.Content)))
		}
	}
	return out
}
