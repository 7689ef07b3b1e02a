package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/zhouzirui/z-market/backend/internal/config"
)

type fakeChatModel struct {
	mu     sync.Mutex
	inputs [][]*schema.Message
	reply  string
	err    error
	delay  time.Duration
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func TestCompleteBuildsSystemAndUserMessages(t *testing.T) {
	fake := &fakeChatModel{reply: "  product_search \n"}
	svc, err := NewServiceWithModel(context.Background(), fake, time.Second)
	require.NoError(t, err)

	got, err := svc.Complete(context.Background(), "Classify {this}", "dove trovo il latte?")
	require.NoError(t, err)
	assert.Equal(t, "product_search", got)

	require.Len(t, fake.inputs, 1)
	msgs := fake.inputs[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "Classify {this}", msgs[0].Content)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, "dove trovo il latte?", msgs[1].Content)
}

func TestCompleteEmptyReply(t *testing.T) {
	svc, err := NewServiceWithModel(context.Background(), &fakeChatModel{reply: "   "}, 0)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestCompletePropagatesModelError(t *testing.T) {
	boom := errors.New("model offline")
	svc, err := NewServiceWithModel(context.Background(), &fakeChatModel{err: boom}, 0)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, boom)
}

func TestCompleteHonoursTimeout(t *testing.T) {
	svc, err := NewServiceWithModel(context.Background(), &fakeChatModel{reply: "late", delay: time.Second}, 20*time.Millisecond)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewServiceWithModelRequiresModel(t *testing.T) {
	_, err := NewServiceWithModel(context.Background(), nil, 0)
	assert.Error(t, err)
}

func TestNewChatModelRequiresConfiguration(t *testing.T) {
	_, err := NewChatModel(context.Background(), config.AIConfig{Provider: config.ProviderOpenAI})
	assert.Error(t, err)
}

func TestOpenAIChatModelAgainstCompatibleServer(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/chat/completions"), r.URL.Path)
		body, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":0,"model":"qwen2.5","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"yes"}}]}`))
	}))
	t.Cleanup(server.Close)

	chatModel, err := NewChatModel(context.Background(), config.AIConfig{
		Provider:      config.ProviderOpenAI,
		Model:         "qwen2.5",
		OpenAIBaseURL: server.URL + "/v1",
		OpenAIAPIKey:  "ollama",
	})
	require.NoError(t, err)

	svc, err := NewServiceWithModel(context.Background(), chatModel, time.Second)
	require.NoError(t, err)

	got, err := svc.Complete(context.Background(), "You are a classifier.", "cosa sai fare?")
	require.NoError(t, err)
	assert.Equal(t, "yes", got)

	assert.Equal(t, "qwen2.5", gjson.GetBytes(body, "model").String())
	assert.Equal(t, "system", gjson.GetBytes(body, "messages.0.role").String())
	assert.Equal(t, "You are a classifier.", gjson.GetBytes(body, "messages.0.content").String())
	assert.Equal(t, "user", gjson.GetBytes(body, "messages.1.role").String())
}
