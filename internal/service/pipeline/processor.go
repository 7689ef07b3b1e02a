// Package pipeline turns a received query into the ordered sequence of
// lifecycle events and answers delivered to its session.
package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	agentmodel "github.com/zhouzirui/z-market/backend/internal/model/agent"
	"github.com/zhouzirui/z-market/backend/internal/model/chat"
	speechmodel "github.com/zhouzirui/z-market/backend/internal/model/speech"
	"github.com/zhouzirui/z-market/backend/internal/service/broker"
	"github.com/zhouzirui/z-market/backend/internal/service/worker"
	"github.com/zhouzirui/z-market/backend/pkg/logx"
)

// Router answers a text query.
type Router interface {
	Route(ctx context.Context, query, sessionID string) agentmodel.Result
}

// Transcriber converts recorded audio to text.
type Transcriber interface {
	TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format string) (*speechmodel.ASRResponse, error)
}

// Publisher is the broker side used to reach sessions.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload chat.Delivery)
}

// Submitter runs jobs off the caller's goroutine.
type Submitter interface {
	Submit(ctx context.Context, job worker.Job) error
}

// Processor 查询处理流水线
type Processor struct {
	router      Router
	transcriber Transcriber
	pool        Submitter
	bus         Publisher
	audioFormat string
}

// New creates a processor. transcriber may be nil when audio is disabled.
func New(router Router, transcriber Transcriber, pool Submitter, bus Publisher) *Processor {
	return &Processor{
		router:      router,
		transcriber: transcriber,
		pool:        pool,
		bus:         bus,
		audioFormat: "wav",
	}
}

// DispatchText handles a text frame from the read loop.
func (p *Processor) DispatchText(ctx context.Context, sessionID, text string) {
	slog.Info("text received", logx.Session(sessionID), slog.String("preview", preview(text)))
	p.bus.Publish(ctx, broker.TopicWebsocketMessage, chat.EventDelivery(sessionID, chat.EventTextReceived))
	_ = p.SubmitText(ctx, sessionID, text)
}

// DispatchAudio handles a base64 audio frame from the read loop.
func (p *Processor) DispatchAudio(ctx context.Context, sessionID, encoded string) {
	slog.Info("audio received", logx.Session(sessionID), slog.Int("encoded_len", len(encoded)))
	p.bus.Publish(ctx, broker.TopicWebsocketMessage, chat.EventDelivery(sessionID, chat.EventAudioReceived))

	audio, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		p.audioError(ctx, sessionID, fmt.Errorf("decode audio: %w", err))
		return
	}
	_ = p.SubmitAudio(ctx, sessionID, audio)
}

// SubmitText publishes processing and queues routing of text.
func (p *Processor) SubmitText(ctx context.Context, sessionID, text string) error {
	p.bus.Publish(ctx, broker.TopicAgentProgress, chat.EventDelivery(sessionID, chat.EventProcessing))

	err := p.pool.Submit(ctx, func(jobCtx context.Context) {
		p.answer(jobCtx, sessionID, text)
	})
	if err != nil {
		p.rejected(ctx, sessionID, err)
	}
	return err
}

// SubmitAudio queues transcription of audio followed by routing of the
// transcript.
func (p *Processor) SubmitAudio(ctx context.Context, sessionID string, audio []byte) error {
	if p.transcriber == nil {
		err := fmt.Errorf("audio transcription is not configured")
		p.audioError(ctx, sessionID, err)
		return err
	}

	err := p.pool.Submit(ctx, func(jobCtx context.Context) {
		resp, err := p.transcriber.TranscribeBuffer(jobCtx, sessionID, audio, p.audioFormat)
		if err != nil {
			p.audioError(jobCtx, sessionID, err)
			return
		}
		slog.Info("transcription ready", logx.Session(sessionID), slog.String("preview", preview(resp.Text)))

		p.bus.Publish(jobCtx, broker.TopicAgentProgress, chat.EventDelivery(sessionID, chat.EventProcessing))
		p.answer(jobCtx, sessionID, resp.Text)
	})
	if err != nil {
		p.rejected(ctx, sessionID, err)
	}
	return err
}

// answer routes text and fans the result out as
// not_found | table_response? replying text_response?.
func (p *Processor) answer(ctx context.Context, sessionID, text string) {
	res := p.router.Route(ctx, text, sessionID)
	if ctx.Err() != nil {
		slog.Info("session gone before answer, dropping", logx.Session(sessionID))
		return
	}

	switch {
	case res.Results != nil:
		p.bus.Publish(ctx, broker.TopicAgentMessage, chat.Delivery{SessionID: sessionID, Kind: chat.KindTableResponse, Content: res.Results})
	case res.Agent == agentmodel.InfoAgent && res.HasText():
		// capability answers are text only
	default:
		p.bus.Publish(ctx, broker.TopicAgentProgress, chat.EventDelivery(sessionID, chat.EventNotFound))
		return
	}

	p.bus.Publish(ctx, broker.TopicAgentProgress, chat.EventDelivery(sessionID, chat.EventReplying))
	if res.HasText() {
		p.bus.Publish(ctx, broker.TopicAgentMessage, chat.Delivery{SessionID: sessionID, Kind: chat.KindTextResponse, Content: *res.Text})
	}
}

func (p *Processor) audioError(ctx context.Context, sessionID string, err error) {
	slog.Error("audio processing failed", logx.Session(sessionID), logx.Error(err))
	p.bus.Publish(ctx, broker.TopicAgentError, chat.Delivery{
		SessionID: sessionID,
		Kind:      chat.KindError,
		Content:   fmt.Sprintf("Error processing audio: %v", err),
	})
}

func (p *Processor) rejected(ctx context.Context, sessionID string, err error) {
	slog.Warn("query rejected", logx.Session(sessionID), logx.Error(err))
	p.bus.Publish(ctx, broker.TopicAgentError, chat.Delivery{
		SessionID: sessionID,
		Kind:      chat.KindError,
		Content:   fmt.Sprintf("Server busy, please retry: %v", err),
	})
}

func preview(s string) string {
	const max = 50
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
