package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentmodel "github.com/zhouzirui/z-market/backend/internal/model/agent"
	"github.com/zhouzirui/z-market/backend/internal/model/chat"
	speechmodel "github.com/zhouzirui/z-market/backend/internal/model/speech"
	"github.com/zhouzirui/z-market/backend/internal/service/broker"
	"github.com/zhouzirui/z-market/backend/internal/service/worker"
)

type published struct {
	topic    string
	delivery chat.Delivery
}

type recordingBus struct {
	mu   sync.Mutex
	msgs []published
}

func (b *recordingBus) Publish(_ context.Context, topic string, d chat.Delivery) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, published{topic: topic, delivery: d})
}

func (b *recordingBus) snapshot() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.msgs...)
}

// stages renders deliveries as event names or kinds, in publish order.
func (b *recordingBus) stages() []string {
	var out []string
	for _, m := range b.snapshot() {
		if m.delivery.Kind == chat.KindEvent {
			out = append(out, m.delivery.Content.(string))
			continue
		}
		out = append(out, string(m.delivery.Kind))
	}
	return out
}

type routerFunc func(ctx context.Context, query, sessionID string) agentmodel.Result

func (f routerFunc) Route(ctx context.Context, query, sessionID string) agentmodel.Result {
	return f(ctx, query, sessionID)
}

type fakeTranscriber struct {
	text string
	err  error
	got  []byte
}

func (f *fakeTranscriber) TranscribeBuffer(_ context.Context, sessionID string, audio []byte, _ string) (*speechmodel.ASRResponse, error) {
	f.got = audio
	if f.err != nil {
		return nil, f.err
	}
	return &speechmodel.ASRResponse{SessionID: sessionID, Text: f.text}, nil
}

type rejectingPool struct{ err error }

func (p rejectingPool) Submit(context.Context, worker.Job) error { return p.err }

func newPool(t *testing.T) *worker.Pool {
	t.Helper()
	p := worker.NewPool(2, 8)
	t.Cleanup(p.Close)
	return p
}

func waitStages(t *testing.T, bus *recordingBus, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(bus.snapshot()) >= n }, 2*time.Second, 5*time.Millisecond)
	return bus.stages()
}

func TestSubmitTextTableAndTextResult(t *testing.T) {
	text := "Ecco la ricetta"
	router := routerFunc(func(context.Context, string, string) agentmodel.Result {
		return agentmodel.Result{
			Text:    &text,
			Results: &agentmodel.Payload{TotalCount: 1},
			Agent:   agentmodel.RecipeSearch,
		}
	})
	bus := &recordingBus{}
	p := New(router, nil, newPool(t), bus)

	require.NoError(t, p.SubmitText(context.Background(), "s1", "carbonara"))

	assert.Equal(t,
		[]string{"processing", "table_response", "replying", "text_response"},
		waitStages(t, bus, 4))

	msgs := bus.snapshot()
	assert.Equal(t, broker.TopicAgentProgress, msgs[0].topic)
	assert.Equal(t, broker.TopicAgentMessage, msgs[1].topic)
	assert.Equal(t, "Ecco la ricetta", msgs[3].delivery.Content)
	for _, m := range msgs {
		assert.Equal(t, "s1", m.delivery.SessionID)
	}
}

func TestSubmitTextTableOnly(t *testing.T) {
	router := routerFunc(func(context.Context, string, string) agentmodel.Result {
		return agentmodel.TableResult(&agentmodel.Payload{TotalCount: 2})
	})
	bus := &recordingBus{}
	p := New(router, nil, newPool(t), bus)

	require.NoError(t, p.SubmitText(context.Background(), "s1", "latte"))

	assert.Equal(t, []string{"processing", "table_response", "replying"}, waitStages(t, bus, 3))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, bus.snapshot(), 3)
}

func TestSubmitTextInfoAgentTextOnly(t *testing.T) {
	router := routerFunc(func(context.Context, string, string) agentmodel.Result {
		res := agentmodel.TextResult("Posso aiutarti a trovare prodotti")
		res.Agent = agentmodel.InfoAgent
		return res
	})
	bus := &recordingBus{}
	p := New(router, nil, newPool(t), bus)

	require.NoError(t, p.SubmitText(context.Background(), "s1", "cosa sai fare?"))

	assert.Equal(t, []string{"processing", "replying", "text_response"}, waitStages(t, bus, 3))
}

func TestSubmitTextWithoutResultsIsNotFound(t *testing.T) {
	router := routerFunc(func(context.Context, string, string) agentmodel.Result {
		res := agentmodel.TextResult("Nessun prodotto trovato")
		res.Agent = agentmodel.ProductSearch
		return res
	})
	bus := &recordingBus{}
	p := New(router, nil, newPool(t), bus)

	require.NoError(t, p.SubmitText(context.Background(), "s1", "unicorno"))

	assert.Equal(t, []string{"processing", "not_found"}, waitStages(t, bus, 2))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, bus.snapshot(), 2)
}

func TestSubmitTextRejectedByPool(t *testing.T) {
	bus := &recordingBus{}
	p := New(routerFunc(nil), nil, rejectingPool{err: worker.ErrQueueFull}, bus)

	err := p.SubmitText(context.Background(), "s1", "latte")
	assert.ErrorIs(t, err, worker.ErrQueueFull)

	msgs := bus.snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, broker.TopicAgentError, msgs[1].topic)
	assert.Equal(t, chat.KindError, msgs[1].delivery.Kind)
}

func TestDispatchTextPublishesReceivedFirst(t *testing.T) {
	router := routerFunc(func(context.Context, string, string) agentmodel.Result {
		return agentmodel.TableResult(&agentmodel.Payload{})
	})
	bus := &recordingBus{}
	p := New(router, nil, newPool(t), bus)

	p.DispatchText(context.Background(), "s1", "pasta")

	stages := waitStages(t, bus, 4)
	assert.Equal(t, []string{"text_received", "processing", "table_response", "replying"}, stages)
	assert.Equal(t, broker.TopicWebsocketMessage, bus.snapshot()[0].topic)
}

func TestDispatchAudioTranscribesThenRoutes(t *testing.T) {
	var routed string
	router := routerFunc(func(_ context.Context, query, _ string) agentmodel.Result {
		routed = query
		return agentmodel.TableResult(&agentmodel.Payload{})
	})
	tr := &fakeTranscriber{text: "dove trovo il latte"}
	bus := &recordingBus{}
	p := New(router, tr, newPool(t), bus)

	p.DispatchAudio(context.Background(), "s1", base64.StdEncoding.EncodeToString([]byte("RIFF")))

	assert.Equal(t,
		[]string{"audio_received", "processing", "table_response", "replying"},
		waitStages(t, bus, 4))
	assert.Equal(t, []byte("RIFF"), tr.got)
	assert.Equal(t, "dove trovo il latte", routed)
}

func TestDispatchAudioInvalidBase64(t *testing.T) {
	bus := &recordingBus{}
	p := New(routerFunc(nil), &fakeTranscriber{}, newPool(t), bus)

	p.DispatchAudio(context.Background(), "s1", "%%%not-base64")

	msgs := bus.snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.KindError, msgs[1].delivery.Kind)
	assert.Contains(t, msgs[1].delivery.Content, "Error processing audio:")
}

func TestSubmitAudioTranscriptionFailure(t *testing.T) {
	bus := &recordingBus{}
	tr := &fakeTranscriber{err: errors.New("whisper down")}
	p := New(routerFunc(nil), tr, newPool(t), bus)

	require.NoError(t, p.SubmitAudio(context.Background(), "s1", []byte("RIFF")))

	stages := waitStages(t, bus, 1)
	assert.Equal(t, []string{"error"}, stages)
	assert.Equal(t, "Error processing audio: whisper down", bus.snapshot()[0].delivery.Content)
}

func TestSubmitAudioWithoutTranscriber(t *testing.T) {
	bus := &recordingBus{}
	p := New(routerFunc(nil), nil, newPool(t), bus)

	assert.Error(t, p.SubmitAudio(context.Background(), "s1", []byte("RIFF")))
	assert.Equal(t, []string{"error"}, bus.stages())
}

func TestAnswerDroppedWhenSessionGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	router := routerFunc(func(context.Context, string, string) agentmodel.Result {
		cancel()
		return agentmodel.TableResult(&agentmodel.Payload{})
	})
	bus := &recordingBus{}
	p := New(router, nil, nil, bus)

	p.answer(ctx, "s1", "latte")
	assert.Empty(t, bus.snapshot())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "breve", preview("breve"))
	long := "àèìòù àèìòù àèìòù àèìòù àèìòù àèìòù àèìòù àèìòù àèìòù"
	got := preview(long)
	assert.Equal(t, 53, len([]rune(got)))
	assert.Equal(t, "...", got[len(got)-3:])
}
