// Package broker routes payloads from producers on any goroutine to topic
// subscribers that all run on one delivery loop.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alphadose/haxmap"

	"github.com/zhouzirui/z-market/backend/pkg/logx"
)

// Topics used by the gateway.
const (
	TopicAgentMessage     = "agent_message"
	TopicAgentProgress    = "agent_progress"
	TopicAgentError       = "agent_error"
	TopicWebsocketMessage = "websocket_message"
)

// ErrAlreadyBound is returned by a second call to Bind.
var ErrAlreadyBound = errors.New("broker: already bound to a delivery loop")

// Handler consumes one payload. Returned errors are logged, never propagated.
type Handler[T any] func(ctx context.Context, payload T) error

type pending[T any] struct {
	ctx     context.Context
	topic   string
	payload T
}

type subscribers[T any] struct {
	mu       sync.RWMutex
	handlers []Handler[T]
}

func (s *subscribers[T]) add(h Handler[T]) {
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

func (s *subscribers[T]) list() []Handler[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Handler[T](nil), s.handlers...)
}

// Broker is a topic-based publish/subscribe hub. Publish never blocks; before
// Bind payloads are buffered and replayed in publish order.
type Broker[T any] struct {
	topics *haxmap.Map[string, *subscribers[T]]

	mu      sync.Mutex
	loop    *Loop
	backlog []pending[T]
}

// New creates an unbound broker.
func New[T any]() *Broker[T] {
	return &Broker[T]{
		topics: haxmap.New[string, *subscribers[T]](),
	}
}

// Subscribe registers h for topic. Handlers of a topic run in subscription order.
func (b *Broker[T]) Subscribe(topic string, h Handler[T]) {
	subs, _ := b.topics.GetOrCompute(topic, func() *subscribers[T] {
		return &subscribers[T]{}
	})
	subs.add(h)
	slog.Debug("broker subscription added", slog.String("topic", topic))
}

// Bind attaches the delivery loop and flushes the backlog onto it.
func (b *Broker[T]) Bind(loop *Loop) error {
	if loop == nil {
		return fmt.Errorf("broker: nil loop")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loop != nil {
		return ErrAlreadyBound
	}
	b.loop = loop

	if n := len(b.backlog); n > 0 {
		slog.Info("broker replaying buffered events", slog.Int("count", n))
	}
	for _, p := range b.backlog {
		b.dispatch(p.ctx, p.topic, p.payload)
	}
	b.backlog = nil
	return nil
}

// Bound reports whether Bind has succeeded.
func (b *Broker[T]) Bound() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loop != nil
}

// Publish hands payload to every subscriber of topic. It is safe from any
// goroutine and returns immediately.
func (b *Broker[T]) Publish(ctx context.Context, topic string, payload T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loop == nil {
		b.backlog = append(b.backlog, pending[T]{ctx: context.WithoutCancel(ctx), topic: topic, payload: payload})
		return
	}
	b.dispatch(ctx, topic, payload)
}

// dispatch must be called with b.mu held so that ordering across Publish
// calls matches the order tasks land on the loop.
func (b *Broker[T]) dispatch(ctx context.Context, topic string, payload T) {
	subs, ok := b.topics.Get(topic)
	if !ok {
		slog.Warn("broker publish without subscribers", slog.String("topic", topic))
		return
	}

	handlers := subs.list()
	if len(handlers) == 0 {
		slog.Warn("broker publish without subscribers", slog.String("topic", topic))
		return
	}

	for i, h := range handlers {
		h, index := h, i
		if !b.loop.Post(func() { invoke(ctx, topic, index, h, payload) }) {
			slog.Warn("broker loop stopped, dropping event", slog.String("topic", topic))
			return
		}
	}
}

func invoke[T any](ctx context.Context, topic string, index int, h Handler[T], payload T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("broker handler panicked",
				slog.String("topic", topic),
				slog.Int("handler", index),
				slog.Any("panic", r),
			)
		}
	}()

	if err := h(ctx, payload); err != nil {
		slog.Error("broker handler failed",
			slog.String("topic", topic),
			slog.Int("handler", index),
			logx.Error(err),
		)
	}
}
