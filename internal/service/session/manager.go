// Package session owns live client connections: identity, liveness probing,
// the inbound read loop and the serialized outbound path.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/fogfish/opts"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-market/backend/internal/model/chat"
	"github.com/zhouzirui/z-market/backend/internal/service/broker"
	"github.com/zhouzirui/z-market/backend/pkg/logx"
)

// ErrUnknownSession is returned by Serve for an id that is not registered.
var ErrUnknownSession = errors.New("session: unknown session")

// Transport is the subset of *websocket.Conn the manager uses.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dispatcher receives client queries. Calls happen on the session's read
// loop and must not block on query processing.
type Dispatcher interface {
	DispatchText(ctx context.Context, sessionID, text string)
	DispatchAudio(ctx context.Context, sessionID, encoded string)
}

// Option configures a Manager.
type Option = opts.Option[Manager]

var (
	// HeartbeatInterval sets how often a heartbeat frame is written.
	HeartbeatInterval = opts.ForName[Manager, time.Duration]("heartbeat")
	// ReadTimeout sets how long the read loop waits before probing the client.
	ReadTimeout = opts.ForName[Manager, time.Duration]("readTimeout")
	// WriteTimeout bounds each transport write.
	WriteTimeout = opts.ForName[Manager, time.Duration]("writeTimeout")
	// OutboxSize sets the number of frames buffered per session.
	OutboxSize = opts.ForName[Manager, int]("outboxSize")
)

// Manager 会话管理器，负责连接注册、心跳与消息投递。
type Manager struct {
	heartbeat    time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	outboxSize   int

	sessions *haxmap.Map[string, *session]
}

// NewManager 创建会话管理器。
func NewManager(options ...Option) (*Manager, error) {
	m := &Manager{
		heartbeat:    30 * time.Second,
		readTimeout:  120 * time.Second,
		writeTimeout: 10 * time.Second,
		outboxSize:   64,
		sessions:     haxmap.New[string, *session](),
	}
	if err := opts.Apply(m, options); err != nil {
		return nil, fmt.Errorf("session: apply options: %w", err)
	}

	if m.heartbeat <= 0 || m.readTimeout <= 0 || m.writeTimeout <= 0 {
		return nil, fmt.Errorf("session: intervals must be positive")
	}
	if m.outboxSize < 1 {
		return nil, fmt.Errorf("session: outbox size must be at least 1")
	}
	return m, nil
}

type frame struct {
	messageType int
	data        []byte
}

type session struct {
	id        string
	transport Transport
	createdAt time.Time
	lastSeen  atomic.Int64

	outbox chan frame
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (s *session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *session) snapshot() chat.Session {
	return chat.Session{
		ID:           s.id,
		CreatedAt:    s.createdAt,
		LastActivity: time.Unix(0, s.lastSeen.Load()),
	}
}

// enqueue never blocks; false means the frame was dropped.
func (s *session) enqueue(f frame) bool {
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.outbox <- f:
		return true
	default:
		slog.Warn("session outbox full, dropping frame", logx.Session(s.id), slog.Int("size", cap(s.outbox)))
		return false
	}
}

// Connect 注册新连接并启动心跳与写协程，返回会话ID。
func (m *Manager) Connect(ctx context.Context, t Transport) (string, error) {
	if t == nil {
		return "", fmt.Errorf("session: nil transport")
	}

	sctx, cancel := context.WithCancel(ctx)
	now := time.Now()
	s := &session{
		id:        uuid.NewString(),
		transport: t,
		createdAt: now,
		outbox:    make(chan frame, m.outboxSize),
		ctx:       sctx,
		cancel:    cancel,
	}
	s.touch()

	m.sessions.Set(s.id, s)

	go m.writeLoop(s)
	go m.heartbeatLoop(s)

	slog.Info("session connected", logx.Session(s.id), slog.Int("active", m.Count()))
	return s.id, nil
}

// Disconnect 移除会话并关闭底层连接，重复调用无副作用。
func (m *Manager) Disconnect(id string) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return
	}
	m.sessions.Del(id)
	m.close(s)
}

func (m *Manager) close(s *session) {
	s.once.Do(func() {
		s.cancel()
		if err := s.transport.Close(); err != nil {
			slog.Debug("session transport close", logx.Session(s.id), logx.Error(err))
		}
		slog.Info("session disconnected", logx.Session(s.id), slog.Int("active", m.Count()))
	})
}

// CloseAll disconnects every session, used on shutdown.
func (m *Manager) CloseAll() {
	var ids []string
	m.sessions.ForEach(func(id string, _ *session) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		m.Disconnect(id)
	}
}

// Exists reports whether id names a live session.
func (m *Manager) Exists(id string) bool {
	if id == "" {
		return false
	}
	_, ok := m.sessions.Get(id)
	return ok
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return int(m.sessions.Len())
}

// Snapshot returns timing information about a live session.
func (m *Manager) Snapshot(id string) (chat.Session, bool) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return chat.Session{}, false
	}
	return s.snapshot(), true
}

// Context returns the session's lifetime context. It is cancelled on disconnect.
func (m *Manager) Context(id string) (context.Context, bool) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}
	return s.ctx, true
}

// Deliver 将消息投递给目标会话。未知会话仅记录日志并丢弃。
func (m *Manager) Deliver(_ context.Context, d chat.Delivery) error {
	s, ok := m.sessions.Get(d.SessionID)
	if !ok {
		slog.Warn("delivery for unknown session dropped", logx.Session(d.SessionID), slog.String("kind", string(d.Kind)))
		return nil
	}

	f, err := encodeDelivery(d)
	if err != nil {
		return fmt.Errorf("encode %s delivery: %w", d.Kind, err)
	}
	s.enqueue(f)
	return nil
}

// Subscribe routes every gateway topic of b to Deliver.
func (m *Manager) Subscribe(b *broker.Broker[chat.Delivery]) {
	for _, topic := range []string{
		broker.TopicAgentMessage,
		broker.TopicAgentProgress,
		broker.TopicAgentError,
		broker.TopicWebsocketMessage,
	} {
		b.Subscribe(topic, m.Deliver)
	}
}

func encodeDelivery(d chat.Delivery) (frame, error) {
	if d.Kind == chat.KindDirect {
		switch v := d.Content.(type) {
		case string:
			return frame{messageType: websocket.TextMessage, data: []byte(v)}, nil
		case []byte:
			return frame{messageType: websocket.TextMessage, data: v}, nil
		default:
			return frame{messageType: websocket.TextMessage, data: []byte(fmt.Sprint(v))}, nil
		}
	}

	data, err := json.Marshal(chat.Outbound{
		Type:      string(d.Kind),
		Content:   d.Content,
		SessionID: d.SessionID,
	})
	if err != nil {
		return frame{}, err
	}
	return frame{messageType: websocket.TextMessage, data: data}, nil
}

func encodeFrame(v any) frame {
	data, err := json.Marshal(v)
	if err != nil {
		// only fixed local types reach here
		panic(fmt.Sprintf("session: marshal frame: %v", err))
	}
	return frame{messageType: websocket.TextMessage, data: data}
}

// Send queues a JSON frame for id outside of the broker, used for the welcome
// frame. It reports whether the frame was queued.
func (m *Manager) Send(id string, v any) bool {
	s, ok := m.sessions.Get(id)
	if !ok {
		return false
	}
	return s.enqueue(encodeFrame(v))
}

// writeLoop is the only goroutine that writes to the transport.
func (m *Manager) writeLoop(s *session) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case f := <-s.outbox:
			if err := s.transport.SetWriteDeadline(time.Now().Add(m.writeTimeout)); err != nil {
				slog.Warn("session set write deadline", logx.Session(s.id), logx.Error(err))
			}
			if err := s.transport.WriteMessage(f.messageType, f.data); err != nil {
				slog.Warn("session write failed", logx.Session(s.id), logx.Error(err))
				m.Disconnect(s.id)
				return
			}
		}
	}
}

// heartbeatLoop 定期发送心跳帧。
func (m *Manager) heartbeatLoop(s *session) {
	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	beat := encodeFrame(chat.Outbound{Type: chat.FrameHeartbeat, SessionID: s.id})
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.enqueue(beat)
		}
	}
}
