package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-market/backend/internal/model/chat"
	"github.com/zhouzirui/z-market/backend/pkg/logx"
)

// Serve runs the read loop for id until the transport closes, ctx is done
// or the session is disconnected. The session is always disconnected on return.
func (m *Manager) Serve(ctx context.Context, id string, d Dispatcher) error {
	s, ok := m.sessions.Get(id)
	if !ok {
		return ErrUnknownSession
	}
	defer m.Disconnect(id)

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go m.readLoop(s, frames, readErr)

	idle := time.NewTimer(m.readTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.ctx.Done():
			return nil
		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.Warn("session read failed", logx.Session(id), logx.Error(err))
			} else {
				slog.Debug("session closed by client", logx.Session(id), logx.Error(err))
			}
			return nil
		case data := <-frames:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(m.readTimeout)
			s.touch()
			m.handleFrame(s, data, d)
		case <-idle.C:
			slog.Debug("session idle, probing client", logx.Session(id))
			if !s.enqueue(encodeFrame(chat.Outbound{Type: chat.FrameConnectionCheck, SessionID: id})) {
				slog.Info("session probe failed, disconnecting", logx.Session(id))
				return nil
			}
			idle.Reset(m.readTimeout)
		}
	}
}

// readLoop blocks on the transport so the select in Serve can time out
// without a read deadline, which would poison the connection.
func (m *Manager) readLoop(s *session, frames chan<- []byte, readErr chan<- error) {
	for {
		mt, data, err := s.transport.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		select {
		case frames <- data:
		case <-s.ctx.Done():
			return
		}
	}
}

func (m *Manager) handleFrame(s *session, data []byte, d Dispatcher) {
	var msg chat.Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("session received malformed frame", logx.Session(s.id), logx.Error(err))
		s.enqueue(encodeFrame(chat.Outbound{Type: string(chat.KindError), Content: chat.ErrInvalidJSON, SessionID: s.id}))
		return
	}

	switch msg.Kind() {
	case chat.InboundPing:
		s.enqueue(encodeFrame(chat.Outbound{Type: chat.FramePong, SessionID: s.id}))
	case chat.InboundHeartbeat:
		s.enqueue(encodeFrame(chat.Outbound{Type: chat.FrameHeartbeatAck, SessionID: s.id}))
	case chat.InboundText:
		d.DispatchText(s.ctx, s.id, msg.Content)
	case chat.InboundAudio:
		d.DispatchAudio(s.ctx, s.id, msg.Content)
	default:
		slog.Debug("session received unknown frame type", logx.Session(s.id), slog.String("type", msg.Type))
		s.enqueue(encodeFrame(chat.Outbound{Type: string(chat.KindError), Content: chat.ErrUnknownTypePrefix + msg.Type, SessionID: s.id}))
	}
}
