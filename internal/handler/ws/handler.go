package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-market/backend/internal/model/chat"
	"github.com/zhouzirui/z-market/backend/internal/service/session"
	"github.com/zhouzirui/z-market/backend/pkg/logx"
)

// WelcomeMessage is sent with the session id right after the upgrade.
const WelcomeMessage = "Connected to Market Assistant"

// Sessions is the session manager as seen by the websocket endpoint.
type Sessions interface {
	Connect(ctx context.Context, t session.Transport) (string, error)
	Send(id string, v any) bool
	Serve(ctx context.Context, id string, d session.Dispatcher) error
}

// Handler WebSocket连接处理器
type Handler struct {
	sessions   Sessions
	dispatcher session.Dispatcher
	upgrader   websocket.Upgrader
}

// New 创建WebSocket处理器
func New(sessions Sessions, dispatcher session.Dispatcher) *Handler {
	return &Handler{
		sessions:   sessions,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// handleWebSocket 升级连接并运行会话读循环，直到客户端断开
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", logx.Error(err))
		return
	}

	// the request context lives until this handler returns
	ctx := r.Context()

	id, err := h.sessions.Connect(ctx, conn)
	if err != nil {
		slog.Error("session registration failed", logx.Error(err))
		_ = conn.Close()
		return
	}

	h.sessions.Send(id, chat.Welcome{SessionID: id, Message: WelcomeMessage})

	if err := h.sessions.Serve(ctx, id, h.dispatcher); err != nil {
		slog.Warn("session ended with error", logx.Session(id), logx.Error(err))
	}
}
