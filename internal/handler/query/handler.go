// Package query serves the REST fallback for clients that already hold a
// websocket session but cannot send frames on it.
package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-market/backend/internal/service/worker"
	"github.com/zhouzirui/z-market/backend/pkg/logx"
	"github.com/zhouzirui/z-market/backend/pkg/utils"
)

const (
	// maxAudioBytes caps a multipart audio upload.
	maxAudioBytes = 25 << 20

	errSessionRequired = "Valid session_id required. Connect via WebSocket first."
)

// Sessions resolves a session id to its lifetime context.
type Sessions interface {
	Context(id string) (context.Context, bool)
}

// Submitter queues queries for a session.
type Submitter interface {
	SubmitText(ctx context.Context, sessionID, text string) error
	SubmitAudio(ctx context.Context, sessionID string, audio []byte) error
}

// Handler REST查询处理器
type Handler struct {
	sessions Sessions
	queries  Submitter
}

// New 创建查询处理器
func New(sessions Sessions, queries Submitter) *Handler {
	return &Handler{sessions: sessions, queries: queries}
}

// RegisterRoutes 注册查询路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/text", h.handleText)
	r.Post("/audio", h.handleAudio)
}

type accepted struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

func (h *Handler) handleText(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		utils.RespondError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	text := r.FormValue("text")
	if text == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	id, ctx, ok := h.session(r)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, errSessionRequired)
		return
	}

	slog.Info("text received via rest", logx.Session(id), slog.Int("len", len(text)))
	h.respond(w, id, h.queries.SubmitText(ctx, id, text))
}

func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "multipart form with an audio file is required")
		return
	}

	id, ctx, ok := h.session(r)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, errSessionRequired)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}

	slog.Info("audio received via rest", logx.Session(id), slog.String("filename", header.Filename), slog.Int("bytes", len(audio)))
	h.respond(w, id, h.queries.SubmitAudio(ctx, id, audio))
}

// session accepts both session_id and the older client_id field. The
// returned context belongs to the websocket session, not the request.
func (h *Handler) session(r *http.Request) (string, context.Context, bool) {
	id := r.FormValue("session_id")
	if id == "" {
		id = r.FormValue("client_id")
	}
	if id == "" {
		return "", nil, false
	}
	ctx, ok := h.sessions.Context(id)
	return id, ctx, ok
}

func (h *Handler) respond(w http.ResponseWriter, id string, err error) {
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, accepted{Status: "processing", SessionID: id})
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrPoolClosed):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
