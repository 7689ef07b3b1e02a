package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-market/backend/pkg/logx"
	"github.com/zhouzirui/z-market/backend/pkg/utils"
)

const defaultLogLimit = 1000

// LogSource is the catalog side holding the search logs.
type LogSource interface {
	Logs(ctx context.Context, limit int) ([]byte, error)
	LogStats(ctx context.Context) ([]byte, error)
}

// Handler 日志看板代理
type Handler struct {
	logs LogSource
}

// New 创建看板处理器
func New(logs LogSource) *Handler {
	return &Handler{logs: logs}
}

// RegisterRoutes 注册看板路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/logs/", h.handleLogs)
	r.Get("/logs/stats", h.handleStats)
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	body, err := h.logs.Logs(r.Context(), limit)
	if err != nil {
		slog.Error("fetching logs failed", logx.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to fetch logs: %v", err))
		return
	}
	utils.RespondRaw(w, http.StatusOK, body)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	body, err := h.logs.LogStats(r.Context())
	if err != nil {
		slog.Error("fetching log stats failed", logx.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to fetch log statistics: %v", err))
		return
	}
	utils.RespondRaw(w, http.StatusOK, body)
}
