package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-market/backend/internal/handler/dashboard"
	"github.com/zhouzirui/z-market/backend/internal/handler/query"
	"github.com/zhouzirui/z-market/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/z-market/backend/internal/middleware"
	speechmodel "github.com/zhouzirui/z-market/backend/internal/model/speech"
	"github.com/zhouzirui/z-market/backend/internal/service/pipeline"
	"github.com/zhouzirui/z-market/backend/internal/service/session"
	"github.com/zhouzirui/z-market/backend/internal/service/worker"
	"github.com/zhouzirui/z-market/backend/pkg/logx"
	"github.com/zhouzirui/z-market/backend/pkg/utils"
)

const banner = "Market Assistant API. Connect to /ws for WebSocket communication."

// HealthChecker reports the state of an upstream collaborator.
type HealthChecker interface {
	Health(ctx context.Context) (*speechmodel.ServiceHealth, error)
}

// Deps 路由依赖的核心服务
type Deps struct {
	Sessions    *session.Manager
	Pipeline    *pipeline.Processor
	Pool        *worker.Pool
	Logs        dashboard.LogSource
	Transcriber HealthChecker // optional
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	ws.New(deps.Sessions, deps.Pipeline).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		query.New(deps.Sessions, deps.Pipeline).RegisterRoutes(api)
	})

	if deps.Logs != nil {
		r.Route("/dashboard", func(d chi.Router) {
			dashboard.New(deps.Logs).RegisterRoutes(d)
		})
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"message": banner})
	})
	r.Get("/health", healthHandler(deps))

	return r
}

type healthReport struct {
	Status      string         `json:"status"`
	Sessions    int            `json:"sessions"`
	Workers     *worker.Health `json:"workers,omitempty"`
	Transcriber string         `json:"transcriber,omitempty"`
}

func healthHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{Status: "ok", Sessions: deps.Sessions.Count()}

		if deps.Pool != nil {
			h := deps.Pool.Health()
			report.Workers = &h
		}

		if deps.Transcriber != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()

			th, err := deps.Transcriber.Health(ctx)
			switch {
			case err != nil:
				slog.Warn("transcriber health check failed", logx.Error(err))
				report.Status = "degraded"
				report.Transcriber = "unreachable"
			default:
				report.Transcriber = th.Status
			}
		}

		utils.RespondJSON(w, http.StatusOK, report)
	}
}
