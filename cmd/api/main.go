package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-market/backend/internal/config"
	"github.com/zhouzirui/z-market/backend/internal/handler"
	"github.com/zhouzirui/z-market/backend/internal/model/chat"
	"github.com/zhouzirui/z-market/backend/internal/service/agent"
	"github.com/zhouzirui/z-market/backend/internal/service/ai"
	"github.com/zhouzirui/z-market/backend/internal/service/broker"
	"github.com/zhouzirui/z-market/backend/internal/service/catalog"
	"github.com/zhouzirui/z-market/backend/internal/service/pipeline"
	"github.com/zhouzirui/z-market/backend/internal/service/session"
	"github.com/zhouzirui/z-market/backend/internal/service/speech"
	"github.com/zhouzirui/z-market/backend/internal/service/worker"
	"github.com/zhouzirui/z-market/backend/pkg/logx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logx.Setup("info", "console")
		slog.Error("failed to load configuration", logx.Error(err))
		os.Exit(1)
	}
	logx.Setup(cfg.Log.Level, cfg.Log.Format)
	if envErr != nil {
		slog.Debug("no .env file loaded, using system environment only", logx.Error(envErr))
	}

	// Event broker and its delivery loop
	bus := broker.New[chat.Delivery]()
	loop := broker.NewLoop()
	go loop.Run(ctx)

	sessions, err := session.NewManager(
		session.HeartbeatInterval(cfg.Session.HeartbeatInterval),
		session.ReadTimeout(cfg.Session.ReadTimeout),
		session.WriteTimeout(cfg.Session.WriteTimeout),
		session.OutboxSize(cfg.Session.OutboxSize),
	)
	if err != nil {
		slog.Error("failed to create session manager", logx.Error(err))
		os.Exit(1)
	}
	sessions.Subscribe(bus)
	if err := bus.Bind(loop); err != nil {
		slog.Error("failed to bind event broker", logx.Error(err))
		os.Exit(1)
	}

	catalogClient := catalog.New(cfg.Catalog.BaseURL, cfg.Catalog.Timeout)
	slog.Info("catalog client ready", slog.String("base_url", catalogClient.BaseURL()))

	// Initialize AI service
	var llm agent.Completer = unavailableLLM{}
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			slog.Warn("failed to initialize AI service, routing falls back to keywords", logx.Error(err))
		} else {
			llm = aiService
			slog.Info("AI service initialized", slog.String("provider", string(cfg.AI.Provider)), slog.String("model", cfg.AI.Model))
		}
	} else {
		slog.Warn("模型凭证未配置，跳过 AI 功能初始化", slog.String("provider", string(cfg.AI.Provider)))
	}

	// Initialize transcription client
	var transcriber *speech.Service
	transcriber, err = speech.NewService(cfg.Transcriber.BaseURL,
		speech.MaxRetries(cfg.Transcriber.MaxRetries),
		speech.WithHTTPClient(&http.Client{Timeout: cfg.Transcriber.Timeout}),
	)
	if err != nil {
		slog.Warn("transcription disabled", logx.Error(err))
		transcriber = nil
	}

	pool := worker.NewPool(cfg.Worker.PoolSize, cfg.Worker.QueueSize)

	router := agent.NewRouter(llm, catalogClient)
	var processor *pipeline.Processor
	if transcriber != nil {
		processor = pipeline.New(router, transcriber, pool, bus)
	} else {
		processor = pipeline.New(router, nil, pool, bus)
	}

	deps := handler.Deps{
		Sessions: sessions,
		Pipeline: processor,
		Pool:     pool,
		Logs:     catalogClient,
	}
	if transcriber != nil {
		deps.Transcriber = transcriber
	}

	startServer(ctx, cfg.Server, handler.NewRouter(deps))

	sessions.CloseAll()
	pool.Close()
	slog.Info("market assistant stopped")
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("market assistant listening", slog.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		slog.Error("server error", logx.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// hijacked websocket connections are not tracked by Shutdown
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
