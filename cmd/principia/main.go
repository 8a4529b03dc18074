package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/elacava/principia/internal/accounts"
	"github.com/elacava/principia/internal/chat"
	"github.com/elacava/principia/internal/config"
	"github.com/elacava/principia/internal/history"
	"github.com/elacava/principia/internal/httpapi"
	"github.com/elacava/principia/internal/llm"
	"github.com/elacava/principia/internal/memos"
	"github.com/elacava/principia/internal/observability"
	"github.com/elacava/principia/internal/prompt"
	"github.com/elacava/principia/internal/writeback"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	accountStore, err := accounts.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("account store init failed", "error", err)
		os.Exit(1)
	}
	defer accountStore.Close()
	accountsSvc := accounts.NewService(accountStore)

	historyStore, err := history.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("history store init failed", "error", err)
		os.Exit(1)
	}
	defer historyStore.Close()

	var gateway memos.Gateway
	if strings.TrimSpace(cfg.MemosBaseURL) == "" {
		// Keyless dev: memory search returns nothing, writes are absorbed.
		logger.Info("memory gateway: mock (MEMOS_BASE_URL not set)")
		gateway = memos.NewMockGateway()
	} else {
		gateway = memos.NewClient(memos.ClientConfig{
			BaseURL: cfg.MemosBaseURL,
			APIKey:  cfg.MemosAPIKey,
			Timeout: cfg.MemosTimeout,
			Rank: memos.RankOptions{
				TopMemories:    cfg.DigestTopMemories,
				TopPreferences: cfg.DigestTopPreferences,
				MaxFieldChars:  cfg.DigestMaxFieldChars,
			},
		}, logger, metrics)
	}

	adapter, err := llm.NewAdapter(ctx, llm.Config{
		Mode:   cfg.LLMMode,
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.LLMModel,
	})
	if err != nil {
		logger.Error("llm adapter init failed", "error", err)
		os.Exit(1)
	}

	queue := writeback.NewQueue(writeback.Config{
		QueueSize:  cfg.WritebackQueueSize,
		Workers:    cfg.WritebackWorkers,
		MaxRetries: cfg.WritebackMaxRetries,
	}, historyStore, gateway, logger, metrics)

	orchestrator := chat.NewOrchestrator(chat.Config{
		Persona:             cfg.Persona,
		GreetingFallback:    cfg.GreetingFallback,
		HistoryWindow:       cfg.HistoryWindowTurns,
		HistoryReadTimeout:  cfg.HistoryReadTimeout,
		MemorySearchTimeout: cfg.MemosTimeout,
	}, accountsSvc, historyStore, gateway, adapter, prompt.NewAssembler(cfg.MaxPromptChars), queue, logger, metrics)

	api := httpapi.New(cfg, accountsSvc, orchestrator, logger, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		_ = queue.Run(runCtx)
	}()

	go func() {
		logger.Info("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen error", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	// Let in-flight persistence drain before the workers stop.
	runCancel()
	<-queueDone

	logger.Info("shutdown complete")
}
