package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/docs"
	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/llm"
	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/websearch"
	"github.com/anshulyadav1976/n8n-copilot/internal/config"
	"github.com/anshulyadav1976/n8n-copilot/internal/ledger"
	"github.com/anshulyadav1976/n8n-copilot/internal/policy"
	"github.com/anshulyadav1976/n8n-copilot/internal/session"
	v1 "github.com/anshulyadav1976/n8n-copilot/internal/transport/http/v1"
	"github.com/anshulyadav1976/n8n-copilot/internal/transport/ws"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting copilotd", "http_port", cfg.HTTPPort, "model", cfg.LLMModel)

	led, err := ledger.Open(cfg.LedgerDSN)
	if err != nil {
		logger.Error("failed to open ledger", "error", err)
		os.Exit(1)
	}
	defer led.Close()

	gate, err := policy.NewEngine(context.Background(), policy.ReadOnlyPolicy)
	if err != nil {
		logger.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}

	endpoint := llm.NewEndpoint(cfg.Mode, cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	retriever := docs.NewCorpusRetriever(docs.BuiltinCorpus())
	searcher := websearch.NewClient(cfg.SearchBaseURL, cfg.ReaderTimeout, 5)

	hub := ws.NewHub(logger)
	go hub.Run()

	sessions := session.NewManager(session.Config{
		MaxIterations: cfg.MaxIterations,
		TurnTimeout:   cfg.TurnTimeout,
		ToolTimeout:   cfg.ToolTimeout,
		ReaderTimeout: cfg.ReaderTimeout,
		HistoryBudget: cfg.HistoryBudget,
	}, endpoint, retriever, searcher, gate, hub, led, logger)

	h := v1.NewHandler(sessions, led)
	wsServer := ws.NewServer(hub, sessions, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h.RegisterRoutes(e)
	e.GET("/v1/sessions/:id/events", wsServer.HandleEvents)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("copilotd started", "port", cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown was not graceful", "error", err)
	}
	logger.Info("copilotd stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
