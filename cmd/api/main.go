// Package main is the entry point for the sync server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-sync/internal/config"
	"github.com/capitalize-ai/chat-sync/internal/handler"
	"github.com/capitalize-ai/chat-sync/internal/llm"
	natsclient "github.com/capitalize-ai/chat-sync/internal/nats"
	"github.com/capitalize-ai/chat-sync/internal/realtime"
	"github.com/capitalize-ai/chat-sync/internal/service"
	"github.com/capitalize-ai/chat-sync/internal/store"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
	"github.com/capitalize-ai/chat-sync/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting sync server", zap.String("store", cfg.StoreBackend))

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-sync", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open storage
	backend, err := store.Open(cfg)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer backend.Close()

	documents := store.NewDocumentStore(backend)
	files, err := store.NewFileStore(backend, cfg.DataDir)
	if err != nil {
		log.Fatal("failed to open file store", zap.Error(err))
	}

	registry := realtime.NewRegistry(log)

	// The change feed is optional. A nil publisher disables it.
	var (
		publisher  service.EventPublisher
		natsClient *natsclient.Client
	)
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(ctx, natsclient.ConfigFrom(cfg), log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		publisher = streamManager
	}

	// Initialize LLM clients
	var clients []llm.Client
	if cfg.AnthropicAPIKey != "" {
		c, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			log.Warn("failed to create Anthropic client", zap.Error(err))
		} else {
			clients = append(clients, c)
		}
	}
	if cfg.OpenAIAPIKey != "" {
		c, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Warn("failed to create OpenAI client", zap.Error(err))
		} else {
			clients = append(clients, c)
		}
	}
	router := llm.NewRouter(llm.Provider(cfg.DefaultLLM), clients...)
	if router.Len() == 0 {
		log.Warn("no LLM provider configured, chat disabled")
	}

	// Initialize services
	syncSvc := service.NewSyncService(documents, registry, publisher, log)
	fileSvc := service.NewFileService(files, registry, cfg.MaxUploadBytes, log)
	chatSvc := service.NewChatService(syncSvc, router, log)

	// Initialize handlers
	h := handlers{
		health:        handler.NewHealthHandler(documents, natsClient),
		sync:          handler.NewSyncHandler(syncSvc, log),
		stream:        handler.NewStreamHandler(registry, cfg.KeepAliveInterval, cfg.SinkBuffer, log),
		conversations: handler.NewConversationHandler(syncSvc, log),
		files:         handler.NewFileHandler(fileSvc, cfg.MaxUploadBytes, log),
		chat:          handler.NewChatHandler(chatSvc, log),
	}

	// Streams clear their own write deadline, so WriteTimeout only bounds
	// ordinary requests.
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      newRouter(cfg, h, log),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Open streams never go idle on their own.
	server.RegisterOnShutdown(func() {
		log.Info("closing live streams", zap.Int("users", registry.Users()))
		h.stream.Shutdown()
	})
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
