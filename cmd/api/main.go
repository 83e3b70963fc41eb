// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/colloquy/internal/config"
	"github.com/capitalize-ai/colloquy/internal/engine"
	"github.com/capitalize-ai/colloquy/internal/handler"
	"github.com/capitalize-ai/colloquy/internal/llm"
	"github.com/capitalize-ai/colloquy/internal/middleware"
	natsclient "github.com/capitalize-ai/colloquy/internal/nats"
	"github.com/capitalize-ai/colloquy/internal/service"
	"github.com/capitalize-ai/colloquy/internal/store"
	"github.com/capitalize-ai/colloquy/pkg/logger"
	"github.com/capitalize-ai/colloquy/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server", zap.String("env", cfg.Environment))

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, cfg.TracingServiceName, cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open the conversation store
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer st.Close(context.Background())
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))

	// Connect to NATS when the frame journal is enabled. The interfaces stay
	// nil otherwise so handlers and services can tell it is off.
	var (
		journal     service.FrameJournal
		journalConn handler.ConnChecker
	)
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		j := natsclient.NewJournal(natsClient, cfg.JournalMaxAge)
		if err := j.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure frame stream", zap.Error(err))
		}
		journal = j
		journalConn = natsClient
	} else {
		log.Info("NATS_URL not set, frame journal disabled")
	}

	// Agent roster served to clients
	roster := config.DefaultRoster()
	if cfg.AgentsFile != "" {
		roster, err = config.LoadRoster(cfg.AgentsFile)
		if err != nil {
			log.Fatal("failed to load agent roster", zap.String("path", cfg.AgentsFile), zap.Error(err))
		}
	}
	log.Info("agent roster loaded", zap.Int("agents", len(roster.Agents)))

	// Initialize services
	gateways := service.NewGatewayFactory(llm.Options{
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
	})
	chatSvc := service.NewChatService(gateways, service.ChatConfig{
		Engine: engine.Config{
			ExecutorModel:      cfg.ExecutorModel,
			MaxOutputTokens:    cfg.MaxOutputTokens,
			Temperature:        cfg.Temperature,
			ReasoningMaxTokens: cfg.ReasoningMaxTokens,
			StepDelay:          cfg.StepDelay,
			TruncationBudget:   cfg.TruncationBudget,
		},
		Timeout: cfg.OrchestrationTimeout,
	}, journal, log)
	conversationSvc := service.NewConversationService(st, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(st, journalConn)
	chatHandler := handler.NewChatHandler(chatSvc, log)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(conversationSvc, log)
	shareHandler := handler.NewShareHandler(conversationSvc, log)
	agentHandler := handler.NewAgentHandler(roster.Agents)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Chat
		r.Post("/chat", chatHandler.Chat)
		r.Get("/chat/threads/{parentMessageId}/frames", chatHandler.Replay)

		// Agents
		r.Get("/agents", agentHandler.List)

		// Conversations
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Put("/", conversationHandler.Update)
				r.Delete("/", conversationHandler.Delete)
				r.Get("/messages", messageHandler.List)
			})
		})

		// Shared content
		r.Post("/share", shareHandler.Create)
		r.Get("/share/{id}", shareHandler.Get)
	})

	// Create HTTP server. The write timeout must outlast a full review run.
	writeTimeout := cfg.ServerWriteTimeout
	if floor := cfg.OrchestrationTimeout + 5*time.Second; writeTimeout < floor {
		writeTimeout = floor
	}
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	if cfg.Environment == "development" {
		return logger.NewDevelopment()
	}
	return logger.New(cfg.LogLevel)
}

// openStore selects the conversation store backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	case config.StoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return store.NewMongoStore(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	case config.StoreSQLite:
		return store.OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
