package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/audit"
	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/cache"
	"github.com/plumelab/plume-engine/pkg/config"
	"github.com/plumelab/plume-engine/pkg/database"
	"github.com/plumelab/plume-engine/pkg/handlers"
	"github.com/plumelab/plume-engine/pkg/ingest"
	"github.com/plumelab/plume-engine/pkg/langtool"
	"github.com/plumelab/plume-engine/pkg/llm"
	"github.com/plumelab/plume-engine/pkg/logging"
	"github.com/plumelab/plume-engine/pkg/mcp"
	mcpauth "github.com/plumelab/plume-engine/pkg/mcp/auth"
	"github.com/plumelab/plume-engine/pkg/mcp/tools"
	"github.com/plumelab/plume-engine/pkg/middleware"
	"github.com/plumelab/plume-engine/pkg/repositories"
	"github.com/plumelab/plume-engine/pkg/retrieval"
	"github.com/plumelab/plume-engine/pkg/services"
	"github.com/plumelab/plume-engine/pkg/tasks"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	// .env is for local development; deployed environments set real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s",
			cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.String("chat_provider", cfg.Models.Provider),
		zap.String("languagetool", cfg.LanguageTool.BaseURL))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Migrations run over database/sql with the pgx stdlib driver; the
	// application itself uses a pgx-native pool.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, "migrations", logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	userRepo := repositories.NewUserRepository(db)
	apiKeyRepo := repositories.NewAPIKeyRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	documentRepo := repositories.NewDocumentRepository(db)
	feedbackRepo := repositories.NewFeedbackRepository(db)

	// Result cache backs onto Redis when configured. A missing or
	// unreachable Redis degrades to the in-process store.
	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, result cache runs in process", zap.Error(err))
	}
	var cacheStore cache.Store
	if redisClient != nil {
		cacheStore = cache.NewRedisStore(redisClient)
		defer func() { _ = redisClient.Close() }()
	}
	resultCache := cache.New(cacheStore, &cfg.Cache, logger)

	chatClient, err := llm.NewChatClient(&cfg.Models, logger)
	if err != nil {
		logger.Fatal("Failed to build chat client", zap.Error(err))
	}
	embedder, err := llm.NewEmbedder(ctx, &cfg.Models, logger)
	if err != nil {
		logger.Fatal("Failed to build embedder", zap.Error(err))
	}
	spanPredictor, err := llm.NewSpanPredictor(&cfg.Models, logger)
	if err != nil {
		logger.Fatal("Failed to build span predictor", zap.Error(err))
	}
	workerPool := llm.NewWorkerPool(llm.DefaultWorkerPoolConfig(), logger)

	retriever, err := retrieval.NewRetriever(cfg.Retrieval, embedder, workerPool, logger)
	if err != nil {
		logger.Fatal("Failed to open retrieval index", zap.Error(err))
	}
	if err := retriever.SeedKB(ctx); err != nil {
		logger.Warn("Knowledge base seeding failed", zap.Error(err))
	}

	queue := tasks.NewQueue(tasks.Config{
		QueueSize: cfg.Tasks.QueueSize,
		Workers:   cfg.Tasks.Workers,
		Timeout:   time.Duration(cfg.Tasks.TimeoutMinutes) * time.Minute,
	}, logger)
	queue.Start()

	ltClient := langtool.NewClient(cfg.LanguageTool, logger)
	if err := ltClient.Ping(ctx); err != nil {
		logger.Warn("LanguageTool backend unreachable, corrections degrade to passthrough",
			zap.String("base_url", cfg.LanguageTool.BaseURL), zap.Error(err))
	}

	tokenService := auth.NewTokenService(&cfg.Auth)
	var jwks auth.JWKSClientInterface
	if len(cfg.Auth.JWKSEndpoints) > 0 {
		jwksClient, err := auth.NewJWKSClient(cfg.Auth.JWKSEndpoints)
		if err != nil {
			logger.Fatal("Failed to initialize JWKS client", zap.Error(err))
		}
		jwks = jwksClient
	}
	authService := auth.NewAuthService(tokenService, jwks, userRepo, apiKeyRepo, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	cookieSettings := auth.DeriveCookieSettings(cfg.BaseURL, cfg.Auth.CookieDomain)
	auth.InitSessionStore(cfg.Auth.SecretKey, cookieSettings, cfg.Auth.TokenTTLMinutes*60)

	auditor := audit.NewSecurityAuditor(logger)

	grammarService := services.NewGrammarService(ltClient, resultCache, cfg.Limits, logger)
	qaService := services.NewQAService(spanPredictor, retriever, resultCache, cfg.Limits, logger)
	feedbackService := services.NewFeedbackService(feedbackRepo, logger)
	reformulationService := services.NewReformulationService(chatClient, feedbackService, resultCache, cfg.Limits, logger)
	suggestionService := services.NewSuggestionService(chatClient, feedbackService, resultCache, cfg.Limits, logger)
	sessionService := services.NewSessionService(sessionRepo, messageRepo, logger)
	chatService := services.NewChatService(sessionRepo, messageRepo, grammarService, qaService,
		reformulationService, chatClient, feedbackService, feedbackService, cfg.Limits, logger)
	ingestor := ingest.New(cfg.Ingest, logger)
	documentService := services.NewDocumentService(documentRepo, ingestor, retriever, grammarService,
		queue, cfg.Ingest, logger)
	userService := services.NewUserService(userRepo, tokenService, logger)
	apiKeyService := services.NewAPIKeyService(apiKeyRepo, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(userService, auditor, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewGrammarHandler(grammarService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewQAHandler(qaService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewReformulationHandler(reformulationService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewSuggestionsHandler(suggestionService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewDocumentsHandler(documentService, auditor, cfg.Ingest, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewChatHandler(sessionService, chatService, auditor, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewFeedbackHandler(feedbackService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewAPIKeysHandler(apiKeyService, logger).RegisterRoutes(mux, authMiddleware)

	mcpAuditor := mcp.NewAuditLogger(logger)
	mcpServer := mcp.NewServer("plume-engine", cfg.Version, mcpAuditor.Hooks(), logger)
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version)
	tools.RegisterGrammarTool(mcpServer.MCP(), &tools.GrammarToolDeps{Grammar: grammarService, Logger: logger})
	tools.RegisterQATool(mcpServer.MCP(), &tools.QAToolDeps{QA: qaService, Logger: logger})
	tools.RegisterReformulationTool(mcpServer.MCP(), &tools.ReformulationToolDeps{Reformulation: reformulationService, Logger: logger})
	handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux, mcpauth.NewMiddleware(authService, logger))

	// Middleware chain, outermost first: CORS wraps everything so even
	// rejected requests carry the headers browsers need; identity is
	// resolved before rate limiting so buckets key on the principal.
	rateLimiter := middleware.NewRateLimiter(cfg.Limits, auditor)
	var handler http.Handler = mux
	handler = rateLimiter.Middleware()(handler)
	handler = authMiddleware.ResolveIdentity(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.Correlation()(handler)
	handler = middleware.CORS(cfg.CORSOrigins)(handler)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting plume-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Error("Task queue shutdown failed", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
