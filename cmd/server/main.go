// Taskforge - interview take-home assignment generator server
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
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/ashureev/taskforge/internal/agent"
	"github.com/ashureev/taskforge/internal/api"
	"github.com/ashureev/taskforge/internal/assignment"
	"github.com/ashureev/taskforge/internal/config"
	"github.com/ashureev/taskforge/internal/identity"
	"github.com/ashureev/taskforge/internal/issues"
	"github.com/ashureev/taskforge/internal/managerprompt"
	"github.com/ashureev/taskforge/internal/middleware"
	"github.com/ashureev/taskforge/internal/oracle"
	"github.com/ashureev/taskforge/internal/repo"
	"github.com/ashureev/taskforge/internal/store"
	"github.com/ashureev/taskforge/internal/template"
	"github.com/ashureev/taskforge/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "addr", cfg.Addr(), "dev", cfg.IsDevelopment(), "store", cfg.Session.Store)

	st, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()

	if err := st.Ping(context.Background()); err != nil {
		slog.Error("Session store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Session store connected")

	client, err := oracle.NewOpenAIClient(cfg.Oracle, &http.Client{Timeout: cfg.Oracle.Timeout})
	if err != nil {
		slog.Error("Failed to initialize oracle client", "error", err)
		os.Exit(1)
	}
	slog.Info("Oracle client initialized", "provider", cfg.Oracle.Provider)

	searcher, err := newSearcher(cfg)
	if err != nil {
		slog.Error("Failed to initialize issue search", "error", err)
		os.Exit(1)
	}

	conversationLogger, err := agent.NewConversationLogger(afero.NewOsFs(), cfg.ConversationLog, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}

	svc, err := agent.NewService(agent.Deps{
		Store:       st,
		Prompts:     managerprompt.NewGenerator(client, cfg.Oracle.ManagerPromptDeployment),
		Issues:      issues.NewPipeline(issues.NewExtractor(client, cfg.Oracle.TopicsDeployment), searcher, cfg.Jira.Concurrency),
		Templates:   newTemplateProvider(cfg),
		Assignments: assignment.NewGenerator(client, cfg.Oracle.AssignmentDeployment),
		MaxRounds:   cfg.Session.MaxRounds,
		Log:         conversationLogger,
	})
	if err != nil {
		slog.Error("Failed to initialize agent service", "error", err)
		os.Exit(1)
	}

	agentHandler := agent.NewHandler(svc, agent.HandlerConfig{
		RateLimitRequests:  cfg.RateLimit.Requests,
		RateLimitWindow:    cfg.RateLimit.Window,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
	})
	defer agentHandler.Close()

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(identity.Middleware())

	api.NewHealthHandler(st).RegisterHealth(r)
	agentHandler.RegisterRoutes(r)

	r.Handle("/*", web.SPAHandler())

	// WriteTimeout stays 0: workflow requests wait on several oracle calls
	// and websocket connections are long lived.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeperDone := store.StartSweeper(ctx, st, cfg.Session.TTL, cfg.Session.SweepInterval, agentHandler.SessionExpired)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	<-sweeperDone

	slog.Info("Server stopped successfully")
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Session.Store == config.StoreSQLite {
		return store.NewSQLite(cfg.Session.DBPath)
	}
	return store.NewMemory(), nil
}

func newSearcher(cfg *config.Config) (issues.Searcher, error) {
	if !cfg.SearchEnabled() {
		slog.Info("Issue search disabled (JIRA_EMAIL or JIRA_API_TOKEN not set)")
		return issues.NoopSearcher{}, nil
	}
	searcher, err := issues.NewJiraSearcher(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken, cfg.Jira.MaxResults)
	if err != nil {
		return nil, err
	}
	slog.Info("Issue search enabled", "base_url", cfg.Jira.BaseURL)
	return searcher, nil
}

func newTemplateProvider(cfg *config.Config) template.Provider {
	tc := cfg.Template
	switch {
	case tc.Path != "":
		slog.Info("Template repository description from file", "path", tc.Path)
		return template.NewFileProvider(afero.NewOsFs(), tc.Path)
	case tc.URL != "":
		slog.Info("Template repository from clone", "url", tc.URL, "branch", tc.Branch)
		fs := afero.NewOsFs()
		return template.NewRepoProvider(repo.NewCloner(fs, tc.CloneBaseDir), repo.NewInspector(fs), tc.URL, tc.Branch, "", tc.Query)
	default:
		return template.Default()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
