package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Chative-order-agent/server/internal/agent/graph"
	"github.com/Chative-order-agent/server/internal/agent/model"
	"github.com/Chative-order-agent/server/internal/agent/repo"
	"github.com/Chative-order-agent/server/internal/api"
	"github.com/Chative-order-agent/server/internal/core"
	"github.com/Chative-order-agent/server/internal/menu"
	logx "github.com/Chative-order-agent/server/pkg/logger"
	pkgredis "github.com/Chative-order-agent/server/pkg/redis"
)

const (
	shutdownGraceTimeout = 15 * time.Second
	sweepInterval        = time.Minute
)

// AppConfig defines all configurable parameters of the ordering service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis    pkgredis.Config
	Sessions model.SessionStoreConfig

	// HTTP
	Addr         string   `envconfig:"HTTP_ADDR" default:":3000"`
	APIKeys      []string `envconfig:"API_KEYS"`
	AllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS"`

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	MenuFile     string `envconfig:"MENU_FILE" default:"static/menu.json"`
	Planner      model.PlannerModelConfig
	Prompt       model.PromptConfig
	Conversation model.ConversationConfig
}

func main() {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		logx.Warn().Err(err).Msg("Could not load .env file")
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}

	env := core.ParseEnvironment(envCfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env, Level: envCfg.LogLevel})
	gin.SetMode(env.GinMode())

	timings, err := envCfg.Conversation.Timings()
	if err != nil {
		logx.Fatal().Err(err).Msg("Invalid conversation config")
	}

	catalog, err := menu.Load(envCfg.MenuFile)
	if err != nil {
		logx.Fatal().Err(err).Str("menu_file", envCfg.MenuFile).Msg("Failed to load menu")
	}
	logx.Info().Int("items", catalog.Len()).Str("menu_file", envCfg.MenuFile).Msg("Menu loaded")
	logx.Debug().Strs("names", catalog.Names()).Msg("Menu items")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, locker, closeStore := openSessionStore(ctx, envCfg, timings)
	defer closeStore()

	runner, err := graph.BuildOrderingGraph(ctx, graph.Config{
		APIKey:       envCfg.APIKey,
		BaseURL:      envCfg.BaseURL,
		Planner:      envCfg.Planner,
		Prompt:       envCfg.Prompt,
		Conversation: envCfg.Conversation,
		TurnTimeout:  timings.TurnTimeout,
		Catalog:      catalog,
		Sessions:     sessions,
		Locker:       locker,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build graph")
	}

	srv := &http.Server{
		Addr: envCfg.Addr,
		Handler: api.NewRouter(api.RouterConfig{
			Runner:       runner,
			APIKeys:      envCfg.APIKeys,
			AllowOrigins: envCfg.AllowOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", envCfg.Addr).Str("environment", env.String()).Msg("Ordering API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logx.Info().Msg("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGraceTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Error().Err(err).Msg("Graceful shutdown failed")
		}
	case err := <-errCh:
		if err != nil {
			logx.Error().Err(err).Msg("HTTP server failed")
		}
	}
}

// openSessionStore picks the session backend. Redis is shared across
// instances; bolt is for a single instance and uses an in-process lock.
func openSessionStore(ctx context.Context, cfg AppConfig, timings model.ConversationTimings) (model.SessionRepository, model.ConversationLocker, func()) {
	switch strings.ToLower(cfg.Sessions.Backend) {
	case "bolt":
		store, err := repo.OpenBoltSessionRepository(cfg.Sessions.BoltPath, timings.TTL)
		if err != nil {
			logx.Fatal().Err(err).Str("path", cfg.Sessions.BoltPath).Msg("Failed to open bolt session store")
		}
		go store.RunSweeper(ctx, sweepInterval)
		logx.Info().Str("path", cfg.Sessions.BoltPath).Msg("Using bolt session store")
		return store, repo.NewLocalLocker(timings.LockWait), func() { _ = store.Close() }

	case "redis", "":
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
		}
		logx.Info().Msg("Connected to Redis successfully")
		return repo.NewRedisSessionRepository(rdb, timings.TTL),
			repo.NewRedisLocker(rdb, timings.LockTTL, timings.LockWait),
			func() { _ = rdb.Close() }

	default:
		logx.Fatal().Str("backend", cfg.Sessions.Backend).Msg("Unknown SESSION_BACKEND, use redis or bolt")
		return nil, nil, nil
	}
}
