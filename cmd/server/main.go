package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/claims/internal/config"
	"github.com/liamcoop/claims/internal/logger"
	"github.com/liamcoop/claims/internal/metrics"
	"github.com/liamcoop/claims/payerengine"
	"github.com/liamcoop/claims/pipeline"
	"github.com/liamcoop/claims/routing"
	"github.com/liamcoop/claims/rules"
	"github.com/liamcoop/claims/validation"

	_ "github.com/lib/pq"
)

type Server struct {
	config *config.Config
	db     *sql.DB
	redis  redis.UniversalClient
	payers *payerengine.Manager
	router *chi.Mux

	pipelineOpts []pipeline.Option
}

// NewServer wires the HTTP API over an already loaded payer manager.
// db and rdb are optional and only used for health checks.
func NewServer(cfg *config.Config, payers *payerengine.Manager, db *sql.DB, rdb redis.UniversalClient) *Server {
	s := &Server{
		config: cfg,
		db:     db,
		redis:  rdb,
		payers: payers,
		router: chi.NewRouter(),
		pipelineOpts: []pipeline.Option{
			pipeline.WithRouter(routing.Config{AutoSubmitThreshold: cfg.Routing.AutoSubmitThreshold}),
			pipeline.WithDocumentConfig(validation.DocumentConfig{HighDollarThreshold: cfg.Rules.HighDollarThreshold}),
		},
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)
	if s.config.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if s.config.Server.RateLimit > 0 {
		s.router.Use(newIPRateLimiter(s.config.Server.RateLimit, s.config.Server.RateBurst).Middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/payers", func(r chi.Router) {
			r.Get("/", s.handleListPayers)
			r.Post("/", s.handleCreatePayer)

			r.Route("/{payerId}", func(r chi.Router) {
				r.Get("/rules", s.handleListRules)
				r.Post("/rules", s.handleCreateRule)
				r.Get("/rules/{ruleId}", s.handleGetRule)
				r.Patch("/rules/{ruleId}", s.handleUpdateRule)
				r.Delete("/rules/{ruleId}", s.handleDeleteRule)

				r.Post("/claims/process", s.handleProcessClaim)
				r.Post("/claims/validate", s.handleValidateClaim)
			})
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// newManager builds the payer manager from configuration, loading the optional rules file
func newManager(cfg *config.Config, db *sql.DB, rdb redis.UniversalClient) (*payerengine.Manager, error) {
	mc := payerengine.Config{
		DB:          db,
		Redis:       rdb,
		CacheTTL:    cfg.Redis.TTL,
		CachePrefix: cfg.Redis.KeyPrefix,
	}
	if cfg.Rules.SeedDefaults {
		mc.Defaults = &rules.DefaultRuleConfig{
			HighDollarThreshold: cfg.Rules.HighDollarThreshold,
			MinQualityScore:     cfg.Rules.MinQualityScore,
		}
	}
	if cfg.Rules.File != "" {
		extra, err := rules.LoadRulesFile(cfg.Rules.File)
		if err != nil {
			return nil, err
		}
		mc.ExtraRules = extra
		logger.Info("rules file loaded", "path", cfg.Rules.File, "rules", len(extra))
	}
	return payerengine.NewManager(mc), nil
}

func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func openRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	var db *sql.DB
	if cfg.Database.URL != "" {
		db, err = openDatabase(cfg.Database.URL)
		if err != nil {
			logger.Fatal("database unavailable", "error", err)
		}
		defer db.Close()
	} else {
		logger.Warn("no database configured, rule catalogs are in memory only")
	}

	var rdb redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := openRedis(cfg.Redis)
		if err != nil {
			logger.Fatal("redis unavailable", "error", err)
		}
		defer client.Close()
		rdb = client
	}

	manager, err := newManager(cfg, db, rdb)
	if err != nil {
		logger.Fatal("failed to configure payers", "error", err)
	}
	if _, err := manager.LoadAllPayers(); err != nil {
		logger.Fatal("failed to load payers", "error", err)
	}

	server := NewServer(cfg, manager, db, rdb)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
	if err := logger.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
	}
}
