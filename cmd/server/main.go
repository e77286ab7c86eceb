// Copyright 2026 The Gatehouse Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatehouse/gatehouse/internal/audit"
	"github.com/gatehouse/gatehouse/internal/authz"
	"github.com/gatehouse/gatehouse/internal/catalog"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/decisionlog"
	"github.com/gatehouse/gatehouse/internal/identity"
	"github.com/gatehouse/gatehouse/internal/membership"
	"github.com/gatehouse/gatehouse/internal/observability/logger"
	"github.com/gatehouse/gatehouse/internal/observability/metrics"
	"github.com/gatehouse/gatehouse/internal/observability/tracing"
	"github.com/gatehouse/gatehouse/internal/org"
	"github.com/gatehouse/gatehouse/internal/profiles"
	"github.com/gatehouse/gatehouse/internal/registry"
	"github.com/gatehouse/gatehouse/internal/store/memory"
	"github.com/gatehouse/gatehouse/internal/store/postgres"
	transportHTTP "github.com/gatehouse/gatehouse/internal/transport/http"
	"github.com/robfig/cron/v3"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting gatehouse decision core")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	_, err = metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	authz.RegisterMetrics()
	profiles.RegisterMetrics()

	// Load the permission catalog
	cat, err := loadCatalog(cfg)
	if err != nil {
		slog.Error("failed to load catalog", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("catalog loaded",
		logger.Component("catalog"),
		slog.Int("profiles", len(cat.Profiles())),
	)

	// Initialize storage. An empty DB_HOST selects the in-memory store,
	// which loses all state on restart.
	var (
		orgRepo  org.Repository
		userRepo identity.Repository
		roleRepo registry.Repository
		edgeRepo membership.Repository
		sink     decisionlog.Sink
	)
	if cfg.Database.Host != "" {
		db, err := postgres.New(ctx, postgres.Config{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			Database:     cfg.Database.Database,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			slog.Error("failed to connect to database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to database")

		orgRepo = postgres.NewOrgRepository(db)
		userRepo = postgres.NewUserRepository(db)
		roleRepo = postgres.NewRoleRepository(db)
		edgeRepo = postgres.NewMembershipRepository(db)
		sink = postgres.NewDecisionLogRepository(db)
	} else {
		slog.Warn("DB_HOST not set, using in-memory store")
		store := memory.New()
		orgRepo = store.Organizations()
		userRepo = store.Users()
		roleRepo = store.Roles()
		edgeRepo = store.Memberships()
		sink = store.Decisions()
	}

	auditLogger := audit.NewSlogLogger()

	// Decision log writer
	var decisions *decisionlog.Service
	if cfg.DecisionLog.Enabled {
		decisions = decisionlog.NewService(sink, cfg.DecisionLog.Buffer)
		decisions.Start(ctx)
		defer decisions.Close()
	}

	// Evaluator and services. The switcher and membership service share one
	// lock set so a profile switch serializes against a concurrent
	// clear-on-last-revoke.
	evaluator, err := authz.NewService(cat, edgeRepo, roleRepo, userRepo, decisions,
		cfg.Evaluator.CacheSize, cfg.Evaluator.CacheTTL)
	if err != nil {
		slog.Error("failed to initialize evaluator", logger.Error(err))
		os.Exit(1)
	}

	locks := membership.NewUserLocks()
	membershipService := membership.NewService(edgeRepo, roleRepo, userRepo, locks, evaluator, auditLogger)
	switcher := profiles.NewSwitcher(membershipService, userRepo, locks, evaluator, auditLogger)
	registryService := registry.NewService(cat, roleRepo, membershipService, evaluator, auditLogger)
	orgService := org.NewService(orgRepo, roleRepo, auditLogger)
	identityService := identity.NewService(userRepo, auditLogger)

	// Decision log retention
	scheduler := cron.New()
	if decisions != nil && cfg.DecisionLog.Retention > 0 {
		_, err := scheduler.AddFunc(cfg.DecisionLog.PruneSchedule, func() {
			pruned, err := decisions.Prune(ctx, cfg.DecisionLog.Retention)
			if err != nil {
				slog.ErrorContext(ctx, "failed to prune decision log", logger.Error(err))
				return
			}
			slog.InfoContext(ctx, "pruned decision log",
				logger.Component("decisionlog"),
				logger.RowsAffected(pruned),
			)
		})
		if err != nil {
			slog.Error("invalid prune schedule", logger.Error(err))
			os.Exit(1)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		identityService,
		orgService,
		registryService,
		membershipService,
		switcher,
		evaluator,
		transportHTTP.AuthConfig{
			JWTSecret: cfg.Auth.JWTSecret,
			JWTIssuer: cfg.Auth.JWTIssuer,
		},
	)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.SeedPath == "" {
		return catalog.New(catalog.BuiltinSeed())
	}
	seed, err := catalog.LoadSeed(cfg.Catalog.SeedPath)
	if err != nil {
		return nil, err
	}
	return catalog.New(seed)
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
