package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/terratrac/eudr-backend/internal/config"
	"github.com/terratrac/eudr-backend/internal/db"
	"github.com/terratrac/eudr-backend/internal/farms"
	"github.com/terratrac/eudr-backend/internal/health"
	"github.com/terratrac/eudr-backend/internal/logging"
	"github.com/terratrac/eudr-backend/internal/metrics"
	"github.com/terratrac/eudr-backend/internal/middleware"
	"github.com/terratrac/eudr-backend/internal/users"
	"go.uber.org/zap"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "eudr-backend")
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db.Connect(cfg.Database)
	if err := farms.Init(ctx, cfg, logger); err != nil {
		logger.Fatal("failed to initialise farms", zap.Error(err))
	}
	if err := users.Migrate(db.DB); err != nil {
		logger.Fatal("failed to migrate users", zap.Error(err))
	}
	userStore := users.NewStore(db.DB)

	sqlDB, err := db.DB.DB()
	if err != nil {
		logger.Fatal("failed to get sql.DB", zap.Error(err))
	}
	checks := map[string]health.Pinger{"database": sqlDB}
	if farms.Cache != nil {
		checks["redis"] = health.PingFunc(func(ctx context.Context) error { return farms.Cache.Ping(ctx).Err() })
	}
	probes := health.NewHandler(checks)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Get("/", RootHandler)
	r.Get("/healthz", probes.Live)
	r.Get("/readyz", probes.Ready)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		r.Use(middleware.Identity(userStore))
		r.Mount("/api/users", users.SetupRoutes(users.NewHandler(userStore, logger.Named("users"))))
		r.Mount("/api", farms.SetupRoutes())
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	farms.Orchestrator.Wait()
	logger.Info("server stopped")
}
