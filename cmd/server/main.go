// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rihla/internal/audit"
	auditmem "rihla/internal/audit/store/memory"
	auditpg "rihla/internal/audit/store/postgres"
	jwttoken "rihla/internal/jwt_token"
	"rihla/internal/platform/config"
	"rihla/internal/platform/httpserver"
	"rihla/internal/platform/logger"
	platformmetrics "rihla/internal/platform/metrics"
	platformpg "rihla/internal/platform/postgres"
	platformredis "rihla/internal/platform/redis"
	"rihla/internal/trip/handler"
	tripmetrics "rihla/internal/trip/metrics"
	"rihla/internal/trip/service"
	"rihla/internal/trip/store"
	"rihla/internal/trip/store/memory"
	trippg "rihla/internal/trip/store/postgres"
	"rihla/internal/trip/store/statscache"
	httptransport "rihla/internal/transport/http"
	id "rihla/pkg/domain"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "rihla")
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	checks := map[string]httptransport.HealthCheck{}

	var (
		trips         store.TripStore
		registrations store.RegistrationStore
		stats         store.StatsStore
		auditStore    audit.Store
	)
	if cfg.DevMode || cfg.DatabaseURL == "" {
		mem := memory.New()
		trips, registrations, stats = mem, mem, mem
		auditStore = auditmem.NewInMemoryStore()

		orgID, tripID := store.SeedDemoTrip(mem)
		devToken, err := jwtService.GenerateAccessToken(orgID, id.NewMemberID(), 24*time.Hour)
		if err == nil {
			log.Info("dev mode: in-memory stores seeded",
				"org_id", orgID,
				"trip_id", tripID,
				"bearer_token", devToken,
			)
		}
	} else {
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pool, err := platformpg.NewPool(initCtx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		sqlDB, err := platformpg.NewSQL(initCtx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open audit db", "error", err)
			os.Exit(1)
		}
		defer sqlDB.Close()

		pg := trippg.New(pool)
		trips, registrations, stats = pg, pg, pg
		auditStore = auditpg.New(sqlDB)
		checks["postgres"] = pool.Ping
	}

	publisher := audit.NewPublisher(cfg.AuditBuffer, log)
	worker := audit.NewWorker(auditStore, publisher.Events(), log)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	serviceOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(tripmetrics.New()),
		service.WithAuditPublisher(publisher),
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient.Health
		serviceOpts = append(serviceOpts,
			service.WithStatsCache(statscache.New(redisClient.Client, statscache.WithLogger(log))))
	}

	svc := service.New(trips, registrations, stats, serviceOpts...)
	tripHandler := handler.New(svc, log, platformmetrics.New(), validator)
	router := httptransport.NewRouter(tripHandler, checks)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting rihla", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
