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

	"callcard-platform/internal/audit"
	"callcard-platform/internal/auth"
	"callcard-platform/internal/calls"
	"callcard-platform/internal/config"
	"callcard-platform/internal/httpapi"
	"callcard-platform/internal/voucher"
	"callcard-platform/pkg/logger"
	"callcard-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Audit trail goes to Postgres always, and to Kafka when brokers are
	// configured. Kafka being down never blocks metering.
	auditStore := audit.Repository(audit.NewPostgresRepo(db))
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := audit.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka init failed", "err", err)
			os.Exit(1)
		}
		defer pub.Close()
		auditStore = audit.Tee(auditStore, pub)
	}
	auditSvc := audit.NewService(auditStore, log)

	voucherSvc := voucher.NewService(voucher.NewPostgresRepo(db), auditSvc, cfg.Voucher.StorageTimeout)
	allocator := voucher.NewAllocator(voucherSvc, cfg.Voucher.AllocatorMaxAttempts)
	callsSvc := calls.NewService(calls.NewPostgresRepo(db), voucherSvc, auditSvc, cfg.Voucher.StorageTimeout)

	h := httpapi.Handlers{
		Auth:      authManager,
		Vouchers:  voucherSvc,
		Allocator: allocator,
		Calls:     callsSvc,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	validateLimiter := httpapi.RateLimitValidate(rdb, log, cfg.RateLimit.ValidatePerWindow, cfg.RateLimit.ValidateWindow)
	registerRoutes(r, h, auth.RequireAccessToken(authManager), validateLimiter, db, rdb)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
