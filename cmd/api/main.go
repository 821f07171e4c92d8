package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/retail-ledger/internal/authz"
	"github.com/safar/retail-ledger/internal/config"
	"github.com/safar/retail-ledger/internal/database"
	"github.com/safar/retail-ledger/internal/handlers"
	"github.com/safar/retail-ledger/internal/intake"
	"github.com/safar/retail-ledger/internal/logger"
	"github.com/safar/retail-ledger/internal/middleware"
	"github.com/safar/retail-ledger/internal/persist"
	"github.com/safar/retail-ledger/internal/sales"
	"github.com/safar/retail-ledger/internal/service"
	"github.com/safar/retail-ledger/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logger, cfg.Server.AppEnv)
	if err != nil {
		log.Fatalf("Init logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, locker, closeBackend, err := openBackend(cfg)
	if err != nil {
		zapLogger.Fatal("Open store backend", zap.String("backend", cfg.Ledger.StoreBackend), zap.Error(err))
	}
	defer closeBackend()

	tenant, err := store.Open(ctx, cfg.Ledger.TenantID, backend, zapLogger, store.Options{
		Locker:          locker,
		FlushMaxRetries: cfg.Ledger.FlushMaxRetries,
	})
	if err != nil {
		zapLogger.Fatal("Open tenant", zap.String("tenant_id", cfg.Ledger.TenantID), zap.Error(err))
	}

	svc := service.New(tenant, authz.DefaultTable(), zapLogger, service.Options{
		Policy: sales.Policy{
			AllowOversell:          cfg.Ledger.AllowOversell,
			DeferredPaymentMethods: cfg.Ledger.DeferredPaymentMethods,
		},
	})

	var wg sync.WaitGroup
	if cfg.Kafka.Enabled() {
		if err := intake.VerifySeller(svc, cfg.Kafka.SellerID); err != nil {
			zapLogger.Fatal("Storefront intake misconfigured", zap.Error(err))
		}
		reader := intake.NewReader(cfg.Kafka)
		listener := intake.NewListener(reader, svc, cfg.Kafka.SellerID, zapLogger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener.Start(ctx)
			if err := reader.Close(); err != nil {
				zapLogger.Warn("Close kafka reader", zap.Error(err))
			}
		}()
	}

	if cfg.Server.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger), gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "pending": tenant.Pending()})
	})
	handlers.New(svc, zapLogger).Register(router.Group("/v1", middleware.Auth([]byte(cfg.Auth.JWTSecret))))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("backend", cfg.Ledger.StoreBackend),
			zap.String("tenant_id", cfg.Ledger.TenantID),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server shutdown", zap.Error(err))
	}
	wg.Wait()

	if err := svc.Flush(shutdownCtx); err != nil {
		zapLogger.Error("Final flush failed", zap.Strings("pending", tenant.Pending()), zap.Error(err))
	}
}

func openBackend(cfg *config.Config) (persist.Store, persist.Locker, func(), error) {
	switch cfg.Ledger.StoreBackend {
	case config.BackendPostgres:
		db, err := database.NewConnection(&cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		return persist.NewPostgres(db), nil, func() { db.Close() }, nil
	case config.BackendRedis:
		client, err := persist.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		r := persist.NewRedis(client, cfg.Redis.LockTTL)
		return r, r, func() { client.Close() }, nil
	default:
		return persist.NewMemory(), nil, func() {}, nil
	}
}
