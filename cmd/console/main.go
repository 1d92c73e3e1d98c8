package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xela07ax/manday-assess/internal/apperr"
	"github.com/xela07ax/manday-assess/internal/audit"
	"github.com/xela07ax/manday-assess/internal/cache"
	"github.com/xela07ax/manday-assess/internal/console/handler"
	"github.com/xela07ax/manday-assess/internal/console/rpc"
	"github.com/xela07ax/manday-assess/internal/console/server"
	"github.com/xela07ax/manday-assess/internal/console/service"
	"github.com/xela07ax/manday-assess/internal/infra"
	"github.com/xela07ax/manday-assess/internal/infra/auth"
	"github.com/xela07ax/manday-assess/internal/metrics"
	"github.com/xela07ax/manday-assess/internal/repository/postgres"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("console stopped with error", zap.Error(err))
	}
	logger.Info("console exited properly")
}

func run(cfg *infra.Config, logger *zap.Logger) error {
	// Контекст живёт до SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Ключ подписи: Key Vault (если задан) → ENV/файл → сгенерированный
	if cfg.Auth.KeyVaultURL != "" {
		src, err := infra.NewKeyVaultSource(cfg.Auth.KeyVaultURL)
		if err != nil {
			return err
		}
		kvCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = infra.ResolveAuthSecret(kvCtx, &cfg.Auth, src)
		cancel()
		if err != nil {
			return err
		}
	}
	key, generated, err := auth.ResolveSigningKey(cfg.Auth.Secret)
	if err != nil {
		return err
	}
	if generated {
		logger.Warn("no signing secret configured: generated an ephemeral key, issued tokens will not survive a restart")
	}
	codec, err := auth.NewTokenCodec(key,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAudience(cfg.Auth.Audience),
		auth.WithSigningMethod(cfg.Auth.Algorithm),
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
	)
	if err != nil {
		return err
	}

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// 3. Хранилища
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	auditDB, err := postgres.OpenAuditDB(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer auditDB.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Redis не критичен для входа: кэш и счётчики деградируют, проверка отзыва пропускает токены
		logger.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	pgGuard := infra.NewGuard("postgres", cfg.Resilience, m, logger)
	redisGuard := infra.NewGuard("redis", cfg.Resilience, m, logger)

	// 4. Аудит: Postgres и, если настроено, Kafka
	auditRepo := postgres.NewAuditRepo(auditDB)
	storages := audit.MultiStorage{auditRepo}
	if len(cfg.Audit.KafkaBrokers) > 0 {
		sink := audit.NewKafkaSink(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic)
		defer sink.Close()
		storages = append(storages, sink)
	}
	if cfg.Audit.SignatureSecret == "" {
		logger.Warn("audit signature secret is empty: audit records are signed with an empty key")
	}
	signer := audit.NewSigner(cfg.Audit.SignatureSecret)
	trail := audit.NewTrail(storages, signer, audit.Options{
		BufferSize:    cfg.Audit.BufferSize,
		BatchSize:     cfg.Audit.BatchSize,
		FlushInterval: cfg.Audit.FlushInterval,
		Observer:      m,
	}, logger)
	trail.Start()
	defer trail.Stop()

	// 5. Сервисы
	locks := cache.NewLockRegistry(rdb, logger)
	if err := locks.Init(ctx); err != nil {
		logger.Warn("lock registry warmup failed", zap.Error(err))
	}

	authSvc := service.NewAuthService(service.AuthDeps{
		Users:    postgres.NewUserRepo(pool, pgGuard),
		Sessions: cache.NewLoginCache(rdb, redisGuard, logger),
		Codec:    codec,
		Auditor:  trail,
		Observer: m,
		Locks:    locks,
	}, service.AuthOptions{
		MaxFailedAttempts:   cfg.Auth.MaxFailedAttempts,
		PasswordExpiry:      cfg.Auth.PasswordExpiry,
		BcryptCost:          cfg.Auth.BcryptCost,
		RevalidateOnRequest: cfg.Auth.RevalidateOnRequest,
	}, logger)
	auditSvc := service.NewAuditService(auditRepo, signer)

	translator := apperr.NewTranslator(cfg.App.IsProduction(), logger, apperr.WithObserver(m))
	validate := apperr.NewValidator()

	// 6. HTTP API
	api := server.NewConsoleServer(cfg, logger, server.Deps{
		Auth:       handler.NewAuthHandler(authSvc, translator, validate),
		Admin:      handler.NewAdminHandler(authSvc, translator),
		Audit:      handler.NewAuditHandler(auditSvc, translator),
		Validator:  authSvc,
		Errors:     translator,
		Instrument: m.Middleware,
	})
	apiSrv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 7. gRPC: проверка токенов и health
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(
		auth.UnaryAuthInterceptor(authSvc, translator, logger, rpc.MethodValidate)))
	rpc.Register(grpcSrv, rpc.NewTokenServer(authSvc))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		locks.Listen(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("http api started", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("metrics started", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc started", zap.String("addr", lis.Addr().String()))
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})

	// 8. Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("console stopping...")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http api shutdown failed", zap.Error(err))
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics shutdown failed", zap.Error(err))
		}
		grpcSrv.GracefulStop()
		return nil
	})

	return g.Wait()
}
