package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/library-lending/internal/adapter/auth"
	"github.com/rl1809/library-lending/internal/adapter/handler"
	"github.com/rl1809/library-lending/internal/adapter/storage"
	"github.com/rl1809/library-lending/internal/config"
	"github.com/rl1809/library-lending/internal/core/service"
	"github.com/rl1809/library-lending/internal/port"
)

type stores struct {
	inventory port.InventoryRepository
	lendings  port.LendingRepository
	query     port.LendingQueryRepository
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger, cfg); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg config.Log) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(logger *zap.Logger, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStores(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	opts := []service.Option{service.WithLoanDays(cfg.Lending.LoanDays)}
	idempotency, closeIdempotency, err := openIdempotency(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer closeIdempotency()
	opts = append(opts, service.WithIdempotency(idempotency))

	lendingService := service.NewLendingService(logger, st.inventory, st.lendings, opts...)
	queryService := service.NewQueryService(logger, st.query, st.inventory)
	resolver := auth.NewJWTResolver(cfg.Auth.JWTSecret)

	var wg sync.WaitGroup

	sweeper := service.NewOverdueSweeper(logger, lendingService, cfg.Lending.OverdueSweepInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	limiter := handler.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	wg.Add(1)
	go func() {
		defer wg.Done()
		limiter.Run(ctx)
	}()

	// gRPC
	grpcServer := grpc.NewServer()
	handler.RegisterLendingServiceServer(grpcServer, handler.NewGRPCHandler(logger, lendingService, queryService, resolver))

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
			cancel()
		}
	}()

	// HTTP
	httpHandler := handler.NewHTTPHandler(logger, lendingService, queryService, resolver)
	httpServer := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: handler.Chain(httpHandler.Routes(),
			handler.Recover(logger),
			handler.RequestID,
			handler.AccessLog(logger),
			limiter.Middleware,
		),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	wg.Wait()
	logger.Info("workers stopped")
	return nil
}

func openStores(ctx context.Context, logger *zap.Logger, cfg *config.Config) (*stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverMySQL:
		db, err := storage.OpenMySQL(ctx, cfg.MySQL.DSN)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnLifetime)
		logger.Info("connected to mysql")

		adapter := storage.NewMySQLAdapter(db)
		if cfg.Storage.Migrate {
			if err := adapter.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
			logger.Info("mysql schema migrated")
		}
		return &stores{inventory: adapter, lendings: adapter, query: adapter, close: func() { db.Close() }}, nil

	case config.DriverPostgres:
		pool, err := storage.OpenPostgres(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to postgres")

		adapter := storage.NewPostgresAdapter(pool)
		if cfg.Storage.Migrate {
			if err := adapter.Migrate(ctx); err != nil {
				pool.Close()
				return nil, err
			}
			logger.Info("postgres schema migrated")
		}
		return &stores{inventory: adapter, lendings: adapter, query: adapter, close: pool.Close}, nil

	default:
		logger.Warn("using in-memory storage, data is lost on exit")
		adapter := storage.NewMemoryAdapter()
		return &stores{inventory: adapter, lendings: adapter, query: adapter, close: func() {}}, nil
	}
}

func openIdempotency(ctx context.Context, logger *zap.Logger, cfg *config.Config) (port.IdempotencyRepository, func(), error) {
	if cfg.Redis.Addr == "" {
		return storage.NewMemoryIdempotency(cfg.Lending.IdempotencyTTL), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	return storage.NewRedisAdapter(rdb, cfg.Lending.IdempotencyTTL), func() { rdb.Close() }, nil
}
