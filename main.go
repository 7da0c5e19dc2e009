package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/card-grader/internal/auth"
	"github.com/example/card-grader/internal/config"
	"github.com/example/card-grader/internal/grading"
	"github.com/example/card-grader/internal/handlers"
	"github.com/example/card-grader/internal/logging"
	"github.com/example/card-grader/internal/mlclient"
	"github.com/example/card-grader/internal/notify"
	"github.com/example/card-grader/internal/repository"
	"github.com/example/card-grader/internal/usecase"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	storeRouter := initStores(ctx, cfg, logger)

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, cfg.RedisAddr, logger)

	engine := mlclient.New(cfg.InferenceURL, cfg.InferenceTimeout, logger)
	if err := engine.Health(ctx); err != nil {
		// The service stays up; grading requests fail with 500 until the
		// model service comes back.
		logger.Warn("model service not reachable at startup", zap.Error(err))
	}

	hub := notify.NewHub(logger)
	pipeline := grading.NewPipeline(engine, grading.Labels{
		Front:  cfg.FrontLabel,
		Back:   cfg.BackLabel,
		Tear:   cfg.TearLabel,
		Crease: cfg.CreaseLabel,
	}, logger)

	cache := usecase.NewRedisCache(redisClient)
	uc := usecase.NewConditionUseCase(pipeline, storeRouter, cache, hub, logger)

	r := gin.Default()
	r.MaxMultipartMemory = handlers.MaxUploadSize

	authMiddleware := auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience)
	handlers.RegisterRoutes(r, uc, hub, authMiddleware, logger)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	logger.Info("card grading API listening", zap.String("addr", cfg.Addr))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// initStores opens the default grade store, plus the secondary store when
// configured, and builds the host routing table.
func initStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) *repository.Router {
	primary := repository.NewGradeRepository(openDatabase(ctx, cfg.DatabaseDSN, logger), logger)
	if err := primary.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}

	router := repository.NewRouter(primary)
	if cfg.SecondaryDSN == "" {
		return router
	}

	secondary := repository.NewGradeRepository(openDatabase(ctx, cfg.SecondaryDSN, logger), logger)
	if err := secondary.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed for secondary store", zap.Error(err))
	}
	for _, host := range cfg.SecondaryHosts {
		router.Route(host, secondary)
	}
	return router
}

func openDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Info)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
