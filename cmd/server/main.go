package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"keystock.backend/internal/config"
	"keystock.backend/internal/domain/repositories"
	"keystock.backend/internal/infrastructure/filestore"
	"keystock.backend/internal/infrastructure/jobs"
	infraRepos "keystock.backend/internal/infrastructure/repositories"
	"keystock.backend/internal/infrastructure/telegram"
	"keystock.backend/internal/interfaces/http/handlers"
	"keystock.backend/internal/interfaces/http/middleware"
	"keystock.backend/internal/usecases"
	"keystock.backend/pkg/logger"
	"keystock.backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.InitWithFile
	initRedis  = redis.Init
	openStore  = filestore.Open
	openDB     = func(cfg *config.Config) (*gorm.DB, error) {
		var dialector gorm.Dialector
		switch cfg.Store.Driver {
		case config.StoreDriverSQLite:
			dialector = sqlite.Open(cfg.Store.SQLitePath)
		default:
			dialector = postgres.New(postgres.Config{
				DSN:                  cfg.Database.URL(),
				PreferSimpleProtocol: true,
			})
		}
		return gorm.Open(dialector, &gorm.Config{
			PrepareStmt: false,
			Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		})
	}
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
	runServer = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

// storeRepos bundles the repositories backing one store driver
type storeRepos struct {
	keys   repositories.KeyRepository
	notify repositories.NotificationRepository
	close  func()
}

func openRepositories(ctx context.Context, cfg *config.Config) (storeRepos, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverFile, "":
		repo := infraRepos.NewFileKeyRepository(openStore(ctx, cfg.Store.FilePath))
		logger.Info(ctx, "Using file store", zap.String("path", cfg.Store.FilePath))
		return storeRepos{keys: repo, notify: repo, close: func() {}}, nil

	case config.StoreDriverSQLite, config.StoreDriverPostgres:
		db, err := openDB(cfg)
		if err != nil {
			return storeRepos{}, fmt.Errorf("failed to connect to database: %w", err)
		}
		sqlDB, err := getStdDB(db)
		if err != nil {
			return storeRepos{}, fmt.Errorf("failed to get generic database object: %w", err)
		}
		if err := infraRepos.AutoMigrate(db); err != nil {
			_ = sqlDB.Close()
			return storeRepos{}, fmt.Errorf("failed to migrate database: %w", err)
		}
		repo := infraRepos.NewGormKeyRepository(db)
		logger.Info(ctx, "Using SQL store", zap.String("driver", cfg.Store.Driver))
		return storeRepos{keys: repo, notify: repo, close: func() { _ = sqlDB.Close() }}, nil

	default:
		return storeRepos{}, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env, cfg.Server.LogFile)
	defer logger.Sync()
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	// Redis only backs the idempotency cache; the service runs without it
	if cfg.Redis.URL != "" {
		if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
			logger.Warn(ctx, "Redis unavailable, idempotency cache disabled", zap.Error(err))
		} else {
			logger.Info(ctx, "Redis initialized")
			defer func() { _ = redis.Close() }()
		}
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	// Background notification worker
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sender := telegram.NewClient(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.Timeout)
	dispatcher := jobs.NewNotificationDispatcher(sender, cfg.Notify.QueueSize, cfg.Telegram.Timeout)
	go dispatcher.Start(jobCtx)
	defer dispatcher.Stop()

	if !cfg.Telegram.Enabled() {
		logger.Warn(ctx, "Telegram destination not configured, low-stock warnings are tracked but not sent")
	}

	notifier := usecases.NewLowStockNotifier(store.keys, store.notify, dispatcher)
	keyUsecase := usecases.NewKeyUsecase(store.keys, notifier)
	historyUsecase := usecases.NewHistoryUsecase(store.keys)
	settingsUsecase := usecases.NewSettingsUsecase(store.notify, notifier)

	// Stock may already be low from the previous run
	if err := notifier.Evaluate(ctx); err != nil {
		logger.Error(ctx, "Startup low-stock evaluation failed", zap.Error(err))
	}

	r := newRouter(routeDeps{
		keyHandler:      handlers.NewKeyHandler(keyUsecase, historyUsecase),
		historyHandler:  handlers.NewHistoryHandler(historyUsecase),
		settingsHandler: handlers.NewSettingsHandler(settingsUsecase),
		idempotency:     middleware.IdempotencyMiddleware(),
	})

	for _, route := range r.Routes() {
		logger.Debug(ctx, "Route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info(ctx, "Shutting down server")
		dispatcher.Stop()
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info(ctx, "Key stock service starting",
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
	)

	if err := runServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
