// Package main - точка входа воркера лояльности Loyalty Hub.
//
// Worker слушает шину событий и обрабатывает покупки:
// - Запускает каскад наград (достижения -> баллы -> бейджи -> кэшбэк)
// - Повторяет неудавшиеся выплаты кэшбэка
// - Инвалидирует кешированные проекции статуса
//
// Покупки публикуются в шину ПОСЛЕ записи в хранилище, поэтому каскад
// всегда видит актуальные счётчики. Повторная доставка события
// безопасна: каскад идемпотентен.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bikemart-ng/loyalty-hub/config"
	"github.com/bikemart-ng/loyalty-hub/internal/application/cascade"
	"github.com/bikemart-ng/loyalty-hub/internal/application/eventhandler"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/payment"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/messaging"
	paymentgw "github.com/bikemart-ng/loyalty-hub/internal/infrastructure/payment"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/persistence/memory"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/persistence/postgres"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/persistence/redis"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/scheduler"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Создаём корневой контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запускаем приложение
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Loyalty Hub worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ (PostgreSQL, либо in-memory для разработки без БД)
	// ─────────────────────────────────────────────────────────────────────────
	var store loyalty.Store
	var catalog loyalty.CatalogWriter

	if cfg.Database.URL != "" {
		log.Info("connecting to database...")
		dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			dbConn.Close()
		}()

		if err := dbConn.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		log.Info("database connection established")

		// ─────────────────────────────────────────────────────────────────
		// 4. МИГРАЦИИ СХЕМЫ
		// ─────────────────────────────────────────────────────────────────
		if cfg.Database.MigrateOnStart {
			log.Info("checking database migrations...")
			migrator := postgres.NewMigrator(dbConn)
			if err := migrator.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date")
		}

		loyaltyStore := postgres.NewLoyaltyStore(dbConn)
		store = loyaltyStore
		catalog = loyaltyStore
	} else {
		if cfg.IsProduction() {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		log.Warn("DATABASE_URL is empty, using in-memory store (data is not persisted)")
		memStore := memory.NewStore()
		store = memStore
		catalog = memStore
	}

	// Сидируем каталог наград, чтобы воркер мог работать на пустой базе
	if cfg.Database.SeedCatalog {
		log.Info("seeding reward catalog...")
		if err := postgres.SeedCatalog(ctx, catalog); err != nil {
			return fmt.Errorf("failed to seed reward catalog: %w", err)
		}
		log.Info("reward catalog is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (кеш статуса + транспорт событий между инстансами)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...", "addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, falling back to in-process cache and bus", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			log.Info("Redis connection established")
		}
	}

	var statusCache loyalty.StatusCache
	if cfg.Features.IsEnabled(config.FeatureStatusCache, nil) {
		if redisCache != nil {
			statusCache = redis.NewStatusCache(redisCache)
		} else {
			statusCache = memory.NewStatusCache()
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	localBusCfg := messaging.DefaultInMemoryEventBusConfig()
	localBusCfg.Logger = log

	var eventBus shared.EventBus
	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewCacheRedisClient(redisCache),
			LocalBusConfig: localBusCfg,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize redis event bus: %w", err)
		}
		defer func() {
			log.Info("closing event bus...")
			_ = redisBus.Close()
		}()
		eventBus = redisBus
	} else {
		localBus := messaging.NewInMemoryEventBus(localBusCfg)
		defer func() {
			log.Info("closing event bus...")
			_ = localBus.Close()
		}()
		eventBus = localBus
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ПЛАТЁЖНЫЙ ШЛЮЗ
	// ─────────────────────────────────────────────────────────────────────────
	var gateway payment.Gateway
	switch cfg.Payment.Provider {
	case "http":
		gwCfg := paymentgw.DefaultHTTPGatewayConfig(cfg.Payment.BaseURL)
		gwCfg.APIKey = cfg.Payment.APIKey
		gwCfg.Timeout = cfg.Payment.RequestTimeout
		gwCfg.Logger = log
		gateway = paymentgw.NewHTTPGateway(gwCfg)
	default:
		gateway = paymentgw.NewMockGateway(log)
	}
	log.Info("payment gateway initialized", "provider", gateway.Name())

	// ─────────────────────────────────────────────────────────────────────────
	// 8. КАСКАД НАГРАД
	// ─────────────────────────────────────────────────────────────────────────
	var disburser *cascade.Disburser
	if cfg.Features.CashbackEnabled(nil) {
		disburser = cascade.NewDisburser(store, gateway, log)
	} else {
		// Kill switch: бейджи продолжают разблокироваться, выплаты
		// останутся с cashback_awarded = 0 до включения флага.
		log.Warn("cashback disbursement is disabled by feature flag")
	}

	orchestrator := cascade.NewOrchestrator(store, disburser, eventBus, log, cascade.OrchestratorConfig{
		MaxIterations: cfg.Cascade.MaxIterations,
		EnableEvents:  cfg.Features.IsEnabled(config.FeatureCascadeEvents, nil),
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ОБРАБОТЧИКИ СОБЫТИЙ И DISPATCHER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering event handlers...")

	purchaseHandler := eventhandler.NewOnPurchaseRecordedHandler(orchestrator, log, eventhandler.PurchaseRecordedConfig{
		CascadeTimeout: cfg.Cascade.HandlerTimeout,
	})
	invalidationHandler := eventhandler.NewOnLoyaltyChangedHandler(statusCache, log)

	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{
		EventBus:              eventBus,
		RetryConfig:           messaging.DefaultRetryConfig(),
		EnableDeadLetterQueue: true,
		DeadLetterQueueSize:   1000,
		Logger:                log,
	})
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))

	if err := dispatcher.RegisterHandler(purchaseHandler.EventType(), messaging.HandlerRegistration{
		Name:       "reward_cascade",
		Handler:    purchaseHandler.Handle,
		MaxRetries: cfg.Cascade.HandlerRetries,
		Timeout:    cfg.Cascade.HandlerTimeout,
	}); err != nil {
		return fmt.Errorf("failed to register cascade handler: %w", err)
	}

	for _, eventType := range invalidationHandler.EventTypes() {
		if err := dispatcher.Register(eventType, "status_cache_invalidation", invalidationHandler.Handle); err != nil {
			return fmt.Errorf("failed to register invalidation handler: %w", err)
		}
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ФОНОВЫЕ ЗАДАЧИ (повтор неудавшихся выплат кэшбэка)
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(log)

	if disburser != nil && cfg.Features.IsEnabled(config.FeatureCashbackAutoRetry, nil) {
		retryJob := jobs.NewRetryCashbackJob(store, orchestrator, log, jobs.RetryCashbackConfig{
			BatchSize: cfg.Cascade.CashbackRetryBatch,
		})
		if err := sched.Register(retryJob, scheduler.NewIntervalSchedule(cfg.Cascade.CashbackRetryInterval)); err != nil {
			return fmt.Errorf("failed to register cashback retry job: %w", err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		log.Info("stopping scheduler...")
		_ = sched.Stop()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Loyalty Hub worker is running")

	// Ожидаем сигнал завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	// Начинаем graceful shutdown: deferred Close на шине дожидается
	// обработчиков в полёте
	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// parseLogLevel преобразует строку в slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
