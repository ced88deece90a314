package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sourabh1428/query-editor/internal/api/handlers"
	"github.com/sourabh1428/query-editor/internal/api/middleware"
	"github.com/sourabh1428/query-editor/internal/api/openapi"
	"github.com/sourabh1428/query-editor/internal/cache"
	"github.com/sourabh1428/query-editor/internal/config"
	"github.com/sourabh1428/query-editor/internal/database"
	"github.com/sourabh1428/query-editor/internal/repository"
	"github.com/sourabh1428/query-editor/internal/server"
	"github.com/sourabh1428/query-editor/internal/service"
	"github.com/sourabh1428/query-editor/internal/token"
)

const serviceID = "query-editor"

// startupTimeout — ограничение на подключение к зависимостям при старте.
const startupTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	// 1. Конфигурация и логгер
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("загрузка конфигурации: %w", err)
	}
	logger := config.SetupLogger(cfg)
	logger.Info("Query Editor запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("cache_backend", cfg.CacheBackend),
	)

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	// 2. Миграции и подключение к PostgreSQL
	if err := database.Migrate(cfg, logger); err != nil {
		return err
	}
	pool, err := database.Connect(startCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	db := database.OpenDB(pool)
	defer func() { _ = db.Close() }()

	// 3. Кэш результатов
	resultCache, cacheChecker, closeCache := newResultCache(startCtx, cfg, logger)
	defer closeCache()

	// 4. Токены
	tokens, err := newTokenService(cfg)
	if err != nil {
		return err
	}

	// 5. Репозитории и сервисы
	userRepo := repository.NewUserRepository(pool)
	queryRepo := repository.NewQueryRepository(pool)
	schemaRepo := repository.NewSchemaRepository(pool)

	executor := service.NewSQLExecutor(db, cfg.QueryTimeout, logger)
	authSvc := service.NewAuthService(userRepo, tokens, logger)
	querySvc := service.NewQueryService(executor, queryRepo, resultCache, logger)
	historySvc := service.NewHistoryService(queryRepo, executor, logger)
	schemaSvc := service.NewSchemaService(schemaRepo, executor, logger)

	// 6. Мониторинг зависимостей
	dh, err := service.NewDephealthService(serviceID, cfg.DephealthGroup, db,
		cfg.DatabaseURL("postgres"), cfg.DephealthCheckInterval, logger)
	if err != nil {
		return fmt.Errorf("инициализация dephealth: %w", err)
	}
	if err := dh.Start(ctx); err != nil {
		return fmt.Errorf("запуск dephealth: %w", err)
	}
	defer dh.Stop()

	// 7. OpenAPI-контракт
	doc, err := openapi.Load(startCtx)
	if err != nil {
		return err
	}
	validator, err := openapi.NewValidator(doc, logger)
	if err != nil {
		return err
	}
	docHandler, err := openapi.Handler(doc)
	if err != nil {
		return err
	}

	// 8. HTTP-сервер
	h := server.Handlers{
		API:     handlers.NewAPIHandler(authSvc, querySvc, historySvc, schemaSvc, logger),
		Health:  handlers.NewHealthHandler(database.NewReadinessChecker(pool), cacheChecker, resultCache.Backend()),
		OpenAPI: docHandler,
	}
	mw := server.Middlewares{
		Auth:      middleware.NewJWTAuth(tokens, logger).Middleware(),
		RateLimit: middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst, logger).Middleware(),
		Validate:  validator.Middleware(),
	}
	srv := server.New(cfg, logger, h, mw)

	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Query Editor остановлен")
	return nil
}

// newResultCache выбирает бэкенд кэша. Недоступный Redis при старте
// не мешает запуску: используется in-memory кэш.
func newResultCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.ResultCache, handlers.ReadinessChecker, func()) {
	noop := func() {}

	switch cfg.CacheBackend {
	case config.CacheBackendNone:
		return cache.NewNopCache(), nil, noop
	case config.CacheBackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		}, logger)
		if err == nil {
			return rc, rc, func() { _ = rc.Close() }
		}
		logger.Warn("Redis недоступен, используется in-memory кэш",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
	}
	return cache.NewMemoryCache(cfg.CacheMaxEntries, cfg.CacheTTL, logger), nil, noop
}

// newTokenService собирает сервис токенов из активного и предыдущих ключей.
func newTokenService(cfg *config.Config) (*token.Service, error) {
	previous := make([]token.Key, 0, len(cfg.JWTPreviousKeys))
	for _, k := range cfg.JWTPreviousKeys {
		previous = append(previous, token.Key{ID: k.ID, Secret: []byte(k.Secret)})
	}
	tokens, err := token.NewService(
		token.Key{ID: cfg.JWTKeyID, Secret: []byte(cfg.JWTSecret)},
		previous, cfg.JWTTTL, cfg.JWTLeeway,
	)
	if err != nil {
		return nil, fmt.Errorf("инициализация токенов: %w", err)
	}
	return tokens, nil
}
