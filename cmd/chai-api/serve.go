package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/bigkaa/chai-api/internal/api/handlers"
	"github.com/bigkaa/chai-api/internal/api/middleware"
	"github.com/bigkaa/chai-api/internal/api/openapi"
	"github.com/bigkaa/chai-api/internal/config"
	"github.com/bigkaa/chai-api/internal/database"
	"github.com/bigkaa/chai-api/internal/repository"
	"github.com/bigkaa/chai-api/internal/server"
	"github.com/bigkaa/chai-api/internal/service"
)

// jwksReadyTimeout — таймаут проверки JWKS в readiness.
const jwksReadyTimeout = 3 * time.Second

// Пути без аутентификации: пробы, метрики, документ API.
var publicPaths = []string{"/health/", "/metrics", "/heartbeat", "/openapi.yaml"}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запуск HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe поднимает сервис и блокируется до отмены ctx.
func runServe(ctx context.Context) error {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("загрузка конфигурации: %w", err)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("chai-api запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. OpenAPI-документ: встроенный YAML должен быть валиден
	if _, err := openapi.Load(ctx); err != nil {
		return fmt.Errorf("OpenAPI-документ: %w", err)
	}

	// 4. Миграции (опционально, CHAI_DB_MIGRATE=true)
	if cfg.DBMigrate {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			return fmt.Errorf("миграции БД: %w", err)
		}
	}

	// 5. Подключение к PostgreSQL (pgxpool)
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("подключение к PostgreSQL: %w", err)
	}
	defer pool.Close()

	// 5.1 Адаптер pgxpool → *sql.DB для topologymetrics.
	// Проверка PostgreSQL идёт через пул и видит его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 6. Repositories
	projectRepo := repository.NewProjectRepository(pool)
	tableRepo := repository.NewTableRepository(pool)

	// 7. Services
	projectSvc := service.NewProjectService(
		projectRepo,
		service.NewDetailCache(cfg.DetailCacheSize, cfg.DetailCacheTTL),
		logger,
	)
	leaderboardSvc := service.NewLeaderboardService(
		projectRepo,
		service.NewProjectCache(),
		cfg.LeaderboardCoalesce,
		logger,
	)
	tableSvc := service.NewTableService(tableRepo, logger)
	if err := tableSvc.Load(ctx); err != nil {
		return fmt.Errorf("список таблиц: %w", err)
	}

	// 8. Handlers
	dbChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(dbChecker, dbChecker, openapi.Spec(), logger)
	if cfg.AuthEnabled() {
		healthHandler.WithIdPChecker(middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, jwksReadyTimeout))
	}
	apiHandler := handlers.NewAPIHandler(healthHandler, projectSvc, leaderboardSvc, tableSvc, logger)

	// 9. Middleware: recovery → [real IP] → metrics → logging → JWT → rate limit
	middlewares := []func(http.Handler) http.Handler{middleware.Recoverer(logger)}
	if cfg.TrustedProxy {
		// Адрес клиента из X-Forwarded-For / X-Real-IP; только за доверенным прокси
		middlewares = append(middlewares, chimiddleware.RealIP)
		logger.Info("Адрес клиента берётся из заголовков прокси")
	}
	middlewares = append(middlewares,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)
	if cfg.AuthEnabled() {
		jwtAuth, err := middleware.NewJWTAuth(cfg.JWTJWKSURL, cfg.JWTIssuer, cfg.JWTLeeway, logger)
		if err != nil {
			return fmt.Errorf("JWT middleware: %w", err)
		}
		middlewares = append(middlewares, server.SkipPrefixes(jwtAuth.Middleware(), publicPaths...))
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		logger.Warn("CHAI_JWT_JWKS_URL не задан, API доступен без аутентификации")
	}
	if cfg.RateLimitEnabled() {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
		defer limiter.Stop()
		middlewares = append(middlewares, server.SkipPrefixes(limiter.Middleware(), publicPaths...))
		logger.Info("Rate limit включён",
			slog.Float64("rps", cfg.RateLimitRPS),
			slog.Int("burst", cfg.RateLimitBurst),
		)
	}

	// 10. topologymetrics — мониторинг зависимостей (PostgreSQL + IdP)
	dephealthSvc, err := service.NewDephealthService(service.DephealthParams{
		ServiceID:     "chai-api",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PgConnURL:     cfg.DatabaseURL,
		JWKSURL:       cfg.JWTJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
		IsEntry:       cfg.DephealthIsEntry,
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
	} else {
		defer dephealthSvc.Stop()
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 11. HTTP-сервер (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, apiHandler, middlewares...)
	if err := srv.Run(ctx); err != nil {
		return err
	}

	logger.Info("chai-api остановлен")
	return nil
}
