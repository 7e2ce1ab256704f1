// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// chai-api мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - IdP (JWKS endpoint) — HTTP checker, только если включена JWT-аутентификация (critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthParams — параметры мониторинга зависимостей.
type DephealthParams struct {
	// ServiceID — имя вершины графа текущего приложения (chai-api)
	ServiceID string
	// Group — имя группы в метриках (CHAI_DEPHEALTH_GROUP)
	Group string
	// DB — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
	DB *sql.DB
	// PgConnURL — URL PostgreSQL (для лейблов, не для подключения)
	PgConnURL string
	// JWKSURL — URL JWKS; пустой — IdP не мониторится
	JWKSURL string
	// CheckInterval — интервал проверки (CHAI_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration
	// IsEntry — лейбл isentry=yes для всех зависимостей (CHAI_DEPHEALTH_ISENTRY)
	IsEntry bool
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// PostgreSQL проверяется через существующий *sql.DB (адаптер pgxpool),
// поэтому проверка видит исчерпание пула соединений.
func NewDephealthService(p DephealthParams, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(p, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	p DephealthParams,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(p, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(p DephealthParams, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	pgDepOpts := []dephealth.DependencyOption{
		dephealth.FromURL(p.PgConnURL),
		dephealth.CheckInterval(p.CheckInterval),
		dephealth.Critical(true),
	}
	if p.IsEntry {
		pgDepOpts = append(pgDepOpts, dephealth.WithLabel("isentry", "yes"))
	}

	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(p.DB)), pgDepOpts...),
	)

	if p.JWKSURL != "" {
		target, err := parseHTTPTarget(p.JWKSURL)
		if err != nil {
			return nil, fmt.Errorf("JWKS URL: %w", err)
		}
		idpDepOpts := []dephealth.DependencyOption{
			dephealth.FromURL(target.baseURL),
			dephealth.WithHTTPHealthPath(target.path),
			dephealth.CheckInterval(p.CheckInterval),
			dephealth.Critical(true),
		}
		if target.tls {
			idpDepOpts = append(idpDepOpts, dephealth.WithHTTPTLSSkipVerify(false))
		}
		if p.IsEntry {
			idpDepOpts = append(idpDepOpts, dephealth.WithLabel("isentry", "yes"))
		}
		opts = append(opts, dephealth.HTTP("idp", idpDepOpts...))
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(p.ServiceID, p.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// httpTarget — HTTP-зависимость, разобранная на базовый URL и путь проверки.
type httpTarget struct {
	baseURL string
	path    string
	tls     bool
}

// parseHTTPTarget разделяет URL на scheme://host[:port] и путь.
// Пустой путь заменяется на "/".
func parseHTTPTarget(raw string) (httpTarget, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return httpTarget{}, fmt.Errorf("некорректный URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return httpTarget{}, fmt.Errorf("URL %q: ожидается схема http или https", raw)
	}
	if u.Host == "" {
		return httpTarget{}, fmt.Errorf("URL %q: не указан host", raw)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return httpTarget{
		baseURL: u.Scheme + "://" + u.Host,
		path:    path,
		tls:     u.Scheme == "https",
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
