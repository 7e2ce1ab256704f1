// Пакет config — загрузка и валидация конфигурации chai-api
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации chai-api.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	// URL подключения (DATABASE_URL, без префикса — общий контракт CHAI)
	DatabaseURL string
	// Максимальное число соединений пула
	DBMaxConns int32
	// Применять встроенные миграции при старте
	DBMigrate bool

	// --- Кэши ---

	// Размер LRU-кэша карточек проектов
	DetailCacheSize int
	// TTL записи кэша карточек
	DetailCacheTTL time.Duration
	// Объединять одновременные дозапросы leaderboard (singleflight)
	LeaderboardCoalesce bool

	// --- Rate limit ---

	// Запросов в секунду на клиента; 0 — ограничение выключено
	RateLimitRPS float64
	// Размер burst
	RateLimitBurst int
	// Доверять X-Forwarded-For / X-Real-IP (сервис за reverse proxy).
	// Без прокси заголовки подделываются клиентом и обходят лимит.
	TrustedProxy bool

	// --- JWT ---

	// URL JWKS; пустой — аутентификация выключена
	JWTJWKSURL string
	// Ожидаемый issuer (пустой — не проверяется)
	JWTIssuer string
	// Допустимое отклонение часов
	JWTLeeway time.Duration

	// --- Dephealth ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
	// Лейбл isentry=yes для всех зависимостей
	DephealthIsEntry bool
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны. Ошибка содержит имя переменной.
//
//nolint:cyclop,funlen // линейный разбор переменных
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("CHAI_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("CHAI_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CHAI_PORT: порт %d вне диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CHAI_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CHAI_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("CHAI_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CHAI_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("CHAI_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CHAI_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("CHAI_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CHAI_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("CHAI_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CHAI_HTTP_IDLE_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout, err = getEnvDuration("CHAI_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CHAI_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DatabaseURL, err = getEnvRequired("DATABASE_URL")
	if err != nil {
		return nil, err
	}

	maxConns, err := getEnvPositiveInt("CHAI_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("CHAI_DB_MAX_CONNS: %w", err)
	}
	cfg.DBMaxConns = int32(min(maxConns, 1<<16)) //nolint:gosec // ограничено сверху

	cfg.DBMigrate, err = getEnvBool("CHAI_DB_MIGRATE", false)
	if err != nil {
		return nil, fmt.Errorf("CHAI_DB_MIGRATE: %w", err)
	}

	// --- Кэши ---

	cfg.DetailCacheSize, err = getEnvPositiveInt("CHAI_DETAIL_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("CHAI_DETAIL_CACHE_SIZE: %w", err)
	}
	cfg.DetailCacheTTL, err = getEnvDurationFallback("CHAI_DETAIL_CACHE_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CHAI_DETAIL_CACHE_TTL: %w", err)
	}
	cfg.LeaderboardCoalesce, err = getEnvBool("CHAI_LEADERBOARD_COALESCE", false)
	if err != nil {
		return nil, fmt.Errorf("CHAI_LEADERBOARD_COALESCE: %w", err)
	}

	// --- Rate limit ---

	cfg.RateLimitRPS, err = getEnvFloat("CHAI_RATE_LIMIT_RPS", 0)
	if err != nil {
		return nil, fmt.Errorf("CHAI_RATE_LIMIT_RPS: %w", err)
	}
	if cfg.RateLimitRPS < 0 {
		return nil, fmt.Errorf("CHAI_RATE_LIMIT_RPS: значение должно быть >= 0")
	}
	cfg.RateLimitBurst, err = getEnvPositiveInt("CHAI_RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, fmt.Errorf("CHAI_RATE_LIMIT_BURST: %w", err)
	}
	cfg.TrustedProxy, err = getEnvBool("CHAI_TRUSTED_PROXY", false)
	if err != nil {
		return nil, fmt.Errorf("CHAI_TRUSTED_PROXY: %w", err)
	}

	// --- JWT ---

	cfg.JWTJWKSURL = os.Getenv("CHAI_JWT_JWKS_URL")
	cfg.JWTIssuer = os.Getenv("CHAI_JWT_ISSUER")
	cfg.JWTLeeway, err = getEnvDuration("CHAI_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CHAI_JWT_LEEWAY: %w", err)
	}
	if cfg.JWTLeeway < 0 {
		return nil, fmt.Errorf("CHAI_JWT_LEEWAY: значение должно быть >= 0")
	}

	// --- Dephealth ---

	cfg.DephealthGroup = getEnvDefault("CHAI_DEPHEALTH_GROUP", "chai")
	cfg.DephealthCheckInterval, err = getEnvDurationFallback("CHAI_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CHAI_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("CHAI_DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("CHAI_DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// AuthEnabled — включена ли JWT-аутентификация.
func (c *Config) AuthEnabled() bool {
	return c.JWTJWKSURL != ""
}

// RateLimitEnabled — включено ли ограничение частоты запросов.
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimitRPS > 0
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvPositiveInt — как getEnvInt, но значение должно быть > 0.
func getEnvPositiveInt(key string, defaultVal int) (int, error) {
	n, err := getEnvInt(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvDurationFallback возвращает time.Duration из переменной окружения.
// Если переменная не задана, используется fallbackVal.
// Если задана — парсится и валидируется (> 0).
func getEnvDurationFallback(key string, fallbackVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, fallbackVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
