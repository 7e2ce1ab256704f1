package database

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/chai-api/internal/config"
)

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "postgres",
			in:   "postgres://chai:secret@db:5432/chai?sslmode=disable",
			want: "pgx5://chai:secret@db:5432/chai?sslmode=disable",
		},
		{
			name: "postgresql",
			in:   "postgresql://chai@localhost/chai",
			want: "pgx5://chai@localhost/chai",
		},
		{
			name: "уже pgx5",
			in:   "pgx5://chai@localhost/chai",
			want: "pgx5://chai@localhost/chai",
		},
		{name: "mysql", in: "mysql://root@localhost/chai", wantErr: true},
		{name: "мусор", in: "://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := migrationURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("migrationURL(%q) = %q, ожидалась ошибка", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("migrationURL(%q) вернул ошибку: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("migrationURL(%q) = %q, ожидали %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMigrateDown_InvalidSteps(t *testing.T) {
	cfg := &config.Config{DatabaseURL: "postgres://chai@localhost/chai"}
	if err := MigrateDown(cfg, 0, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatal("MigrateDown(0) должен вернуть ошибку")
	}
}

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("chai_test"),
		postgres.WithUsername("chai"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Не удалось получить строку подключения: %v", err)
	}
	t.Setenv("DATABASE_URL", dsn)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestMigrate проверяет применение и откат миграций.
func TestMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	// Повторное применение — ErrNoChange, не ошибка
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	tables := []string{
		"canons",
		"canon_packages",
		"packages",
		"package_managers",
		"sources",
		"legacy_dependencies",
		"tea_ranks",
		"tea_rank_runs",
		"urls",
		"package_urls",
	}

	tableExists := func(table string) bool {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("Ошибка проверки таблицы %s: %v", table, err)
		}
		return exists
	}

	for _, table := range tables {
		if !tableExists(table) {
			t.Errorf("Таблица %s не создана", table)
		}
	}

	if err := MigrateDown(cfg, 1, logger); err != nil {
		t.Fatalf("MigrateDown() вернул ошибку: %v", err)
	}
	if tableExists("canons") {
		t.Error("после отката таблица canons должна быть удалена")
	}
}

// TestReadinessChecker проверяет ReadinessChecker и Heartbeat.
func TestReadinessChecker(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	checker := NewReadinessChecker(pool)

	status, msg := checker.CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() status = %q, message = %q; ожидали status = %q",
			status, msg, "ok")
	}
	if err := checker.Heartbeat(ctx); err != nil {
		t.Errorf("Heartbeat() вернул ошибку: %v", err)
	}
}
