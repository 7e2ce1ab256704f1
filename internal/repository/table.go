package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/chai-api/internal/projector"
)

// migrationsTable — служебная таблица golang-migrate, не публикуется.
const migrationsTable = "schema_migrations"

// TableRepository — чтение произвольных таблиц схемы public.
// Имя таблицы должно быть заранее проверено по списку ListTables.
type TableRepository interface {
	// ListTables возвращает имена таблиц схемы public по алфавиту.
	ListTables(ctx context.Context) ([]string, error)
	// CountRows возвращает количество строк таблицы.
	CountRows(ctx context.Context, table string) (int64, error)
	// ListRows возвращает страницу строк таблицы.
	ListRows(ctx context.Context, table string, limit, offset int) ([]projector.Row, error)
	// GetRow возвращает строку по столбцу id или ErrNotFound.
	GetRow(ctx context.Context, table string, id uuid.UUID) (projector.Row, error)
}

// tableRepo — реализация TableRepository через pgx.
type tableRepo struct {
	db DBTX
}

// NewTableRepository создаёт репозиторий таблиц.
func NewTableRepository(db DBTX) TableRepository {
	return &tableRepo{db: db}
}

func (r *tableRepo) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name <> $1
		ORDER BY table_name`

	rows, err := r.db.Query(ctx, query, migrationsTable)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка таблиц: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка таблиц: %w", err)
	}
	if tables == nil {
		tables = []string{}
	}
	return tables, nil
}

func (r *tableRepo) CountRows(ctx context.Context, table string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteTable(table))

	var total int64
	if err := r.db.QueryRow(ctx, query).Scan(&total); err != nil {
		if isUndefinedObject(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("ошибка подсчёта строк %s: %w", table, err)
	}
	return total, nil
}

func (r *tableRepo) ListRows(ctx context.Context, table string, limit, offset int) ([]projector.Row, error) {
	query := fmt.Sprintf(`SELECT * FROM %s LIMIT $1 OFFSET $2`, quoteTable(table))

	result, err := r.collect(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения строк %s: %w", table, err)
	}
	return result, nil
}

// GetRow ищет строку по столбцу id. Отсутствие таблицы или столбца id — ErrNotFound.
func (r *tableRepo) GetRow(ctx context.Context, table string, id uuid.UUID) (projector.Row, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, quoteTable(table))

	result, err := r.collect(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения строки %s: %w", table, err)
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result[0], nil
}

// collect выполняет запрос и читает строки. Отсутствие таблицы или
// столбца сводится к ErrNotFound.
func (r *tableRepo) collect(ctx context.Context, sql string, args ...any) ([]projector.Row, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err == nil {
		var result []projector.Row
		if result, err = collectRows(rows); err == nil {
			return result, nil
		}
	}
	if isUndefinedObject(err) {
		return nil, ErrNotFound
	}
	return nil, err
}

// quoteTable экранирует имя таблицы как идентификатор в схеме public.
func quoteTable(table string) string {
	return pgx.Identifier{"public", table}.Sanitize()
}
