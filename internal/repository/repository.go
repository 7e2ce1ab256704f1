// Пакет repository — слой доступа к данным PostgreSQL для chai-api.
// Сервис — read-only потребитель графа пакетов CHAI: только SELECT.
// Все запросы — чистый SQL через pgx, без ORM; строки отдаются
// проектору как набор типизированных ячеек.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/chai-api/internal/projector"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
)

// Коды ошибок PostgreSQL, которые означают отсутствие объекта.
const (
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// collectRows читает все строки результата и закрывает rows.
// Тип ячейки определяется по OID столбца; пустой результат — пустой срез.
func collectRows(rows pgx.Rows) ([]projector.Row, error) {
	defer rows.Close()

	result := []projector.Row{}
	var kinds []projector.Kind
	var fields []pgconn.FieldDescription

	for rows.Next() {
		if fields == nil {
			fields = rows.FieldDescriptions()
			kinds = make([]projector.Kind, len(fields))
			for i, fd := range fields {
				kinds[i] = projector.KindFromOID(fd.DataTypeOID)
			}
		}

		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}

		row := make(projector.Row, len(fields))
		for i, fd := range fields {
			var raw any
			if i < len(values) {
				raw = values[i]
			}
			row[i] = projector.Field{
				Name:  fd.Name,
				Value: projector.ColumnValue{Kind: kinds[i], Raw: raw, Null: raw == nil},
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

// isUndefinedObject — ошибка PostgreSQL об отсутствующей таблице или столбце.
func isUndefinedObject(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUndefinedTable || pgErr.Code == pgUndefinedColumn
}
