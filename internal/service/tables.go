// tables.go — просмотр таблиц схемы public: список, страницы строк, строка по id.
// Список таблиц читается один раз при старте, имя из запроса
// сверяется с ним до построения SQL.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/bigkaa/chai-api/internal/projector"
	"github.com/bigkaa/chai-api/internal/repository"
)

// Параметры пагинации.
const (
	DefaultPageLimit = 200
	MaxPageLimit     = 1000
)

// ErrUnknownTable — таблицы нет в списке, загруженном при старте.
var ErrUnknownTable = errors.New("table not found")

// Pagination — вычисленные параметры страницы.
type Pagination struct {
	Page       int64
	Limit      int64
	Offset     int64
	TotalPages int64
}

// NewPagination вычисляет страницу по запрошенным page/limit (nil — по умолчанию).
// limit приводится к [1, MaxPageLimit], page — к [1, TotalPages];
// при пустом наборе TotalPages = 0, page = 1.
func NewPagination(page, limit *int, total int64) Pagination {
	l := int64(DefaultPageLimit)
	if limit != nil {
		l = int64(*limit)
	}
	l = min(max(l, 1), MaxPageLimit)

	totalPages := (total + l - 1) / l

	p := int64(1)
	if page != nil {
		p = int64(*page)
	}
	p = min(p, totalPages)
	p = max(p, 1)

	return Pagination{
		Page:       p,
		Limit:      l,
		Offset:     (p - 1) * l,
		TotalPages: totalPages,
	}
}

// TableList — страница списка таблиц.
type TableList struct {
	TotalCount int64
	Pagination
	Tables []string
}

// TablePage — страница строк таблицы.
type TablePage struct {
	Table      string
	TotalCount int64
	Pagination
	Columns []string
	Data    []*projector.Document
}

// TableService — чтение таблиц по списку, известному на момент старта.
type TableService struct {
	repo   repository.TableRepository
	tables []string
	logger *slog.Logger
}

// NewTableService создаёт сервис. Список таблиц пуст до вызова Load.
func NewTableService(repo repository.TableRepository, logger *slog.Logger) *TableService {
	return &TableService{
		repo:   repo,
		tables: []string{},
		logger: logger.With(slog.String("component", "table_service")),
	}
}

// Load читает список таблиц из базы. Вызывается один раз до старта HTTP-сервера.
func (s *TableService) Load(ctx context.Context) error {
	tables, err := s.repo.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("загрузка списка таблиц: %w", err)
	}
	if tables == nil {
		tables = []string{}
	}
	// Порядок сортировки СУБД зависит от collation, поиск ведётся по байтовому.
	slices.Sort(tables)
	s.tables = tables
	s.logger.Info("Список таблиц загружен", slog.Int("count", len(tables)))
	return nil
}

// Tables возвращает копию списка таблиц.
func (s *TableService) Tables() []string {
	return slices.Clone(s.tables)
}

// List возвращает страницу списка таблиц.
func (s *TableService) List(page, limit *int) TableList {
	total := int64(len(s.tables))
	p := NewPagination(page, limit, total)

	start := min(p.Offset, total)
	end := min(start+p.Limit, total)

	return TableList{
		TotalCount: total,
		Pagination: p,
		Tables:     append([]string{}, s.tables[start:end]...),
	}
}

// Rows возвращает страницу строк таблицы.
func (s *TableService) Rows(ctx context.Context, table string, page, limit *int) (*TablePage, error) {
	if !s.known(table) {
		return nil, ErrUnknownTable
	}

	total, err := s.repo.CountRows(ctx, table)
	if err != nil {
		return nil, s.mapError(err)
	}

	p := NewPagination(page, limit, total)
	rows, err := s.repo.ListRows(ctx, table, int(p.Limit), int(p.Offset))
	if err != nil {
		return nil, s.mapError(err)
	}

	return &TablePage{
		Table:      table,
		TotalCount: total,
		Pagination: p,
		Columns:    projector.Columns(rows),
		Data:       projector.Project(rows),
	}, nil
}

// Row возвращает строку таблицы по столбцу id.
func (s *TableService) Row(ctx context.Context, table string, id uuid.UUID) (*projector.Document, error) {
	if !s.known(table) {
		return nil, ErrUnknownTable
	}

	row, err := s.repo.GetRow(ctx, table, id)
	if err != nil {
		return nil, s.mapError(err)
	}
	return projector.ProjectRow(row), nil
}

func (s *TableService) known(table string) bool {
	_, found := slices.BinarySearch(s.tables, table)
	return found
}

func (s *TableService) mapError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("чтение таблицы: %w", err)
}
