// project.go — карточка проекта, пакетное получение и поиск по имени.
// Карточки кэшируются в DetailCache, остальные операции идут в PostgreSQL.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/chai-api/internal/projector"
	"github.com/bigkaa/chai-api/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrNotFound — проект или строка не найдены.
	ErrNotFound = errors.New("not found")
	// ErrEmptySearch — пустая строка поиска.
	ErrEmptySearch = errors.New("search name must not be empty")
)

// Prometheus-метрики поиска.
var (
	projectSearchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chai_project_search_total",
		Help: "Общее количество поисковых запросов по имени проекта.",
	})
	projectSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chai_project_search_duration_seconds",
		Help:    "Длительность поисковых запросов.",
		Buckets: prometheus.DefBuckets,
	})
)

// ProjectService — чтение проектов (канонов).
type ProjectService struct {
	repo   repository.ProjectRepository
	cache  *DetailCache
	logger *slog.Logger
}

// NewProjectService создаёт сервис проектов.
func NewProjectService(
	repo repository.ProjectRepository,
	cache *DetailCache,
	logger *slog.Logger,
) *ProjectService {
	return &ProjectService{
		repo:   repo,
		cache:  cache,
		logger: logger.With(slog.String("component", "project_service")),
	}
}

// Detail возвращает карточку проекта.
// Сначала проверяет LRU-кэш, при промахе — запрос к PostgreSQL, результат кэшируется.
func (s *ProjectService) Detail(ctx context.Context, id uuid.UUID) (*projector.Document, error) {
	if doc, ok := s.cache.Get(id); ok {
		s.logger.Debug("Кэш hit для проекта", slog.String("project_id", id.String()))
		return doc, nil
	}

	row, err := s.repo.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение проекта: %w", err)
	}

	doc := projector.ProjectRow(row)
	s.cache.Set(id, doc)
	return doc, nil
}

// Batch возвращает проекты по списку идентификаторов.
// Отсутствующие в базе идентификаторы пропускаются.
func (s *ProjectService) Batch(ctx context.Context, ids []uuid.UUID) ([]*projector.Document, error) {
	if len(ids) == 0 {
		return nil, ErrNoIdentifiers
	}
	if len(ids) > MaxResultLimit {
		return nil, ErrTooManyIdentifiers
	}

	rows, err := s.repo.ListProjectsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("получение проектов: %w", err)
	}
	return projector.Project(rows), nil
}

// Search ищет проекты по подстроке имени (без учёта регистра),
// короткие имена первыми, не более repository.SearchResultLimit.
func (s *ProjectService) Search(ctx context.Context, name string) ([]*projector.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptySearch
	}

	start := time.Now()
	projectSearchTotal.Inc()

	rows, err := s.repo.SearchProjects(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("поиск проектов: %w", err)
	}

	duration := time.Since(start)
	projectSearchDuration.Observe(duration.Seconds())

	s.logger.Debug("Поиск выполнен",
		slog.String("name", name),
		slog.Int("returned", len(rows)),
		slog.Duration("duration", duration),
	)
	return projector.Project(rows), nil
}
