// leaderboard.go — сборка рейтинга проектов поверх кэша проектов.
// Свежие записи берутся из ProjectCache, недостающие дозапрашиваются
// одним пакетным запросом, затем результат сортируется по teaRank и обрезается.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/chai-api/internal/projector"
)

// MaxResultLimit — верхняя граница limit и количества идентификаторов в запросе.
const MaxResultLimit = 1000

// defaultRank — ранг проекта без teaRank при сортировке.
const defaultRank = "0"

// coalescedFetchTimeout ограничивает общий дозапрос, переживший отмену
// запроса-инициатора.
const coalescedFetchTimeout = 30 * time.Second

var (
	// ErrNoIdentifiers — пустой список идентификаторов проектов.
	ErrNoIdentifiers = errors.New("no project identifiers provided")
	// ErrTooManyIdentifiers — идентификаторов больше MaxResultLimit.
	ErrTooManyIdentifiers = fmt.Errorf("too many project identifiers (max %d)", MaxResultLimit)
)

// Prometheus-метрики leaderboard.
var (
	leaderboardRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chai_leaderboard_requests_total",
		Help: "Количество запросов leaderboard по режимам (batch, top).",
	}, []string{"mode"})
	leaderboardFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chai_leaderboard_fetch_duration_seconds",
		Help:    "Длительность обращений к источнику проектов.",
		Buckets: prometheus.DefBuckets,
	})
)

// ProjectFetcher — источник строк проектов.
// FetchProjects вызывается не более одного раза на запрос Batch.
type ProjectFetcher interface {
	// FetchProjects возвращает строки проектов по идентификаторам, не более limit.
	FetchProjects(ctx context.Context, ids []uuid.UUID, limit int) ([]projector.Row, error)
	// FetchTopProjects возвращает лучшие проекты последнего расчёта рейтинга.
	FetchTopProjects(ctx context.Context, limit int) ([]projector.Row, error)
}

// ClampLimit приводит limit к диапазону [1, MaxResultLimit].
func ClampLimit(limit int) int {
	return min(max(limit, 1), MaxResultLimit)
}

// LeaderboardService — сборщик рейтинга.
type LeaderboardService struct {
	fetcher  ProjectFetcher
	cache    *ProjectCache
	coalesce bool
	group    singleflight.Group
	logger   *slog.Logger
}

// NewLeaderboardService создаёт сборщик. cache разделяется между всеми запросами.
// coalesce=true объединяет одновременные дозапросы с одинаковым набором ключей.
func NewLeaderboardService(
	fetcher ProjectFetcher,
	cache *ProjectCache,
	coalesce bool,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		fetcher:  fetcher,
		cache:    cache,
		coalesce: coalesce,
		logger:   logger.With(slog.String("component", "leaderboard_service")),
	}
}

// Batch возвращает проекты ids, отсортированные по убыванию teaRank, не более limit.
// Документы в ответе — независимые копии.
func (s *LeaderboardService) Batch(ctx context.Context, ids []uuid.UUID, limit int) ([]*projector.Document, error) {
	if len(ids) == 0 {
		return nil, ErrNoIdentifiers
	}
	if len(ids) > MaxResultLimit {
		return nil, ErrTooManyIdentifiers
	}
	leaderboardRequestsTotal.WithLabelValues("batch").Inc()
	limit = ClampLimit(limit)

	seen := make(map[uuid.UUID]struct{}, len(ids))
	merged := make([]*projector.Document, 0, len(ids))
	var missing []uuid.UUID

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if doc, fresh, ok := s.cache.Get(id); ok && fresh {
			merged = append(merged, doc)
			continue
		}
		missing = append(missing, id)
	}

	cachedCount := len(merged)
	if len(missing) > 0 {
		fetched, err := s.fetchMissing(ctx, missing, limit)
		if err != nil {
			return nil, err
		}
		merged = append(merged, fetched...)
	}

	sortByRank(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}

	s.logger.Debug("Leaderboard собран",
		slog.Int("requested", len(seen)),
		slog.Int("cached", cachedCount),
		slog.Int("fetched", len(missing)),
		slog.Int("returned", len(merged)),
	)

	out := make([]*projector.Document, len(merged))
	for i, doc := range merged {
		out[i] = doc.Clone()
	}
	return out, nil
}

// Top возвращает лучшие проекты последнего расчёта рейтинга, минуя кэш.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]*projector.Document, error) {
	leaderboardRequestsTotal.WithLabelValues("top").Inc()

	start := time.Now()
	rows, err := s.fetcher.FetchTopProjects(ctx, ClampLimit(limit))
	leaderboardFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("получение лучших проектов: %w", err)
	}
	return projector.Project(rows), nil
}

// fetchMissing делает один дозапрос и заполняет кэш. При ошибке кэш не меняется.
func (s *LeaderboardService) fetchMissing(ctx context.Context, missing []uuid.UUID, limit int) ([]*projector.Document, error) {
	if !s.coalesce {
		return s.fetchAndStore(ctx, missing, limit)
	}

	// Общий дозапрос не зависит от отмены запроса, который его начал:
	// каждый участник ждёт результат только в пределах своего ctx.
	ch := s.group.DoChan(coalesceKey(missing, limit), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), coalescedFetchTimeout)
		defer cancel()
		return s.fetchAndStore(fetchCtx, missing, limit)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("ожидание общего дозапроса: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("Дозапрос объединён с параллельным", slog.Int("missing", len(missing)))
		}
		return res.Val.([]*projector.Document), nil
	}
}

func (s *LeaderboardService) fetchAndStore(ctx context.Context, missing []uuid.UUID, limit int) ([]*projector.Document, error) {
	start := time.Now()
	rows, err := s.fetcher.FetchProjects(ctx, missing, limit)
	leaderboardFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("получение проектов: %w", err)
	}

	docs := projector.Project(rows)
	for _, doc := range docs {
		raw, _ := doc.String("projectId")
		id, err := uuid.Parse(raw)
		if err != nil {
			s.logger.Info("Проект без корректного projectId не кэширован",
				slog.String("project_id", raw),
			)
			continue
		}
		s.cache.Insert(id, doc)
	}
	return docs, nil
}

// sortByRank — стабильная сортировка по убыванию teaRank как строки.
func sortByRank(docs []*projector.Document) {
	slices.SortStableFunc(docs, func(a, b *projector.Document) int {
		return strings.Compare(rankOf(b), rankOf(a))
	})
}

func rankOf(doc *projector.Document) string {
	if r, ok := doc.String("teaRank"); ok {
		return r
	}
	return defaultRank
}

// coalesceKey — ключ singleflight: отсортированный набор ключей и limit.
func coalesceKey(ids []uuid.UUID, limit int) string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	slices.Sort(keys)
	return strings.Join(keys, ",") + "|" + strconv.Itoa(limit)
}
