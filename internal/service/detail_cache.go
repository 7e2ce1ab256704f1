// Пакет service — бизнес-логика chai-api.
// DetailCache — LRU-кэш карточек проектов (GET /project/{id}) с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/chai-api/internal/projector"
)

// Prometheus-метрики кэша карточек.
var (
	detailCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chai_detail_cache_hits_total",
		Help: "Количество попаданий в LRU-кэш карточек проектов.",
	})
	detailCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chai_detail_cache_misses_total",
		Help: "Количество промахов LRU-кэша карточек проектов.",
	})
)

// DetailCache — ограниченный по размеру кэш карточек проектов.
// В отличие от ProjectCache вытесняет записи по LRU и по истечении TTL.
type DetailCache struct {
	cache *expirable.LRU[uuid.UUID, *projector.Document]
}

// NewDetailCache создаёт кэш на maxSize записей со временем жизни ttl.
func NewDetailCache(maxSize int, ttl time.Duration) *DetailCache {
	return &DetailCache{
		cache: expirable.NewLRU[uuid.UUID, *projector.Document](maxSize, nil, ttl),
	}
}

// Get возвращает карточку проекта; (nil, false) при промахе.
func (c *DetailCache) Get(id uuid.UUID) (*projector.Document, bool) {
	doc, ok := c.cache.Get(id)
	if ok {
		detailCacheHitsTotal.Inc()
		return doc, true
	}
	detailCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет карточку.
func (c *DetailCache) Set(id uuid.UUID, doc *projector.Document) {
	c.cache.Add(id, doc)
}

// Len — текущее количество записей.
func (c *DetailCache) Len() int {
	return c.cache.Len()
}
