// project_cache.go — процессный кэш проектов для leaderboard (cache-aside).
// Запись живёт ProjectCacheTTL; свежесть проверяется при чтении,
// просроченные записи не удаляются, а заменяются следующим Insert.
package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/chai-api/internal/projector"
)

// ProjectCacheTTL — время свежести записи кэша проектов.
const ProjectCacheTTL = time.Hour

// projectCacheShards — количество шардов; у каждого свой RWMutex.
const projectCacheShards = 32

// Prometheus-метрики кэша проектов.
var (
	projectCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chai_project_cache_hits_total",
		Help: "Количество свежих попаданий в кэш проектов.",
	})
	projectCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chai_project_cache_misses_total",
		Help: "Количество промахов кэша проектов (ключ отсутствует).",
	})
	projectCacheStaleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chai_project_cache_stale_total",
		Help: "Количество найденных, но просроченных записей кэша проектов.",
	})
	projectCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chai_project_cache_entries",
		Help: "Текущее количество записей в кэше проектов.",
	})
)

// projectCacheEntry — документ и время его создания. Не изменяется после вставки.
type projectCacheEntry struct {
	doc       *projector.Document
	createdAt time.Time
}

type projectCacheShard struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]projectCacheEntry
}

// ProjectCache — потокобезопасное хранилище документов проектов по UUID.
// Размер не ограничен: память растёт с числом запрошенных ключей.
type ProjectCache struct {
	shards [projectCacheShards]*projectCacheShard
	ttl    time.Duration
	now    func() time.Time
}

// ProjectCacheOption — опция конструктора ProjectCache.
type ProjectCacheOption func(*ProjectCache)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) ProjectCacheOption {
	return func(c *ProjectCache) {
		c.now = now
	}
}

// NewProjectCache создаёт пустой кэш с TTL = ProjectCacheTTL.
func NewProjectCache(opts ...ProjectCacheOption) *ProjectCache {
	c := &ProjectCache{
		ttl: ProjectCacheTTL,
		now: time.Now,
	}
	for i := range c.shards {
		c.shards[i] = &projectCacheShard{entries: make(map[uuid.UUID]projectCacheEntry)}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// shardFor выбирает шард по байтам ключа (FNV-1a).
func (c *ProjectCache) shardFor(key uuid.UUID) *projectCacheShard {
	h := uint32(2166136261)
	for _, b := range key {
		h ^= uint32(b)
		h *= 16777619
	}
	return c.shards[h%projectCacheShards]
}

// Get возвращает документ и флаг свежести.
// ok=false — ключа нет; ok=true, fresh=false — запись просрочена и должна быть перезапрошена.
// Возвращаемый документ общий для всех читателей и не должен изменяться.
func (c *ProjectCache) Get(key uuid.UUID) (doc *projector.Document, fresh, ok bool) {
	sh := c.shardFor(key)
	sh.mu.RLock()
	entry, ok := sh.entries[key]
	sh.mu.RUnlock()

	if !ok {
		projectCacheMissesTotal.Inc()
		return nil, false, false
	}

	fresh = c.now().Sub(entry.createdAt) <= c.ttl
	if fresh {
		projectCacheHitsTotal.Inc()
	} else {
		projectCacheStaleTotal.Inc()
	}
	return entry.doc, fresh, true
}

// Insert сохраняет документ с createdAt = now, полностью заменяя прежнюю запись.
func (c *ProjectCache) Insert(key uuid.UUID, doc *projector.Document) {
	sh := c.shardFor(key)
	entry := projectCacheEntry{doc: doc, createdAt: c.now()}

	sh.mu.Lock()
	_, existed := sh.entries[key]
	sh.entries[key] = entry
	sh.mu.Unlock()

	if !existed {
		projectCacheEntries.Inc()
	}
}

// Len возвращает количество записей (включая просроченные).
func (c *ProjectCache) Len() int {
	n := 0
	for _, sh := range c.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}
