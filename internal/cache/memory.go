package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sourabh1428/query-editor/internal/domain/model"
)

// MemoryCache — in-memory кэш результатов на expirable LRU.
// Хранит сериализованные строки, поэтому вызывающие не делят изменяемые срезы.
// Каждый экземпляр сервиса имеет собственный кэш.
type MemoryCache struct {
	lru    *expirable.LRU[string, []byte]
	logger *slog.Logger
}

// NewMemoryCache создаёт LRU-кэш на maxEntries записей с TTL.
func NewMemoryCache(maxEntries int, ttl time.Duration, logger *slog.Logger) *MemoryCache {
	return &MemoryCache{
		lru:    expirable.NewLRU[string, []byte](maxEntries, nil, ttl),
		logger: logger.With(slog.String("component", "cache"), slog.String("backend", "memory")),
	}
}

// Get возвращает строки из кэша или промах.
func (c *MemoryCache) Get(_ context.Context, userID int64, query string) (*model.ResultSet, bool) {
	data, ok := c.lru.Get(Key(userID, query))
	if !ok {
		cacheMissesTotal.WithLabelValues(c.Backend()).Inc()
		return nil, false
	}
	rs, err := decode(data)
	if err != nil {
		cacheErrorsTotal.WithLabelValues(c.Backend(), "get").Inc()
		c.logger.Warn("Повреждённая запись кэша", slog.String("error", err.Error()))
		return nil, false
	}
	cacheHitsTotal.WithLabelValues(c.Backend()).Inc()
	return rs, true
}

// Set добавляет или перезаписывает запись.
func (c *MemoryCache) Set(_ context.Context, userID int64, query string, rs *model.ResultSet) {
	data, err := encode(rs)
	if err != nil {
		cacheErrorsTotal.WithLabelValues(c.Backend(), "set").Inc()
		c.logger.Warn("Результат не помещён в кэш", slog.String("error", err.Error()))
		return
	}
	c.lru.Add(Key(userID, query), data)
}

// Len возвращает количество записей (включая ещё не вычищенные просроченные).
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Backend возвращает "memory".
func (c *MemoryCache) Backend() string { return "memory" }
