package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/sourabh1428/query-editor/internal/domain/model"
)

// Таймауты сетевых операций с Redis.
const (
	redisConnectTimeout = 2 * time.Second
	redisIOTimeout      = time.Second
)

// RedisOptions — параметры подключения к Redis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache — общий для всех экземпляров кэш в Redis (SET key value EX ttl).
type RedisCache struct {
	pool   *redis.Pool
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache создаёт пул соединений Redis и проверяет доступность PING.
// Ошибка PING возвращается, чтобы вызывающий мог откатиться на in-memory кэш.
func NewRedisCache(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*RedisCache, error) {
	pool := &redis.Pool{
		MaxIdle:     10,
		IdleTimeout: 4 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", opts.Addr,
				redis.DialPassword(opts.Password),
				redis.DialDatabase(opts.DB),
				redis.DialConnectTimeout(redisConnectTimeout),
				redis.DialReadTimeout(redisIOTimeout),
				redis.DialWriteTimeout(redisIOTimeout),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	c := newRedisCacheFromPool(pool, opts.TTL, logger)
	if err := c.Ping(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("redis %s недоступен: %w", opts.Addr, err)
	}
	return c, nil
}

// newRedisCacheFromPool оборачивает готовый пул.
func newRedisCacheFromPool(pool *redis.Pool, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		pool:   pool,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "cache"), slog.String("backend", "redis")),
	}
}

// Get читает запись. Ошибки соединения и разбора — промах.
func (c *RedisCache) Get(ctx context.Context, userID int64, query string) (*model.ResultSet, bool) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		c.fail("get", err)
		return nil, false
	}
	defer conn.Close()

	data, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", Key(userID, query)))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			cacheMissesTotal.WithLabelValues(c.Backend()).Inc()
			return nil, false
		}
		c.fail("get", err)
		return nil, false
	}

	rs, err := decode(data)
	if err != nil {
		c.fail("get", err)
		return nil, false
	}
	cacheHitsTotal.WithLabelValues(c.Backend()).Inc()
	return rs, true
}

// Set записывает строки с TTL. Ошибки только логируются.
func (c *RedisCache) Set(ctx context.Context, userID int64, query string, rs *model.ResultSet) {
	data, err := encode(rs)
	if err != nil {
		c.fail("set", err)
		return
	}

	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		c.fail("set", err)
		return
	}
	defer conn.Close()

	seconds := int64(c.ttl / time.Second)
	if _, err := redis.DoContext(conn, ctx, "SET", Key(userID, query), data, "EX", seconds); err != nil {
		c.fail("set", err)
	}
}

// Ping проверяет соединение с Redis.
func (c *RedisCache) Ping(ctx context.Context) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	reply, err := redis.String(redis.DoContext(conn, ctx, "PING"))
	if err != nil {
		return err
	}
	if reply != "PONG" {
		return fmt.Errorf("неожиданный ответ на PING: %q", reply)
	}
	return nil
}

// CheckReady — проверка для /health/ready.
// Недоступный Redis не ломает запросы, поэтому статус "degraded", а не "fail".
func (c *RedisCache) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		return "degraded", fmt.Sprintf("Redis недоступен, кэш пропускается: %v", err)
	}
	return "ok", "подключение активно"
}

// Close закрывает пул соединений.
func (c *RedisCache) Close() error {
	return c.pool.Close()
}

// Backend возвращает "redis".
func (c *RedisCache) Backend() string { return "redis" }

// fail фиксирует проглоченную ошибку бэкенда.
func (c *RedisCache) fail(op string, err error) {
	cacheErrorsTotal.WithLabelValues(c.Backend(), op).Inc()
	c.logger.Warn("Ошибка кэша Redis проигнорирована",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
