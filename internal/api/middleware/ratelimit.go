// ratelimit.go — ограничение частоты запросов по IP клиента.
// Используется на регистрации и входе.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	apierrors "github.com/sourabh1428/query-editor/internal/api/errors"
)

// Параметры хранения лимитеров.
const (
	limiterMaxClients = 10000
	limiterIdleTTL    = 10 * time.Minute
)

// RateLimiter — token bucket на каждый IP. Лимитеры неактивных
// клиентов вытесняются из LRU по TTL.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex // get-or-create лимитера
	limiters *expirable.LRU[string, *rate.Limiter]
	logger   *slog.Logger
}

// NewRateLimiter создаёт лимитер: perSecond запросов в секунду, burst — запас.
func NewRateLimiter(perSecond float64, burst int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: expirable.NewLRU[string, *rate.Limiter](limiterMaxClients, nil, limiterIdleTTL),
		logger:   logger.With(slog.String("component", "rate_limiter")),
	}
}

// Middleware возвращает HTTP middleware, отвечающий 429 при превышении лимита.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.Allow(ip) {
				rl.logger.Warn("Превышен лимит запросов",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", "1")
				apierrors.TooManyRequests(w, "Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Allow расходует один токен клиента.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	lim, ok := rl.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters.Add(key, lim)
	}
	return lim
}

// clientIP — хост из RemoteAddr (без порта).
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
