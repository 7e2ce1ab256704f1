// ratelimit.go — ограничение частоты запросов на клиента (token bucket).
// Клиент — subject JWT, если аутентификация включена, иначе IP-адрес.
package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apierrors "github.com/bigkaa/chai-api/internal/api/errors"
)

// Неактивные лимитеры удаляются после clientIdleTTL.
const (
	clientIdleTTL          = 10 * time.Minute
	defaultCleanupInterval = time.Minute
)

// clientLimiter — лимитер клиента и время последнего обращения.
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter — лимитеры по клиентам.
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientLimiter

	logger *slog.Logger
	stopCh chan struct{}
	once   sync.Once
}

// NewRateLimiter создаёт RateLimiter и запускает фоновую очистку.
// Остановка — Stop().
func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		logger:  logger.With(slog.String("component", "rate_limiter")),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop(defaultCleanupInterval)
	return rl
}

// Stop останавливает фоновую очистку. Повторный вызов безопасен.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// Middleware возвращает HTTP middleware ограничения частоты.
// При превышении — 429 с заголовком Retry-After.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientKey(r)
			if !rl.limiter(client).Allow() {
				rl.logger.Warn("Превышен лимит запросов",
					slog.String("client", client),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
				apierrors.TooManyRequests(w, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientCount — число отслеживаемых клиентов.
func (rl *RateLimiter) ClientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) limiter(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if cl, ok := rl.clients[client]; ok {
		cl.lastAccess = now
		return cl.limiter
	}
	cl := &clientLimiter{
		limiter:    rate.NewLimiter(rl.rps, rl.burst),
		lastAccess: now,
	}
	rl.clients[client] = cl
	return cl.limiter
}

// retryAfter — секунд до появления следующего токена (не меньше 1).
func (rl *RateLimiter) retryAfter() int {
	if rl.rps <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(1/float64(rl.rps))))
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup удаляет лимитеры клиентов, неактивных дольше clientIdleTTL.
func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for client, cl := range rl.clients {
		if now.Sub(cl.lastAccess) > clientIdleTTL {
			delete(rl.clients, client)
		}
	}
}

// clientKey — subject токена или IP из RemoteAddr.
func clientKey(r *http.Request) string {
	if claims := ClaimsFromContext(r.Context()); claims != nil {
		return "sub:" + claims.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
