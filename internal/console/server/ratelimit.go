package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/xela07ax/manday-assess/internal/apperr"
	"github.com/xela07ax/manday-assess/internal/infra/auth"
	"golang.org/x/time/rate"
)

// idleLimiterTTL: через сколько простоя лимитер клиента удаляется.
const idleLimiterTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter ограничивает частоту запросов с одного клиентского адреса.
// perSecond <= 0 отключает ограничение.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
	lastGC   time.Time
}

func NewIPRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > idleLimiterTTL {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > idleLimiterTTL {
				delete(l.visitors, key)
			}
		}
		l.lastGC = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware отвечает TooManyRequests, когда клиент исчерпал лимит.
func (l *IPRateLimiter) Middleware(ew auth.ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteHost(r)
			if !l.Allow(ip) {
				w.Header().Set("Retry-After", "1")
				ew.Write(w, r, apperr.New(apperr.KindTooManyRequests, "rate limit exceeded for "+ip))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
