package middleware

import (
	"net/http"
	"phishsim/pkg/httputil"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const visitorTTL = 10 * time.Minute

type visitor struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP. Requests over the limit are still served,
// marked with httputil.WithThrottled so handlers can skip their side effects.
type RateLimiter struct {
	visitors   sync.Map
	rate       rate.Limit
	burst      int
	trustProxy bool
	done       chan struct{}
	once       sync.Once
}

// NewRateLimiter keys buckets on the connection address unless trustProxy is set,
// in which case X-Real-Ip is used when present.
func NewRateLimiter(perSecond float64, burst int, trustProxy bool) *RateLimiter {
	rl := &RateLimiter{
		rate:       rate.Limit(perSecond),
		burst:      burst,
		trustProxy: trustProxy,
		done:       make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Allow(ip string) bool {
	v, _ := rl.visitors.LoadOrStore(ip, &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)})
	vis := v.(*visitor)

	vis.mu.Lock()
	vis.lastSeen = time.Now()
	vis.mu.Unlock()

	return vis.limiter.Allow()
}

func (rl *RateLimiter) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httputil.PeerIP(r)
		if rl.trustProxy {
			ip = httputil.ClientIP(r)
		}
		if !rl.Allow(ip) {
			log.Ctx(r.Context()).Warn().Msgf("rate limited, ip: %s, path: %s", ip, r.URL.Path)
			r = r.WithContext(httputil.WithThrottled(r.Context()))
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) Stop() {
	rl.once.Do(func() {
		close(rl.done)
	})
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(visitorTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.visitors.Range(func(key, value any) bool {
				v := value.(*visitor)
				v.mu.Lock()
				stale := time.Since(v.lastSeen) > visitorTTL
				v.mu.Unlock()
				if stale {
					rl.visitors.Delete(key)
				}
				return true
			})
		case <-rl.done:
			return
		}
	}
}
