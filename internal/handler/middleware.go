package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	visitorCookie     = "nf_visitor"
	visitorContextKey = "__visitor_id"
	visitorMaxAge     = 365 * 24 * 60 * 60
)

// VisitorID 为每个浏览器分配匿名访客 id，用于搜索会话与限流
func VisitorID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(visitorCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(visitorCookie, id, visitorMaxAge, "/", "", false, true)
		}
		c.Set(visitorContextKey, id)
		c.Next()
	}
}

func visitorID(c *gin.Context) string {
	if id := c.GetString(visitorContextKey); id != "" {
		return id
	}
	return c.ClientIP()
}

// RateLimiter 按访客限制请求频率。
type RateLimiter struct {
	perMinute int
	burst     int

	mu       sync.Mutex
	limiters map[string]*visitorLimiter
}

type visitorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter 每个访客每分钟允许 perMinute 次请求，perMinute <= 0 时不限流。
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		perMinute: perMinute,
		burst:     burst,
		limiters:  make(map[string]*visitorLimiter),
	}
}

func (r *RateLimiter) allow(key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.limiters[key]
	if !ok {
		entry = &visitorLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.perMinute)), r.burst),
		}
		r.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Sweep 删除空闲超过 idle 的访客限流器。
func (r *RateLimiter) Sweep(now time.Time, idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, entry := range r.limiters {
		if now.Sub(entry.lastSeen) > idle {
			delete(r.limiters, key)
			removed++
		}
	}
	return removed
}

// Middleware 返回限流中间件，超出频率时返回 429
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.perMinute <= 0 {
			c.Next()
			return
		}
		if !r.allow(visitorID(c), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "提交过于频繁，请稍后再试"})
			return
		}
		c.Next()
	}
}
