package utils

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Akshdhiwar/simpledocs-archive/internals/apperrors"
)

type RateLimiter struct {
	visitors      map[string]*Visitor
	mu            sync.Mutex
	limit         int
	duration      time.Duration
	blockDuration time.Duration
	log           logrus.FieldLogger
	now           func() time.Time
}

type Visitor struct {
	requests   []time.Time
	blockUntil time.Time
}

// NewRateLimiter allows limit requests per duration and blocks a client
// exceeding it for blockDuration.
func NewRateLimiter(limit int, duration, blockDuration time.Duration, log logrus.FieldLogger) *RateLimiter {
	return &RateLimiter{
		visitors:      make(map[string]*Visitor),
		limit:         limit,
		duration:      duration,
		blockDuration: blockDuration,
		log:           log,
		now:           time.Now,
	}
}

// AllowRequest checks and updates the request allowance for a specific IP
func (rl *RateLimiter) AllowRequest(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	visitor, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &Visitor{requests: []time.Time{now}}
		return true
	}

	if now.Before(visitor.blockUntil) {
		return false
	}

	valid := visitor.requests[:0]
	for _, t := range visitor.requests {
		if now.Sub(t) <= rl.duration {
			valid = append(valid, t)
		}
	}
	visitor.requests = append(valid, now)

	if len(visitor.requests) > rl.limit {
		visitor.blockUntil = now.Add(rl.blockDuration)
		visitor.requests = nil
		rl.log.WithFields(logrus.Fields{
			"ip":          ip,
			"block_until": visitor.blockUntil.Format(time.RFC1123),
		}).Warn("client exceeded the rate limit")
		return false
	}

	return true
}

// Prune forgets clients that are not blocked and sent nothing for idle.
// It returns how many were removed.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for ip, visitor := range rl.visitors {
		if now.Before(visitor.blockUntil) {
			continue
		}
		if n := len(visitor.requests); n > 0 && now.Sub(visitor.requests[n-1]) < idle {
			continue
		}
		delete(rl.visitors, ip)
		removed++
	}
	return removed
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !rl.AllowRequest(ctx.ClientIP()) {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Too many requests. You are temporarily blocked. Please try again later.",
				"code":    apperrors.KindRateLimited.Code(),
			})
			return
		}

		ctx.Next()
	}
}
