package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/hr-optimizer/internal/services"
	"github.com/jstittsworth/hr-optimizer/pkg/utils"
)

// RateLimit rejects clients that exceed their per-IP token bucket.
func RateLimit(limiter *services.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := limiter.Allow(c.ClientIP())
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			utils.SendTooManyRequests(c, "Too many optimization requests, slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}
