package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HandleRateLimitStatus reports the analysis budget that applies to the
// requesting IP without consuming any of it
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		backend := "memory"
		if rl.redisClient.IsEnabled() {
			backend = "redis"
		}

		c.JSON(http.StatusOK, gin.H{
			"ip": c.ClientIP(),
			"limits": gin.H{
				"analyze_per_minute": gin.H{
					"limit":  rl.config.IPLimitPerMin,
					"period": "1 minute",
				},
			},
			"backend":   backend,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}
