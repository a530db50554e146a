package middleware

import (
	"fmt"
	"time"

	"codeduel/internal/gateway/service"
	"codeduel/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

type RateLimitPolicy struct {
	Window time.Duration `yaml:"window"`
	IPMax  int           `yaml:"ipMax"`
}

// RateLimitMiddleware enforces a per-client-IP limit on a route group.
func RateLimitMiddleware(rateService *service.RateLimitService, routeKey string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rateService == nil || policy.IPMax <= 0 {
			c.Next()
			return
		}
		key := fmt.Sprintf("gateway:rate:ip:%s:%s", c.ClientIP(), routeKey)
		if err := rateService.Allow(c.Request.Context(), key, policy.IPMax, policy.Window); err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
