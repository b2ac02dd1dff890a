package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/209works/api-platform/internal/service"
	"github.com/gin-gonic/gin"
)

// statusFor maps validator error codes to HTTP statuses.
func statusFor(code string) int {
	switch code {
	case service.ErrCodeInvalidKey, service.ErrCodeInactiveKey, service.ErrCodeExpiredKey:
		return http.StatusUnauthorized
	case service.ErrCodeInsufficientScope:
		return http.StatusForbidden
	case service.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// APIKeyAuth runs the full validation pipeline on every request carrying
// an X-API-Key header and rejects any that fail it. Requests without a
// key are rejected outright: the public API is key-only.
func APIKeyAuth(apiKeyService *service.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := strings.TrimSpace(c.GetHeader("X-API-Key"))

		if rawKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_key",
				"message": "X-API-Key header required",
			})
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		result := apiKeyService.Validate(ctx, rawKey, c.Request.URL.Path, c.Request.Method)

		if result.RateLimit != nil {
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", result.RateLimit.Limit))
			c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.RateLimit.Remaining))
			if !result.RateLimit.ResetTime.IsZero() {
				c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", result.RateLimit.ResetTime.Unix()))
			}
		}

		if !result.Valid {
			status := statusFor(result.ErrorCode)

			if status == http.StatusTooManyRequests && result.RateLimit != nil {
				c.Header("Retry-After", fmt.Sprintf("%d", retryAfterSeconds(result)))
			}

			c.JSON(status, gin.H{
				"error":   result.ErrorCode,
				"message": result.Message,
			})
			c.Abort()
			return
		}

		c.Set("api_key", result.Key)
		c.Set("api_key_id", result.Key.ID)
		c.Set("api_key_tier", result.Key.Tier)

		c.Next()
	}
}

func retryAfterSeconds(result service.ValidationResult) int {
	secs := int(time.Until(result.RateLimit.ResetTime).Seconds())
	if secs < 0 {
		secs = 0
	}
	return secs
}
