package middleware

import (
	"time"

	"github.com/209works/api-platform/internal/models"
	"github.com/209works/api-platform/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UsageRecorder captures one telemetry fact per authenticated request
// after the handler chain finishes. Best-effort: the recorder drops on
// backpressure rather than slowing the response.
func UsageRecorder(recorder *service.UsageRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		keyIDValue, exists := c.Get("api_key_id")
		if !exists {
			return
		}
		keyID, ok := keyIDValue.(uuid.UUID)
		if !ok {
			return
		}

		recorder.Record(&models.APIUsage{
			Timestamp:      start.UTC(),
			APIKeyID:       keyID,
			Endpoint:       c.Request.URL.Path,
			Method:         c.Request.Method,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
			RequestBytes:   c.Request.ContentLength,
			ResponseBytes:  int64(c.Writer.Size()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
			Region:         c.GetHeader("X-Region"),
		})
	}
}
