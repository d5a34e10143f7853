package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Timeout derives a deadline-bound context for each request so no storage
// unit of work can hang past the configured bound. A non-positive duration
// disables the bound.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
