package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// CacheControl sets the Cache-Control header on responses. Availability
// snapshots are advisory, so clients may reuse them for maxAge. A zero maxAge
// disables caching.
func CacheControl(maxAge time.Duration) gin.HandlerFunc {
	value := "no-store"
	if secs := int(maxAge / time.Second); secs > 0 {
		value = fmt.Sprintf("private, max-age=%d", secs)
	}
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}
