package server

import (
	"time"

	"bikeshop-auctions/services/auction/handler"
	"bikeshop-auctions/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	})
}

// IdentityMiddleware extracts the caller identity from the X-User-ID
// header, set by the authenticating reverse proxy, and stores it in the
// request context. Handlers that need a caller reject requests where the
// header was absent.
func IdentityMiddleware(c *gin.Context) {
	if id := c.GetHeader("X-User-ID"); id != "" {
		c.Set(handler.CallerIDKey, id)
	}
	c.Next()
}
