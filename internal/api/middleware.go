package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	logx "github.com/Chative-order-agent/server/pkg/logger"
)

// APIKeyMiddleware accepts requests whose x-api-key header is "Bearer <key>"
// for one of keys.
func APIKeyMiddleware(keys []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			allowed[k] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		header := c.GetHeader("x-api-key")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid x-api-key header, use 'Bearer <key>'"})
			return
		}
		if _, ok := allowed[strings.TrimSpace(token)]; !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request through logx.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := logx.Debug()
		if status >= http.StatusInternalServerError {
			ev = logx.Error()
		} else if status >= http.StatusBadRequest {
			ev = logx.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}
