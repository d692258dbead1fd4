package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger логирует каждый запрос. Заголовки с токенами и cookie в лог
// не попадают никогда.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ts := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(ts)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("origin", c.GetHeader("Origin")),
		}

		switch {
		case c.IsAborted():
			log.Warn("request aborted", fields...)
		case len(c.Errors) > 0:
			for _, e := range c.Errors {
				fields = append(fields, zap.Error(e))
			}
			log.Error("request failed", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}
