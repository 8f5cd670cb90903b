package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eaglebank/webclient/shared/logger"
)

// LoggingMiddleware puts log into the request context and writes one line per
// request once the handler chain has finished.
func LoggingMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logger.ToContext(c.Request.Context(), log))

		c.Next()

		log.Infow("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"size", c.Writer.Size(),
			"latency", time.Since(start).String(),
		)
	}
}
