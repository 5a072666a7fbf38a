package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tapdbridge.app/bridge/common/id"
	"tapdbridge.app/bridge/common/logger"
	"tapdbridge.app/bridge/internal/http/dto"
)

// Recovery converts panics into the generic server-error response instead
// of crashing the process. Anything landing here is a bug, not an expected
// failure, so it logs at error level with the panic value.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(c.Request.Context(), "panic while handling request",
					"panic", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse("internal server error"))
			}
		}()
		c.Next()
	}
}

// Logger assigns a snowflake request id to the request context and logs
// one line per request with method, path, status and latency.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := id.NewRequestID()
		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
			RequestID: logger.Ptr(requestID),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", strconv.FormatInt(requestID, 10))

		c.Next()

		slog.InfoContext(ctx, "request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
