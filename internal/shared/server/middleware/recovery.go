package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"sparefinder-backend/internal/shared/metrics"
	"sparefinder-backend/internal/shared/server/respond"
	"sparefinder-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. A panic after a credit was charged
// leaves the charge in place; the analysis service refunds on returned errors only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				metrics.IncPanicRecovered()
				telemetry.Error("http.panic", map[string]any{
					"request_id": RequestIDFromContext(c),
					"user_id":    UserIDFromContext(c),
					"error":      rec,
					"stack":      string(debug.Stack()),
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
				})
				respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
			}
		}()
		c.Next()
	}
}
