package middleware

import (
	"net/http"
	"runtime/debug"

	"storechat-gin/internal/dto"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Recovery Middleware
// Bắt panic và trả về response lỗi thay vì crash server
// Mọi failure đều per-request, không gì được phép sập process
// ===========================================================================

// Recovery middleware bắt panic trong handlers
// Khi có panic: log stack trace, trả 500, server tiếp tục chạy
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.String("request_id", GetRequestID(c)),
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.Error(
					"INTERNAL_ERROR",
					"An internal error occurred",
				))
			}
		}()

		c.Next()
	}
}
