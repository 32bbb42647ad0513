package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/charlesng35/livecss/pkg/errors"
	"github.com/charlesng35/livecss/pkg/logger"
	"github.com/charlesng35/livecss/pkg/response"
)

// Recovery converts panics into a 500 response and logs the error.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithModule("http").Error("panic",
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", RequestIDFrom(c)),
					zap.Any("error", r),
					zap.Stack("stack"),
				)
				// Avoid leaking internals to clients
				c.Abort()
				if !c.Writer.Written() {
					c.JSON(appErrors.ErrInternalServer.StatusCode, response.Response{
						Success: false,
						Error: &response.ErrorInfo{
							Code:    appErrors.ErrInternalServer.Code,
							Message: appErrors.ErrInternalServer.Message,
						},
					})
				}
			}
		}()
		c.Next()
	}
}
