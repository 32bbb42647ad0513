package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// storageTimeout bounds one snippet store call so a stalled Redis or database answers 500
// instead of holding the request open.
const storageTimeout = 5 * time.Second

// storageContext derives the context for a snippet store call from the request.
func storageContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(requestContext(c), storageTimeout)
}

func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}
