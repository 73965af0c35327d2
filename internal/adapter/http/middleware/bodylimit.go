package middleware

import (
	"net/http"

	"escrow-marketplace/pkg/apperror"
	"escrow-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize caps the request body. A declared Content-Length over the cap
// is refused with SYS_006 before any handler runs; chunked bodies are cut off
// by the reader and surface as a bind error in the handler.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, apperror.ErrPayloadTooLarge(maxBytes))
			c.Abort()
			return
		}
		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
