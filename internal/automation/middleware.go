package automation

import (
	"bytes"
	"io"
	"net/http"

	"outbound-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const maxCallbackBody = 1 << 20

// RequireSignature rejects callbacks whose X-Signature does not match the body.
// The body is buffered and put back for the handler.
func RequireSignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody+1))
		if err != nil || len(body) > maxCallbackBody {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		if !VerifySignature(body, c.GetHeader(HeaderSignature), secret) {
			logger.FromGin(c).Warn("automation callback signature mismatch", "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}
