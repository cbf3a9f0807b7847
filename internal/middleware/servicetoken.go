package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/homecouncil/voting-service/pkg/response"
)

// ServiceToken returns a middleware guarding internal routes (telegram bot)
// with a shared token in the X-Service-Token header.
func ServiceToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			response.ServiceUnavailable(c, "internal routes disabled")
			c.Abort()
			return
		}
		got := c.GetHeader("X-Service-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.Unauthorized(c, "invalid service token")
			c.Abort()
			return
		}
		c.Next()
	}
}
