package middleware

import (
	"github.com/gin-gonic/gin"
)

const UserKey = "userID"

// Identity records the authenticated user id forwarded by the gateway.
// The header is optional: checkout allows guests, so nothing aborts
// when it is absent.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set(UserKey, userID)
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	if val, exists := c.Get(UserKey); exists {
		return val.(string)
	}
	return ""
}
