package signal

import (
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// SessionTokenKey is the cookie session key holding a browser's credential.
const SessionTokenKey = "token"

// Credential picks the presented token: query parameter first, then the
// bearer header, then the cookie session.
func Credential(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	if h := c.GetHeader("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return ""
	}
	if t, ok := sessions.Default(c).Get(SessionTokenKey).(string); ok {
		return t
	}
	return ""
}
