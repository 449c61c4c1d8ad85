package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/indraargamuria/opexio/internal/auth"
	"github.com/indraargamuria/opexio/internal/models"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "opexio_session"

const userContextKey = "currentUser"

// RequireSession gates a route on a valid session. The resolved user lands in
// the request context for handlers to pick up.
func RequireSession(resolver *auth.SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)

		user, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// CurrentUser returns the session user placed by RequireSession, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, ok := v.(*models.User)
	if !ok {
		return nil
	}
	return user
}
