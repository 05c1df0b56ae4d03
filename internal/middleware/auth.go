package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"trialscope/internal/domain"
	"trialscope/internal/logging"
	"trialscope/internal/session"
)

const (
	ContextKeySessionID = "session_id"
	ContextKeySession   = "session"
)

// SessionAuth validates the bearer token, loads the session it names and
// injects both into the Gin context.
func SessionAuth(issuer *session.TokenIssuer, store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "missing or invalid authorization header")
			return
		}

		sessionID, err := issuer.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		st, err := store.Get(sessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   gin.H{"code": "SESSION_NOT_FOUND", "message": "session has ended or expired"},
			})
			return
		}

		c.Set(ContextKeySessionID, sessionID)
		c.Set(ContextKeySession, st)
		c.Request = c.Request.WithContext(logging.WithSession(c.Request.Context(), sessionID))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": "UNAUTHORIZED", "message": msg},
	})
}

// GetSession extracts the session loaded by SessionAuth.
func GetSession(c *gin.Context) (*session.State, error) {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil, domain.ErrUnauthorized
	}
	st, ok := val.(*session.State)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return st, nil
}
