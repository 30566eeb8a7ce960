package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/taskpad/internal/auth"
	"github.com/charlesng35/taskpad/pkg/errors"
	"github.com/charlesng35/taskpad/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
)

// SessionAuthenticator resolves a bearer token to the claims of a live session.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*iauth.Claims, error)
}

// Auth requires a valid bearer token and stores the acting account in the gin context.
func Auth(authenticator SessionAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := authenticator.Authenticate(c.Request.Context(), strings.TrimSpace(authz[7:]))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			RespondError(c, err)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.AccountID)
		c.Next()
	}
}
