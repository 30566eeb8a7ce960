package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskpad/internal/middleware"
	"github.com/charlesng35/taskpad/pkg/errors"
	"github.com/charlesng35/taskpad/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentAccountID returns the account set by middleware.Auth. When it is
// missing a 401 has already been written.
func currentAccountID(c *gin.Context) (string, bool) {
	id := c.GetString(middleware.CtxUserIDKey)
	if id == "" {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return id, true
}
