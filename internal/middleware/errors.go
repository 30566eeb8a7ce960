package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/taskpad/pkg/errors"
	"github.com/charlesng35/taskpad/pkg/logger"
	"github.com/charlesng35/taskpad/pkg/response"
)

// RespondError renders err, logging the internal cause of server errors first.
func RespondError(c *gin.Context, err error) {
	appErr := errors.FromError(err)
	if appErr.StatusCode >= 500 {
		logger.WithModule("http").Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("code", appErr.Code),
			zap.NamedError("cause", appErr.Internal),
		)
		_ = c.Error(appErr)
	}
	response.Error(c, appErr)
}
