package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskpad/internal/middleware"
)

func respondError(c *gin.Context, err error) {
	middleware.RespondError(c, err)
}
