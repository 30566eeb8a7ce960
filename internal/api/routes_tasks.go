package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskpad/internal/handlers"
)

func registerTaskRoutes(protected *gin.RouterGroup, handler *handlers.TaskHandler) {
	tasks := protected.Group("/tasks")
	{
		tasks.GET("", handler.List)
		tasks.POST("", handler.Create)
		tasks.GET("/:id", handler.Get)
		tasks.PATCH("/:id", handler.Update)
		tasks.DELETE("/:id", handler.Delete)
	}

	protected.GET("/dashboard", handler.Dashboard)
}
