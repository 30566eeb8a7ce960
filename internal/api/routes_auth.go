package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskpad/internal/handlers"
)

type authRouteDeps struct {
	Handler   *handlers.AuthHandler
	RateLimit gin.HandlerFunc
}

func registerAuthRoutes(api, protected *gin.RouterGroup, deps authRouteDeps) {
	auth := api.Group("/auth")
	auth.Use(deps.RateLimit)
	{
		auth.POST("/signup", deps.Handler.Signup)
		auth.POST("/verify-email", deps.Handler.VerifyEmail)
		auth.POST("/resend-verification", deps.Handler.ResendVerification)
		auth.POST("/login", deps.Handler.Login)
		auth.POST("/forgot-password", deps.Handler.ForgotPassword)
		auth.POST("/verify-otp", deps.Handler.VerifyOTP)
		auth.POST("/reset-password", deps.Handler.ResetPassword)
	}

	protected.GET("/auth/me", deps.Handler.Me)
	protected.DELETE("/auth/account", deps.Handler.DeleteAccount)
}
