package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/plantify/plantify_backend/controllers"
	"github.com/plantify/plantify_backend/middleware"
)

// RegisterAuthRoutes sets up registration, login, and password-reset routes
func RegisterAuthRoutes(e *echo.Echo, authController *controllers.AuthController, passwordController *controllers.PasswordController) {
	auth := e.Group("/api/auth")

	// Registration and email verification
	auth.POST("/register", authController.Register)
	auth.POST("/verify-otp", authController.VerifyOTP)
	auth.POST("/resend-otp", authController.ResendOTP)

	// Sessions
	auth.POST("/login", authController.Login)
	auth.POST("/google", authController.GoogleLogin)
	auth.POST("/refresh", authController.RefreshToken)

	// Password reset
	auth.POST("/forgot-password", passwordController.ForgotPassword)
	auth.POST("/reset-password", passwordController.ResetPassword)

	// Authenticated session routes
	protected := e.Group("/api/auth")
	protected.Use(middleware.JWTMiddleware())
	protected.POST("/logout", authController.Logout)
	protected.POST("/change-password", passwordController.ChangePassword)
}
