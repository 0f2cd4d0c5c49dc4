package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/plantify/plantify_backend/controllers"
	"github.com/plantify/plantify_backend/middleware"
)

// RegisterUserRoutes sets up profile and admin user-management routes
func RegisterUserRoutes(e *echo.Echo, userController *controllers.UserController) {
	r := e.Group("/api/users")
	r.Use(middleware.JWTMiddleware())

	r.GET("/me", userController.GetMe)
	r.PUT("/me", userController.UpdateProfile)
	r.POST("/me/profile-image", userController.UploadProfileImage)

	// Admin user management
	admin := e.Group("/api/admin/users")
	admin.Use(middleware.JWTMiddleware(), middleware.RequireAdmin())
	admin.GET("", userController.ListUsers)
	admin.DELETE("/:id", userController.DeleteUser)
}
