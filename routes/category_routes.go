package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/plantify/plantify_backend/controllers"
	"github.com/plantify/plantify_backend/middleware"
)

// RegisterCategoryRoutes sets up public category reads and admin category
// management
func RegisterCategoryRoutes(e *echo.Echo, categoryController *controllers.CategoryController) {
	public := e.Group("/api/categories")
	public.GET("", categoryController.ListCategories)
	public.GET("/:id", categoryController.GetCategory)

	admin := e.Group("/api/admin/categories")
	admin.Use(middleware.JWTMiddleware(), middleware.RequireAdmin())
	admin.POST("", categoryController.CreateCategory)
	admin.PUT("/:id", categoryController.UpdateCategory)
	admin.DELETE("/:id", categoryController.DeleteCategory)
}
