// controllers/category_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/plantify/plantify_backend/models"
	"github.com/plantify/plantify_backend/repositories"
	"github.com/plantify/plantify_backend/utils"
)

type CategoryController struct {
	categoryRepo *repositories.CategoryRepository
}

func NewCategoryController(categoryRepo *repositories.CategoryRepository) *CategoryController {
	return &CategoryController{categoryRepo: categoryRepo}
}

// ListCategories returns active categories. Admins can pass ?all=true to
// include inactive ones.
func (cc *CategoryController) ListCategories(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	activeOnly := c.QueryParam("all") != "true"

	categories, err := cc.categoryRepo.FindAll(ctx, activeOnly)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load categories",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Categories retrieved successfully",
		Data:    categories,
	})
}

// GetCategory returns a single category by ID.
func (cc *CategoryController) GetCategory(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	category, err := cc.categoryRepo.FindByID(ctx, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Category not found",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Category retrieved successfully",
		Data:    category,
	})
}

// CreateCategory creates a category, with an optional multipart image.
// Admin only.
func (cc *CategoryController) CreateCategory(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.CategoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	req.Name = utils.SanitizeInput(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Category name is required",
		})
	}

	category := &models.Category{
		Name:        req.Name,
		Description: utils.SanitizeInput(req.Description),
		IsActive:    true,
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if req.ParentCategory != "" {
		parentID, err := primitive.ObjectIDFromHex(req.ParentCategory)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid parent category ID",
			})
		}
		if _, err := cc.categoryRepo.FindByID(ctx, req.ParentCategory); err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Parent category not found",
			})
		}
		category.ParentCategory = &parentID
	}

	if file, err := c.FormFile("image"); err == nil {
		imageURL, err := utils.SaveImage(file, "categories")
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: err.Error(),
			})
		}
		category.Image = imageURL
	}

	if err := cc.categoryRepo.Create(ctx, category); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "A category with this name already exists",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create category",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Category created successfully",
		Data:    category,
	})
}

// UpdateCategory updates category fields and optionally replaces its image.
// Admin only.
func (cc *CategoryController) UpdateCategory(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := c.Param("id")

	existing, err := cc.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Category not found",
		})
	}

	var req models.CategoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	updates := bson.M{}
	if name := utils.SanitizeInput(req.Name); name != "" {
		updates["name"] = name
	}
	if req.Description != "" {
		updates["description"] = utils.SanitizeInput(req.Description)
	}
	if req.IsActive != nil {
		updates["isActive"] = *req.IsActive
	}
	if req.ParentCategory != "" {
		parentID, err := primitive.ObjectIDFromHex(req.ParentCategory)
		if err != nil || parentID.Hex() == id {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid parent category ID",
			})
		}
		updates["parentCategory"] = parentID
	}

	oldImage := ""
	if file, err := c.FormFile("image"); err == nil {
		imageURL, err := utils.SaveImage(file, "categories")
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: err.Error(),
			})
		}
		updates["image"] = imageURL
		oldImage = existing.Image
	}

	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "No fields to update",
		})
	}

	if err := cc.categoryRepo.Update(ctx, id, updates); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "A category with this name already exists",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update category",
		})
	}

	if oldImage != "" {
		if err := utils.DeleteImage(oldImage); err != nil {
			c.Logger().Warnf("failed to remove old category image %s: %v", oldImage, err)
		}
	}

	updated, err := cc.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load updated category",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Category updated successfully",
		Data:    updated,
	})
}

// DeleteCategory removes a category and its stored image. Admin only.
func (cc *CategoryController) DeleteCategory(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := c.Param("id")

	category, err := cc.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Category not found",
		})
	}

	if err := cc.categoryRepo.Delete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to delete category",
		})
	}

	if category.Image != "" {
		if err := utils.DeleteImage(category.Image); err != nil {
			c.Logger().Warnf("failed to remove category image %s: %v", category.Image, err)
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Category deleted successfully",
	})
}
