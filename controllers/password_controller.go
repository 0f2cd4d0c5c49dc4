// controllers/password_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/plantify/plantify_backend/middleware"
	"github.com/plantify/plantify_backend/models"
	"github.com/plantify/plantify_backend/repositories"
	"github.com/plantify/plantify_backend/services"
	"github.com/plantify/plantify_backend/utils"
)

type PasswordController struct {
	userRepo     *repositories.UserRepository
	resetService *services.ResetService
}

func NewPasswordController(userRepo *repositories.UserRepository, resetService *services.ResetService) *PasswordController {
	return &PasswordController{
		userRepo:     userRepo,
		resetService: resetService,
	}
}

// ForgotPassword sends a reset link to the account's email. Whether the
// account exists is not revealed to the caller.
func (pc *PasswordController) ForgotPassword(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	email := utils.SanitizeEmail(req.Email)

	user, err := pc.userRepo.FindByEmail(ctx, email)
	if err == mongo.ErrNoDocuments {
		// Same response as the success path so enumeration attempts learn
		// nothing.
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "If an account exists for this email, a reset link has been sent.",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	}

	if _, err := pc.resetService.GenerateAndSend(ctx, email, user.FullName); err != nil {
		if fe, ok := services.AsFlowError(err); ok {
			return respondFlowError(c, fe)
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to send reset email",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "If an account exists for this email, a reset link has been sent.",
	})
}

// ResetPassword completes the reset flow: it validates the emailed token,
// stores the new password, and clears the reset state.
func (pc *PasswordController) ResetPassword(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	email := utils.SanitizeEmail(req.Email)

	valid, err := pc.resetService.VerifyToken(ctx, email, req.Token)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to verify reset token",
		})
	}
	if !valid {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Reset link is invalid or has expired. Please request a new one.",
		})
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process password",
		})
	}

	if err := pc.userRepo.UpdatePassword(ctx, email, hashedPassword); err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "No account found for this email",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update password",
		})
	}

	if err := pc.resetService.ClearData(ctx, email); err != nil {
		// The password change already committed; leftover keys expire on
		// their own TTLs.
		c.Logger().Warnf("failed to clear reset data for %s: %v", email, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Password has been reset successfully. You can now log in.",
	})
}

// ChangePassword changes the password of the authenticated user.
func (pc *PasswordController) ChangePassword(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication required",
		})
	}

	var req models.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	user, err := pc.userRepo.FindByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Account not found",
		})
	}

	if !utils.CheckPassword(user.Password, req.OldPassword) {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Current password is incorrect",
		})
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process password",
		})
	}

	if err := pc.userRepo.UpdatePassword(ctx, user.Email, hashedPassword); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update password",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Password changed successfully. Please log in again.",
	})
}
