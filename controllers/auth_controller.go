// controllers/auth_controller.go
package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/plantify/plantify_backend/middleware"
	"github.com/plantify/plantify_backend/models"
	"github.com/plantify/plantify_backend/repositories"
	"github.com/plantify/plantify_backend/services"
	"github.com/plantify/plantify_backend/utils"
)

const (
	maxLoginAttempts = 5
	loginLockPeriod  = 15 * time.Minute
)

type loginAttempt struct {
	count       int
	lastAttempt time.Time
}

type AuthController struct {
	userRepo   *repositories.UserRepository
	otpService *services.OTPService
	googleAuth *services.GoogleAuthService

	mu            sync.Mutex
	loginAttempts map[string]*loginAttempt
}

func NewAuthController(userRepo *repositories.UserRepository, otpService *services.OTPService, googleAuth *services.GoogleAuthService) *AuthController {
	return &AuthController{
		userRepo:      userRepo,
		otpService:    otpService,
		googleAuth:    googleAuth,
		loginAttempts: make(map[string]*loginAttempt),
	}
}

// flowErrorStatus maps a workflow error code to its HTTP status.
func flowErrorStatus(code string) int {
	switch code {
	case services.CodeAccountLocked:
		return http.StatusLocked
	case services.CodeOTPCooldown, services.CodeOTPRateLimit,
		services.CodeResetCooldown, services.CodeResetRateLimit:
		return http.StatusTooManyRequests
	case services.CodeEmailSendFailed:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// respondFlowError writes a workflow failure using the standard envelope,
// with the machine-readable code in the data payload.
func respondFlowError(c echo.Context, fe *services.FlowError) error {
	status := flowErrorStatus(fe.Code)
	return c.JSON(status, models.Response{
		Status:  status,
		Message: fe.Message,
		Data:    map[string]string{"code": fe.Code},
	})
}

// Register creates an unverified account and sends a verification code.
func (ac *AuthController) Register(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.RegisterRequest
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
	req.FullName = utils.SanitizeInput(req.FullName)

	existing, err := ac.userRepo.FindByEmail(ctx, email)
	if err != nil && err != mongo.ErrNoDocuments {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	}
	if existing != nil && existing.IsVerified {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "An account with this email already exists",
		})
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process password",
		})
	}

	if existing != nil {
		// Unverified account re-registering: refresh its credentials.
		if err := ac.userRepo.UpdatePassword(ctx, email, hashedPassword); err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to update account",
			})
		}
	} else {
		user := &models.User{
			Email:        email,
			Password:     hashedPassword,
			FullName:     req.FullName,
			Role:         models.RoleUser,
			AuthProvider: models.AuthProviderLocal,
			IsVerified:   false,
		}
		if err := ac.userRepo.Create(ctx, user); err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to create account",
			})
		}
	}

	result, err := ac.otpService.GenerateAndSend(ctx, email, req.FullName)
	if err != nil {
		if fe, ok := services.AsFlowError(err); ok {
			return respondFlowError(c, fe)
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to send verification code",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: result.Message,
		Data:    map[string]string{"email": email},
	})
}

// VerifyOTP checks the emailed verification code and activates the account.
func (ac *AuthController) VerifyOTP(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.VerifyOTPRequest
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

	result, err := ac.otpService.Verify(ctx, email, req.OTP)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Verification failed. Please try again.",
		})
	}

	if !result.Success {
		status := http.StatusBadRequest
		switch result.Code {
		case services.CodeAccountLocked:
			status = http.StatusLocked
		case services.CodeDBError:
			status = http.StatusInternalServerError
		}
		return c.JSON(status, models.Response{
			Status:  status,
			Message: result.Message,
			Data:    map[string]string{"code": result.Code},
		})
	}

	user, err := ac.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load account",
		})
	}

	accessToken, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate tokens",
		})
	}
	if err := ac.userRepo.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to store session",
		})
	}

	user.Sanitize()
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: result.Message,
		Data: map[string]interface{}{
			"user":         user,
			"token":        accessToken,
			"refreshToken": refreshToken,
		},
	})
}

// ResendOTP sends a fresh verification code to an unverified account.
func (ac *AuthController) ResendOTP(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.ResendOTPRequest
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

	user, err := ac.userRepo.FindByEmail(ctx, email)
	if err == mongo.ErrNoDocuments {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "No account found for this email",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	}
	if user.IsVerified {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "This account is already verified",
		})
	}

	result, err := ac.otpService.GenerateAndSend(ctx, email, user.FullName)
	if err != nil {
		if fe, ok := services.AsFlowError(err); ok {
			return respondFlowError(c, fe)
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to send verification code",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: result.Message,
		Data:    map[string]string{"email": email},
	})
}

// isLoginLocked reports whether the email has exceeded the failed-login
// threshold within the lock period.
func (ac *AuthController) isLoginLocked(email string) bool {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	attempt, exists := ac.loginAttempts[email]
	if !exists {
		return false
	}
	if time.Since(attempt.lastAttempt) > loginLockPeriod {
		delete(ac.loginAttempts, email)
		return false
	}
	return attempt.count >= maxLoginAttempts
}

func (ac *AuthController) recordFailedLogin(email string) {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	attempt, exists := ac.loginAttempts[email]
	if !exists || time.Since(attempt.lastAttempt) > loginLockPeriod {
		ac.loginAttempts[email] = &loginAttempt{count: 1, lastAttempt: time.Now()}
		return
	}
	attempt.count++
	attempt.lastAttempt = time.Now()
}

func (ac *AuthController) clearLoginAttempts(email string) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	delete(ac.loginAttempts, email)
}

// Login authenticates a local account and issues a token pair.
func (ac *AuthController) Login(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.LoginRequest
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

	if ac.isLoginLocked(email) {
		return c.JSON(http.StatusTooManyRequests, models.Response{
			Status:  http.StatusTooManyRequests,
			Message: "Too many failed login attempts. Please try again later.",
		})
	}

	user, err := ac.userRepo.FindByEmail(ctx, email)
	if err == mongo.ErrNoDocuments {
		ac.recordFailedLogin(email)
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid email or password",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	}

	if user.AuthProvider == models.AuthProviderGoogle && user.Password == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "This account uses Google sign-in. Please log in with Google.",
		})
	}

	if !utils.CheckPassword(user.Password, req.Password) {
		ac.recordFailedLogin(email)
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid email or password",
		})
	}

	if !user.IsVerified {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Please verify your email before logging in",
			Data:    map[string]string{"email": email},
		})
	}

	ac.clearLoginAttempts(email)

	accessToken, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate tokens",
		})
	}
	if err := ac.userRepo.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to store session",
		})
	}

	user.Sanitize()
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: map[string]interface{}{
			"user":         user,
			"token":        accessToken,
			"refreshToken": refreshToken,
		},
	})
}

// RefreshToken exchanges a valid refresh token for a new token pair.
func (ac *AuthController) RefreshToken(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.RefreshTokenRequest
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

	claims, err := middleware.ParseToken(req.RefreshToken)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid or expired refresh token",
		})
	}

	user, err := ac.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid or expired refresh token",
		})
	}

	// The token must match the one on record so that logout and password
	// changes revoke outstanding sessions.
	if user.RefreshToken == "" || user.RefreshToken != req.RefreshToken {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Refresh token has been revoked",
		})
	}

	accessToken, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate tokens",
		})
	}
	if err := ac.userRepo.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to store session",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Token refreshed successfully",
		Data: map[string]string{
			"token":        accessToken,
			"refreshToken": refreshToken,
		},
	})
}

// Logout revokes the caller's refresh token.
func (ac *AuthController) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication required",
		})
	}

	user, err := ac.userRepo.FindByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Account not found",
		})
	}

	if err := ac.userRepo.ClearRefreshToken(ctx, user.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to log out",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Logged out successfully",
	})
}

// GoogleLogin verifies a Google ID token and logs the user in, creating a
// verified account on first sign-in.
func (ac *AuthController) GoogleLogin(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.GoogleLoginRequest
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

	claims, err := ac.googleAuth.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid Google token",
		})
	}

	email := utils.SanitizeEmail(claims.Email)

	user, err := ac.userRepo.FindByEmail(ctx, email)
	if err == mongo.ErrNoDocuments {
		// First Google sign-in: Google already verified the email.
		user = &models.User{
			Email:        email,
			FullName:     claims.Name,
			Role:         models.RoleUser,
			AuthProvider: models.AuthProviderGoogle,
			GoogleID:     claims.GoogleID,
			IsVerified:   true,
		}
		if err := ac.userRepo.Create(ctx, user); err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to create account",
			})
		}
	} else if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	} else if user.GoogleID == "" {
		// Existing local account signing in with Google for the first time.
		if err := ac.userRepo.LinkGoogleID(ctx, user.ID, claims.GoogleID); err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to link Google account",
			})
		}
		user.GoogleID = claims.GoogleID
	}

	accessToken, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate tokens",
		})
	}
	if err := ac.userRepo.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to store session",
		})
	}

	user.Sanitize()
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: map[string]interface{}{
			"user":         user,
			"token":        accessToken,
			"refreshToken": refreshToken,
		},
	})
}
