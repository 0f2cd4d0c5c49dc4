package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/plantify/plantify_backend/config"
	"github.com/plantify/plantify_backend/controllers"
	"github.com/plantify/plantify_backend/middleware"
	"github.com/plantify/plantify_backend/repositories"
	"github.com/plantify/plantify_backend/routes"
	"github.com/plantify/plantify_backend/services"
	"github.com/plantify/plantify_backend/utils"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Connect to database
	client := config.ConnectDB()

	// Connect to Redis; the OTP and password-reset flows depend on it
	redisClient, err := config.ConnectRedis()
	if err != nil {
		log.Fatal(err)
	}

	// Seed the admin account if configured
	config.EnsureAdminUser(client)

	// Ensure upload directories exist
	if err := utils.InitializeStorage(); err != nil {
		log.Fatal(err)
	}

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.SecurityHeaders())
	e.Use(httpsRedirect())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "Plantify Backend is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Initialize repositories
	userRepo := repositories.NewUserRepository(client)
	categoryRepo := repositories.NewCategoryRepository(client)

	// Initialize services
	store := services.NewRedisStore(redisClient)
	mailer, err := services.NewSMTPMailerFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	otpService := services.NewOTPService(store, mailer, userRepo)
	resetService := services.NewResetService(store, mailer, frontendURL())
	googleAuth := services.NewGoogleAuthService()

	// Initialize controllers
	authController := controllers.NewAuthController(userRepo, otpService, googleAuth)
	passwordController := controllers.NewPasswordController(userRepo, resetService)
	userController := controllers.NewUserController(userRepo)
	categoryController := controllers.NewCategoryController(categoryRepo)

	// Register routes
	routes.RegisterAuthRoutes(e, authController, passwordController)
	routes.RegisterUserRoutes(e, userController)
	routes.RegisterCategoryRoutes(e, categoryController)

	// Serve uploaded files
	e.Static("/uploads", "uploads")

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	e.Logger.Fatal(e.Start(":" + port))
}

func frontendURL() string {
	if url := os.Getenv("FRONTEND_URL"); url != "" {
		return url
	}
	return "http://localhost:3000"
}

func httpsRedirect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-Forwarded-Proto") == "http" {
				return c.Redirect(301, "https://"+c.Request().Host+c.Request().RequestURI)
			}
			return next(c)
		}
	}
}
