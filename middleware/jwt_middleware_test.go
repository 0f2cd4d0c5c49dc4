package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantify/plantify_backend/models"
)

func TestGenerateAndParseJWT(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	access, refresh, err := GenerateJWT("651f1f77bcf86cd799439011", "user@example.com", models.RoleUser)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	claims, err := ParseToken(access)
	require.NoError(t, err)
	assert.Equal(t, "651f1f77bcf86cd799439011", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, models.RoleUser, claims.Role)

	// Refresh tokens outlive access tokens.
	refreshClaims, err := ParseToken(refresh)
	require.NoError(t, err)
	assert.Greater(t, refreshClaims.ExpiresAt, claims.ExpiresAt)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret-one")
	access, _, err := GenerateJWT("id", "user@example.com", models.RoleUser)
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "secret-two")
	_, err = ParseToken(access)
	assert.Error(t, err)
}

func TestJWTMiddlewareAllowsValidToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	access, _, err := GenerateJWT("651f1f77bcf86cd799439011", "user@example.com", models.RoleAdmin)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+access)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := JWTMiddleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "651f1f77bcf86cd799439011", c.Get("userId"))
	assert.Equal(t, models.RoleAdmin, c.Get("role"))
	assert.Equal(t, "user@example.com", c.Get("email"))
}

func TestJWTMiddlewareRejectsMissingToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := JWTMiddleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	err := handler(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		allowed    []string
		wantStatus int
	}{
		{"admin allowed", models.RoleAdmin, []string{models.RoleAdmin}, http.StatusOK},
		{"user rejected", models.RoleUser, []string{models.RoleAdmin}, http.StatusForbidden},
		{"either role allowed", models.RoleUser, []string{models.RoleAdmin, models.RoleUser}, http.StatusOK},
		{"missing role", "", []string{models.RoleAdmin}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			if tt.role != "" {
				c.Set("role", tt.role)
			}

			handler := RequireRole(tt.allowed...)(func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})

			require.NoError(t, handler(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
