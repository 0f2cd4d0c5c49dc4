// services/google_auth.go
package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt"
	"github.com/lestrrat-go/jwx/jwk"
)

const googleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

// GoogleClaims is the subset of a verified Google ID token the auth flow
// needs.
type GoogleClaims struct {
	Email    string
	GoogleID string
	Name     string
}

// GoogleAuthService verifies Google ID tokens against Google's published
// JWKS.
type GoogleAuthService struct {
	certsURL string
}

// NewGoogleAuthService creates a new Google auth service
func NewGoogleAuthService() *GoogleAuthService {
	return &GoogleAuthService{certsURL: googleCertsURL}
}

// VerifyIDToken parses and verifies a Google ID token and returns its
// identity claims.
func (s *GoogleAuthService) VerifyIDToken(ctx context.Context, idToken string) (*GoogleClaims, error) {
	// Parse the JWT header to find the signing key ID.
	parts := strings.Split(idToken, ".")
	if len(parts) < 2 {
		return nil, errors.New("invalid token format")
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid JWT header: %w", err)
	}

	var header struct {
		Kid string `json:"kid"`
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("invalid JWT header JSON: %w", err)
	}

	jwkSet, err := jwk.Fetch(ctx, s.certsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Google public keys: %w", err)
	}

	key, found := jwkSet.LookupKeyID(header.Kid)
	if !found {
		return nil, errors.New("google public key not found")
	}

	var pubkey interface{}
	if err := key.Raw(&pubkey); err != nil {
		return nil, fmt.Errorf("failed to parse Google public key: %w", err)
	}

	parsedToken, err := jwt.Parse(idToken, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != header.Alg {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return pubkey, nil
	})
	if err != nil || !parsedToken.Valid {
		return nil, errors.New("invalid or expired Google token")
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("failed to parse token claims")
	}

	email, _ := claims["email"].(string)
	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	if email == "" || sub == "" {
		return nil, errors.New("missing email or sub in token")
	}

	return &GoogleClaims{Email: email, GoogleID: sub, Name: name}, nil
}
