// services/reset_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/plantify/plantify_backend/utils"
)

const (
	resetPrefix      = "password_reset:"
	resetTokenTTL    = 15 * time.Minute
	resetCooldown    = 60 * time.Second
	resetMaxRequests = 3
)

// ResetService issues and verifies the single-use tokens behind password
// reset links. Unlike the OTP workflow there is no lockout: a 64-character
// random token is not guessable within its 15-minute lifetime.
type ResetService struct {
	store       KVStore
	mailer      Mailer
	frontendURL string
	logger      *log.Logger

	// Overridable for tests.
	now           func() time.Time
	generateToken func() (string, error)
}

// NewResetService creates the password-reset engine. frontendURL is the
// base URL the emailed reset link points at.
func NewResetService(store KVStore, mailer Mailer, frontendURL string) *ResetService {
	return &ResetService{
		store:         store,
		mailer:        mailer,
		frontendURL:   frontendURL,
		logger:        log.New(os.Stdout, "[RESET] ", log.LstdFlags),
		now:           time.Now,
		generateToken: utils.GenerateResetToken,
	}
}

func resetTokenKey(email string) string { return resetPrefix + email }
func resetRateKey(email string) string  { return resetPrefix + "rate:" + email }
func resetCountKey(email string) string { return resetPrefix + "count:" + email }

// GenerateAndSend creates a fresh reset token for the email, stores its
// hash, and emails a reset link embedding the plaintext token.
func (s *ResetService) GenerateAndSend(ctx context.Context, email, fullName string) (*IssueResult, error) {
	// Cooldown: one request per 60 seconds.
	if last, err := s.store.Get(ctx, resetRateKey(email)); err == nil {
		if lastMillis, perr := strconv.ParseInt(last, 10, 64); perr == nil {
			elapsed := s.now().Sub(time.UnixMilli(lastMillis))
			if remaining := resetCooldown - elapsed; remaining > 0 {
				secs := int(math.Ceil(remaining.Seconds()))
				return nil, NewFlowError(CodeResetCooldown,
					fmt.Sprintf("Please wait %ds before requesting another reset link.", secs))
			}
		}
	} else if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}

	// Rate limit: 3 requests per 15-minute window.
	countPresent := true
	if count, err := s.store.Get(ctx, resetCountKey(email)); err == nil {
		if n, perr := strconv.Atoi(count); perr == nil && n >= resetMaxRequests {
			return nil, NewFlowError(CodeResetRateLimit, "Too many reset requests. Please try again later.")
		}
	} else if errors.Is(err, ErrKeyNotFound) {
		countPresent = false
	} else {
		return nil, err
	}

	token, err := s.generateToken()
	if err != nil {
		return nil, err
	}

	mutations := []Mutation{
		SetKey(resetTokenKey(email), utils.HashSecret(token), resetTokenTTL),
		IncrKey(resetCountKey(email)),
	}
	if !countPresent {
		mutations = append(mutations, ExpireKey(resetCountKey(email), resetTokenTTL))
	}
	mutations = append(mutations,
		SetKey(resetRateKey(email), strconv.FormatInt(s.now().UnixMilli(), 10), resetCooldown))

	if err := s.store.Apply(ctx, mutations...); err != nil {
		return nil, err
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s&email=%s",
		s.frontendURL, token, url.QueryEscape(email))

	if err := s.mailer.SendPasswordResetEmail(email, fullName, resetURL); err != nil {
		s.logger.Printf("failed to send reset email to %s: %v", email, err)
		if delErr := s.store.Delete(ctx, resetTokenKey(email), resetCountKey(email), resetRateKey(email)); delErr != nil {
			s.logger.Printf("failed to roll back reset issuance for %s: %v", email, delErr)
		}
		return nil, NewFlowError(CodeEmailSendFailed, "Failed to send password reset email. Please try again.")
	}

	return &IssueResult{
		Success: true,
		Message: "Password reset email sent successfully.",
	}, nil
}

// VerifyToken reports whether the supplied token matches the one last
// issued for the email. A successful match consumes the token so it cannot
// be replayed; the remaining rate keys are left for ClearData.
func (s *ResetService) VerifyToken(ctx context.Context, email, token string) (bool, error) {
	storedHash, err := s.store.Get(ctx, resetTokenKey(email))
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !utils.SecureCompare(utils.HashSecret(token), storedHash) {
		return false, nil
	}

	if err := s.store.Delete(ctx, resetTokenKey(email)); err != nil {
		return false, err
	}
	return true, nil
}

// ClearData removes every reset key for the email. It is idempotent and
// runs after the password change commits.
func (s *ResetService) ClearData(ctx context.Context, email string) error {
	return s.store.Delete(ctx, resetTokenKey(email), resetRateKey(email), resetCountKey(email))
}
