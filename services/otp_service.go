// services/otp_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/plantify/plantify_backend/utils"
)

const (
	otpPrefix      = "otp:register:"
	otpTTL         = 10 * time.Minute
	otpCooldown    = 60 * time.Second
	otpMaxRequests = 3
	otpMaxFailures = 5
	otpLockTTL     = 10 * time.Minute
)

var otpFormat = regexp.MustCompile(`^\d{6}$`)

// UserVerifier persists the outcome of a successful email verification.
type UserVerifier interface {
	MarkEmailVerified(ctx context.Context, email string) error
}

// IssueResult is the outcome of a successful code or token issuance.
type IssueResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

// VerifyResult is the outcome of an OTP verification attempt. Expected
// failures come back as a result with a code rather than an error.
type VerifyResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// OTPService issues and verifies the short numeric codes that prove email
// ownership during registration. All of its state lives in the key-value
// store under the otp:register: prefix, so a crashed process leaves nothing
// behind that a TTL will not clean up.
type OTPService struct {
	store  KVStore
	mailer Mailer
	users  UserVerifier
	logger *log.Logger

	// Overridable for tests.
	now          func() time.Time
	generateCode func() (string, error)
}

// NewOTPService creates the OTP engine with its dependencies.
func NewOTPService(store KVStore, mailer Mailer, users UserVerifier) *OTPService {
	return &OTPService{
		store:        store,
		mailer:       mailer,
		users:        users,
		logger:       log.New(os.Stdout, "[OTP] ", log.LstdFlags),
		now:          time.Now,
		generateCode: utils.GenerateOTP,
	}
}

func otpCodeKey(email string) string  { return otpPrefix + email }
func otpCountKey(email string) string { return otpPrefix + "count:" + email }
func otpLastKey(email string) string  { return otpPrefix + "last:" + email }
func otpFailKey(email string) string  { return otpPrefix + "fail:" + email }
func otpLockKey(email string) string  { return otpPrefix + "lock:" + email }

// GenerateAndSend creates a fresh verification code for the email, stores
// its hash, and delivers the plaintext code by email. Cooldown, rate-limit,
// and lockout failures come back as FlowError values.
func (s *OTPService) GenerateAndSend(ctx context.Context, email, fullName string) (*IssueResult, error) {
	// Lockout takes precedence over every other check.
	if _, err := s.store.Get(ctx, otpLockKey(email)); err == nil {
		return nil, NewFlowError(CodeAccountLocked, "Account temporarily locked due to too many failed attempts. Please try again later.")
	} else if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}

	// Cooldown: one request per 60 seconds.
	if last, err := s.store.Get(ctx, otpLastKey(email)); err == nil {
		if lastMillis, perr := strconv.ParseInt(last, 10, 64); perr == nil {
			elapsed := s.now().Sub(time.UnixMilli(lastMillis))
			if remaining := otpCooldown - elapsed; remaining > 0 {
				secs := int(math.Ceil(remaining.Seconds()))
				return nil, NewFlowError(CodeOTPCooldown,
					fmt.Sprintf("Please wait %ds before requesting another code.", secs))
			}
		}
	} else if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}

	// Rate limit: 3 requests per 10-minute window.
	countPresent := true
	if count, err := s.store.Get(ctx, otpCountKey(email)); err == nil {
		if n, perr := strconv.Atoi(count); perr == nil && n >= otpMaxRequests {
			return nil, NewFlowError(CodeOTPRateLimit, "Too many verification requests. Please try again later.")
		}
	} else if errors.Is(err, ErrKeyNotFound) {
		countPresent = false
	} else {
		return nil, err
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, err
	}

	// Store the hash, bump the request counter, and stamp the cooldown as
	// one atomic batch so a crash cannot leave them out of step.
	mutations := []Mutation{
		SetKey(otpCodeKey(email), utils.HashSecret(code), otpTTL),
		IncrKey(otpCountKey(email)),
	}
	if !countPresent {
		mutations = append(mutations, ExpireKey(otpCountKey(email), otpTTL))
	}
	mutations = append(mutations,
		SetKey(otpLastKey(email), strconv.FormatInt(s.now().UnixMilli(), 10), otpCooldown))

	if err := s.store.Apply(ctx, mutations...); err != nil {
		return nil, err
	}

	if err := s.mailer.SendOTPEmail(email, fullName, code); err != nil {
		s.logger.Printf("failed to send OTP email to %s: %v", email, err)
		// The caller must not be left with a "sent" state when no email
		// arrived, so undo the writes before failing.
		if delErr := s.store.Delete(ctx, otpCodeKey(email), otpCountKey(email), otpLastKey(email)); delErr != nil {
			s.logger.Printf("failed to roll back OTP issuance for %s: %v", email, delErr)
		}
		return nil, NewFlowError(CodeEmailSendFailed, "Failed to send verification email. Please try again.")
	}

	return &IssueResult{
		Success: true,
		Message: "Verification code sent to your email.",
		Email:   email,
	}, nil
}

// Verify checks an entered code against the stored hash. A match consumes
// the code and marks the user verified; five mismatches lock the email for
// ten minutes. Only infrastructure failures are returned as errors.
func (s *OTPService) Verify(ctx context.Context, email, enteredOTP string) (*VerifyResult, error) {
	// Malformed input is rejected before touching any state and never
	// counts toward the failure limit.
	if !otpFormat.MatchString(enteredOTP) {
		return &VerifyResult{
			Code:    CodeInvalidFormat,
			Message: "Verification code must be 6 digits.",
		}, nil
	}

	storedHash, err := s.store.Get(ctx, otpCodeKey(email))
	if errors.Is(err, ErrKeyNotFound) {
		return &VerifyResult{
			Code:    CodeOTPExpired,
			Message: "Verification code is invalid or has expired. Please request a new one.",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if !utils.SecureCompare(utils.HashSecret(enteredOTP), storedHash) {
		fails, err := s.store.Incr(ctx, otpFailKey(email), otpTTL)
		if err != nil {
			return nil, err
		}

		if fails >= otpMaxFailures {
			// Lock the email and burn the stored code so it cannot be
			// retried once the lock expires.
			if err := s.store.Apply(ctx,
				SetKey(otpLockKey(email), "1", otpLockTTL),
				DeleteKey(otpCodeKey(email)),
			); err != nil {
				return nil, err
			}
			return &VerifyResult{
				Code:    CodeAccountLocked,
				Message: "Too many failed attempts. Account locked for 10 minutes.",
			}, nil
		}

		return &VerifyResult{
			Code:    CodeOTPIncorrect,
			Message: fmt.Sprintf("Incorrect verification code. %d attempts remaining.", otpMaxFailures-fails),
		}, nil
	}

	// Full cleanup: the code is single-use, and the counters go with it.
	if err := s.store.Delete(ctx,
		otpCodeKey(email),
		otpCountKey(email),
		otpLastKey(email),
		otpFailKey(email),
	); err != nil {
		return nil, err
	}

	if err := s.users.MarkEmailVerified(ctx, email); err != nil {
		// The code is already consumed, so this is a partial failure the
		// caller has to surface rather than silently retry.
		s.logger.Printf("failed to mark %s verified: %v", email, err)
		return &VerifyResult{
			Code:    CodeDBError,
			Message: "Code verified but the account could not be updated. Please contact support.",
		}, nil
	}

	return &VerifyResult{
		Success: true,
		Message: "Email verified successfully.",
	}, nil
}
