// services/errors.go
package services

import "errors"

// Flow error codes for the OTP and password-reset workflows.
const (
	CodeAccountLocked   = "ACCOUNT_LOCKED"
	CodeOTPCooldown     = "OTP_COOLDOWN"
	CodeOTPRateLimit    = "OTP_RATE_LIMIT"
	CodeOTPExpired      = "OTP_EXPIRED"
	CodeOTPIncorrect    = "OTP_INCORRECT"
	CodeInvalidFormat   = "INVALID_FORMAT"
	CodeEmailSendFailed = "EMAIL_SEND_FAILED"
	CodeDBError         = "DB_ERROR"
	CodeResetCooldown   = "RESET_COOLDOWN"
	CodeResetRateLimit  = "RESET_RATE_LIMIT"
)

// FlowError is an expected workflow failure carrying one of the codes above.
// Abuse-prevention and validation failures travel as FlowError values so
// callers can map them to HTTP responses; infrastructure failures travel as
// plain errors.
type FlowError struct {
	Code    string
	Message string
}

func (e *FlowError) Error() string {
	return e.Message
}

// NewFlowError creates a tagged workflow error.
func NewFlowError(code, message string) *FlowError {
	return &FlowError{Code: code, Message: message}
}

// AsFlowError extracts a FlowError from err, if it carries one.
func AsFlowError(err error) (*FlowError, bool) {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
