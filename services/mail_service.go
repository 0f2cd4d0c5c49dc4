// services/mail_service.go
package services

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"
)

// Mailer delivers workflow emails. Implementations may fail; the engines
// treat a failed send as grounds for rolling back the issuance.
type Mailer interface {
	SendOTPEmail(to, name, otp string) error
	SendPasswordResetEmail(to, name, resetURL string) error
}

// SMTPMailer sends email over SMTP using gomail.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailerFromEnv builds an SMTPMailer from SMTP_HOST, SMTP_PORT,
// SMTP_USER, SMTP_PASS, and FROM_EMAIL.
func NewSMTPMailerFromEnv() (*SMTPMailer, error) {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPortStr := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	fromEmail := os.Getenv("FROM_EMAIL")

	if smtpHost == "" || smtpPortStr == "" || smtpUser == "" || smtpPass == "" || fromEmail == "" {
		return nil, fmt.Errorf("missing SMTP configuration")
	}

	smtpPort, err := strconv.Atoi(smtpPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP port: %v", err)
	}

	return &SMTPMailer{
		dialer: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass),
		from:   fromEmail,
	}, nil
}

// SendOTPEmail sends the email-verification code to a new user.
func (m *SMTPMailer) SendOTPEmail(to, name, otp string) error {
	subject := "Verify your email - Plantify"
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Verify Your Email</h2>
			<p>Hi %s,</p>
			<p>Your verification code is:</p>
			<h3 style="background-color: #f0f0f0; padding: 10px; font-size: 24px; letter-spacing: 5px; text-align: center;">%s</h3>
			<p>It is valid for 10 minutes.</p>
			<p>Thank you for registering with Plantify!</p>
		</body>
		</html>
	`, name, otp)

	return m.send(to, subject, body)
}

// SendPasswordResetEmail sends the reset link for a password change.
func (m *SMTPMailer) SendPasswordResetEmail(to, name, resetURL string) error {
	if name == "" {
		name = "User"
	}
	subject := "Reset Your Password - Plantify"
	body := fmt.Sprintf(`
		<html>
		<body>
			<p><strong>Hello, %s</strong></p>
			<p>We received a request to reset your password. Click below to set a new one:</p>
			<div style="margin: 20px 0;">
				<a href="%s" style="background-color: #4CAF50; color: white; padding: 10px 20px; border-radius: 5px; text-decoration: none;">Reset Password</a>
			</div>
			<p>If you did not request this, you can ignore this email.</p>
			<p style="font-size: 12px; color: #888;">This link is valid for 15 minutes.</p>
		</body>
		</html>
	`, name, resetURL)

	return m.send(to, subject, body)
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}
