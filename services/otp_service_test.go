package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantify/plantify_backend/utils"
)

const testEmail = "user@example.com"

func newTestStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStore(client)
}

type sentMail struct {
	to   string
	name string
	body string
}

type fakeMailer struct {
	otps   []sentMail
	resets []sentMail
	fail   bool
}

func (m *fakeMailer) SendOTPEmail(to, name, otp string) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.otps = append(m.otps, sentMail{to: to, name: name, body: otp})
	return nil
}

func (m *fakeMailer) SendPasswordResetEmail(to, name, resetURL string) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.resets = append(m.resets, sentMail{to: to, name: name, body: resetURL})
	return nil
}

type fakeVerifier struct {
	verified []string
	err      error
}

func (v *fakeVerifier) MarkEmailVerified(_ context.Context, email string) error {
	if v.err != nil {
		return v.err
	}
	v.verified = append(v.verified, email)
	return nil
}

type otpFixture struct {
	mr      *miniredis.Miniredis
	service *OTPService
	mailer  *fakeMailer
	users   *fakeVerifier
	clock   time.Time
}

func newOTPFixture(t *testing.T) *otpFixture {
	t.Helper()
	mr, store := newTestStore(t)

	f := &otpFixture{
		mr:     mr,
		mailer: &fakeMailer{},
		users:  &fakeVerifier{},
		clock:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	f.service = NewOTPService(store, f.mailer, f.users)
	f.service.logger = log.New(os.Stderr, "[OTP] ", log.LstdFlags)
	f.service.now = func() time.Time { return f.clock }
	f.service.generateCode = func() (string, error) { return "123456", nil }
	return f
}

// advance moves both the injected clock and miniredis's TTL clock.
func (f *otpFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
	f.mr.FastForward(d)
}

func TestOTPGenerateAndSend(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	result, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, testEmail, result.Email)

	require.Len(t, f.mailer.otps, 1)
	assert.Equal(t, testEmail, f.mailer.otps[0].to)
	assert.Equal(t, "123456", f.mailer.otps[0].body)

	// Only the hash is at rest, never the plaintext code.
	storedHash, err := f.mr.Get("otp:register:" + testEmail)
	require.NoError(t, err)
	assert.Equal(t, utils.HashSecret("123456"), storedHash)
	assert.NotContains(t, storedHash, "123456")

	count, err := f.mr.Get("otp:register:count:" + testEmail)
	require.NoError(t, err)
	assert.Equal(t, "1", count)
	assert.True(t, f.mr.Exists("otp:register:last:"+testEmail))
}

func TestOTPCooldown(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	f.advance(20 * time.Second)

	_, err = f.service.GenerateAndSend(ctx, testEmail, "Test User")
	fe, ok := AsFlowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeOTPCooldown, fe.Code)
	assert.Equal(t, "Please wait 40s before requesting another code.", fe.Message)
	assert.Len(t, f.mailer.otps, 1)

	// Once the cooldown passes a new code goes out.
	f.advance(41 * time.Second)
	_, err = f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)
	assert.Len(t, f.mailer.otps, 2)
}

func TestOTPCooldownRoundsUp(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	// 100ms of the last second remain: the wait must round up, never to 0.
	f.advance(59*time.Second + 900*time.Millisecond)

	_, err = f.service.GenerateAndSend(ctx, testEmail, "Test User")
	fe, ok := AsFlowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeOTPCooldown, fe.Code)
	assert.Equal(t, "Please wait 1s before requesting another code.", fe.Message)
}

func TestOTPRateLimit(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
		require.NoError(t, err, "issue %d", i+1)
		f.advance(61 * time.Second)
	}

	_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	fe, ok := AsFlowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeOTPRateLimit, fe.Code)
	assert.Len(t, f.mailer.otps, 3)

	// The 10-minute window expires and issuance recovers.
	f.advance(10 * time.Minute)
	_, err = f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)
}

func TestOTPGenerateWhileLocked(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	require.NoError(t, f.mr.Set("otp:register:lock:"+testEmail, "1"))
	f.mr.SetTTL("otp:register:lock:"+testEmail, 10*time.Minute)

	_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	fe, ok := AsFlowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeAccountLocked, fe.Code)
	assert.Empty(t, f.mailer.otps)
}

func TestOTPMailFailureRollsBack(t *testing.T) {
	f := newOTPFixture(t)
	f.mailer.fail = true
	ctx := context.Background()

	_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	fe, ok := AsFlowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeEmailSendFailed, fe.Code)

	// No half-issued state may survive a failed send.
	assert.False(t, f.mr.Exists("otp:register:"+testEmail))
	assert.False(t, f.mr.Exists("otp:register:count:"+testEmail))
	assert.False(t, f.mr.Exists("otp:register:last:"+testEmail))

	// The failed attempt does not count toward cooldown or rate limit.
	f.mailer.fail = false
	_, err = f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)
}

func TestOTPVerifySuccess(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	result, err := f.service.Verify(ctx, testEmail, "123456")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{testEmail}, f.users.verified)

	// Every workflow key is gone after success.
	for _, key := range []string{
		"otp:register:" + testEmail,
		"otp:register:count:" + testEmail,
		"otp:register:last:" + testEmail,
		"otp:register:fail:" + testEmail,
	} {
		assert.False(t, f.mr.Exists(key), key)
	}
}

func TestOTPCodeIsSingleUse(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	result, err := f.service.Verify(ctx, testEmail, "123456")
	require.NoError(t, err)
	require.True(t, result.Success)

	result, err = f.service.Verify(ctx, testEmail, "123456")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, CodeOTPExpired, result.Code)
}

func TestOTPVerifyExpired(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	f.advance(10*time.Minute + time.Second)

	result, err := f.service.Verify(ctx, testEmail, "123456")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, CodeOTPExpired, result.Code)
}

func TestOTPVerifyWrongCode(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	result, err := f.service.Verify(ctx, testEmail, "654321")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, CodeOTPIncorrect, result.Code)
	assert.Equal(t, "Incorrect verification code. 4 attempts remaining.", result.Message)

	// The correct code still works after a mistake.
	result, err = f.service.Verify(ctx, testEmail, "123456")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestOTPLockoutAfterFiveFailures(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		result, err := f.service.Verify(ctx, testEmail, "000000")
		require.NoError(t, err)
		assert.Equal(t, CodeOTPIncorrect, result.Code)
		assert.Equal(t, fmt.Sprintf("Incorrect verification code. %d attempts remaining.", 5-i), result.Message)
	}

	result, err := f.service.Verify(ctx, testEmail, "000000")
	require.NoError(t, err)
	assert.Equal(t, CodeAccountLocked, result.Code)

	// The stored code is burned with the lock, so even the right code is
	// rejected and new issuance is blocked.
	assert.False(t, f.mr.Exists("otp:register:"+testEmail))
	assert.True(t, f.mr.Exists("otp:register:lock:"+testEmail))

	result, err = f.service.Verify(ctx, testEmail, "123456")
	require.NoError(t, err)
	assert.Equal(t, CodeOTPExpired, result.Code)

	_, err = f.service.GenerateAndSend(ctx, testEmail, "Test User")
	fe, ok := AsFlowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeAccountLocked, fe.Code)

	// The lock expires after ten minutes and issuance recovers.
	f.advance(10*time.Minute + time.Second)
	_, err = f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)
}

func TestOTPMalformedInputDoesNotCountAsFailure(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	for _, bad := range []string{"12", "12", "12", "abcdef", "1234567", ""} {
		result, err := f.service.Verify(ctx, testEmail, bad)
		require.NoError(t, err)
		assert.Equal(t, CodeInvalidFormat, result.Code)
	}

	assert.False(t, f.mr.Exists("otp:register:fail:"+testEmail))

	result, err := f.service.Verify(ctx, testEmail, "123456")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestOTPVerifyPersistenceFailure(t *testing.T) {
	f := newOTPFixture(t)
	f.users.err = errors.New("write concern failure")
	ctx := context.Background()

	_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	result, err := f.service.Verify(ctx, testEmail, "123456")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, CodeDBError, result.Code)
}

func TestOTPIsolationBetweenEmails(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	_, err := f.service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	// Another address is not affected by the first one's cooldown.
	_, err = f.service.GenerateAndSend(ctx, "other@example.com", "Other User")
	require.NoError(t, err)
	assert.Len(t, f.mailer.otps, 2)
}
