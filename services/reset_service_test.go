package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantify/plantify_backend/utils"
)

const testResetToken = "a3f8b2c91d4e5f60718293a4b5c6d7e8f9012345678901234567890abcdef012"

// newResetFixture reuses the OTP fixture's store and clock plumbing; only
// the service under test differs.
func newResetFixture(t *testing.T) (*ResetService, *fakeMailer, *otpFixture) {
	t.Helper()
	mr, store := newTestStore(t)

	f := &otpFixture{
		mr:    mr,
		clock: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	mailer := &fakeMailer{}

	service := NewResetService(store, mailer, "https://app.plantify.com")
	service.now = func() time.Time { return f.clock }
	service.generateToken = func() (string, error) { return testResetToken, nil }
	return service, mailer, f
}

func TestResetGenerateAndSend(t *testing.T) {
	service, mailer, f := newResetFixture(t)
	ctx := context.Background()

	result, err := service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Len(t, mailer.resets, 1)
	assert.Equal(t, testEmail, mailer.resets[0].to)
	assert.Equal(t,
		"https://app.plantify.com/reset-password?token="+testResetToken+"&email=user%40example.com",
		mailer.resets[0].body)

	// The stored value is the token's hash, not the token.
	storedHash, err := f.mr.Get("password_reset:" + testEmail)
	require.NoError(t, err)
	assert.Equal(t, utils.HashSecret(testResetToken), storedHash)
	assert.NotContains(t, mailer.resets[0].body, storedHash)
}

func TestResetCooldown(t *testing.T) {
	service, mailer, f := newResetFixture(t)
	ctx := context.Background()

	_, err := service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	f.advance(45 * time.Second)

	_, err = service.GenerateAndSend(ctx, testEmail, "Test User")
	fe, ok := AsFlowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeResetCooldown, fe.Code)
	assert.Equal(t, "Please wait 15s before requesting another reset link.", fe.Message)
	assert.Len(t, mailer.resets, 1)

	f.advance(16 * time.Second)
	_, err = service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)
	assert.Len(t, mailer.resets, 2)
}

func TestResetRateLimit(t *testing.T) {
	service, mailer, f := newResetFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := service.GenerateAndSend(ctx, testEmail, "Test User")
		require.NoError(t, err, "issue %d", i+1)
		f.advance(61 * time.Second)
	}

	_, err := service.GenerateAndSend(ctx, testEmail, "Test User")
	fe, ok := AsFlowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeResetRateLimit, fe.Code)
	assert.Len(t, mailer.resets, 3)

	// The 15-minute window expires and issuance recovers.
	f.advance(15 * time.Minute)
	_, err = service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)
}

func TestResetMailFailureRollsBack(t *testing.T) {
	service, mailer, f := newResetFixture(t)
	mailer.fail = true
	ctx := context.Background()

	_, err := service.GenerateAndSend(ctx, testEmail, "Test User")
	fe, ok := AsFlowError(err)
	require.True(t, ok)
	assert.Equal(t, CodeEmailSendFailed, fe.Code)

	assert.False(t, f.mr.Exists("password_reset:"+testEmail))
	assert.False(t, f.mr.Exists("password_reset:count:"+testEmail))
	assert.False(t, f.mr.Exists("password_reset:rate:"+testEmail))
}

func TestResetVerifyToken(t *testing.T) {
	service, _, f := newResetFixture(t)
	ctx := context.Background()

	_, err := service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	// A wrong token is rejected and leaves the real one usable.
	wrong := strings.Repeat("0", 64)
	valid, err := service.VerifyToken(ctx, testEmail, wrong)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.True(t, f.mr.Exists("password_reset:"+testEmail))

	valid, err = service.VerifyToken(ctx, testEmail, testResetToken)
	require.NoError(t, err)
	assert.True(t, valid)

	// A successful match consumes the token.
	assert.False(t, f.mr.Exists("password_reset:"+testEmail))
	valid, err = service.VerifyToken(ctx, testEmail, testResetToken)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestResetVerifyTokenExpired(t *testing.T) {
	service, _, f := newResetFixture(t)
	ctx := context.Background()

	_, err := service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	f.advance(15*time.Minute + time.Second)

	valid, err := service.VerifyToken(ctx, testEmail, testResetToken)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestResetReissueReplacesToken(t *testing.T) {
	service, _, f := newResetFixture(t)
	ctx := context.Background()

	_, err := service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	f.advance(61 * time.Second)

	second := strings.Repeat("f", 64)
	service.generateToken = func() (string, error) { return second, nil }
	_, err = service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	// Only the most recent token is valid.
	valid, err := service.VerifyToken(ctx, testEmail, testResetToken)
	require.NoError(t, err)
	assert.False(t, valid)

	valid, err = service.VerifyToken(ctx, testEmail, second)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestResetClearData(t *testing.T) {
	service, _, f := newResetFixture(t)
	ctx := context.Background()

	_, err := service.GenerateAndSend(ctx, testEmail, "Test User")
	require.NoError(t, err)

	require.NoError(t, service.ClearData(ctx, testEmail))
	assert.False(t, f.mr.Exists("password_reset:"+testEmail))
	assert.False(t, f.mr.Exists("password_reset:rate:"+testEmail))
	assert.False(t, f.mr.Exists("password_reset:count:"+testEmail))

	// Even the previously issued token is dead after cleanup.
	valid, err := service.VerifyToken(ctx, testEmail, testResetToken)
	require.NoError(t, err)
	assert.False(t, valid)

	// Clearing an already-clean email is a no-op.
	require.NoError(t, service.ClearData(ctx, testEmail))
}
