package emailchange

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOtpFixture(t *testing.T, length int, opts ...Option) (*OtpEmailChangeService, *testUser, *testClock, *recordingPublisher) {
	user := &testUser{id: "1", email: "old@x.com"}
	clock := newTestClock()
	events := &recordingPublisher{}

	generator, err := NewOtpGenerator(length)
	require.NoError(t, err)

	base := []Option{WithClock(clock.Now), WithEventPublisher(events)}
	service := NewOtpEmailChangeService(NewInMemEmailChangeRepository(newTestAccounts(user)), generator, append(base, opts...)...)
	return service, user, clock, events
}

// otherCode returns a code of the same length that differs from code
func otherCode(code string) string {
	n, _ := strconv.Atoi(code)
	next := strconv.Itoa(n + 1)
	if len(next) != len(code) {
		next = strconv.Itoa(n - 1)
	}
	return next
}

func TestOtpEmailChangeService_GenerateAndVerify(t *testing.T) {
	ctx := context.Background()
	service, user, clock, events := newOtpFixture(t, 6)

	result, err := service.GenerateOtp(ctx, user, "new@x.com")
	require.NoError(t, err)
	assert.Len(t, result.Code, 6)
	assert.Equal(t, clock.Now().Add(DefaultRequestLifetime), result.ExpiresAt)
	assert.Equal(t, 6, service.CodeLength())

	email, ok, err := service.GetPendingEmail(ctx, user)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new@x.com", email)

	oldEmail, err := service.VerifyOtp(ctx, user, result.Code)
	require.NoError(t, err)
	assert.Equal(t, "old@x.com", oldEmail)
	assert.Equal(t, "new@x.com", user.GetEmail())

	pending, err := service.HasPendingEmailChange(ctx, user)
	require.NoError(t, err)
	assert.False(t, pending)

	assert.Equal(t, []EventType{EventInitiated, EventConfirmed}, events.types())
}

func TestOtpEmailChangeService_WrongCodes(t *testing.T) {
	ctx := context.Background()

	t.Run("BelowLimitStillAccepted", func(t *testing.T) {
		service, user, _, _ := newOtpFixture(t, 6, WithMaxAttempts(6))
		result, err := service.GenerateOtp(ctx, user, "new@x.com")
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			_, err := service.VerifyOtp(ctx, user, otherCode(result.Code))
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.Equal(t, ReasonInvalidCode, Reason(err))
		}

		_, err = service.VerifyOtp(ctx, user, result.Code)
		require.NoError(t, err)
		assert.Equal(t, "new@x.com", user.GetEmail())
	})

	t.Run("LimitReached", func(t *testing.T) {
		service, user, _, events := newOtpFixture(t, 4, WithMaxAttempts(3))
		result, err := service.GenerateOtp(ctx, user, "new@x.com")
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			_, err := service.VerifyOtp(ctx, user, otherCode(result.Code))
			require.ErrorIs(t, err, ErrInvalidRequest)
		}
		_, err = service.VerifyOtp(ctx, user, otherCode(result.Code))
		require.ErrorIs(t, err, ErrTooManyAttempts)

		_, err = service.VerifyOtp(ctx, user, result.Code)
		require.ErrorIs(t, err, ErrInvalidRequest)
		assert.Equal(t, ReasonNoPendingChange, Reason(err))
		assert.Equal(t, "old@x.com", user.GetEmail())
		assert.Contains(t, events.types(), EventMaxAttemptsExceeded)
	})
}

func TestOtpEmailChangeService_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyCode", func(t *testing.T) {
		service, user, _, _ := newOtpFixture(t, 6)
		_, err := service.VerifyOtp(ctx, user, "")
		assert.Equal(t, ReasonMissingParameters, Reason(err))
	})

	t.Run("NoPendingChange", func(t *testing.T) {
		service, user, _, _ := newOtpFixture(t, 6)
		_, err := service.VerifyOtp(ctx, user, "123456")
		require.ErrorIs(t, err, ErrInvalidRequest)
		assert.Equal(t, ReasonNoPendingChange, Reason(err))
	})

	t.Run("Expired", func(t *testing.T) {
		service, user, clock, _ := newOtpFixture(t, 6)
		result, err := service.GenerateOtp(ctx, user, "new@x.com")
		require.NoError(t, err)

		clock.Advance(DefaultRequestLifetime)
		_, err = service.VerifyOtp(ctx, user, result.Code)
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("Throttled", func(t *testing.T) {
		service, user, clock, _ := newOtpFixture(t, 6)
		_, err := service.GenerateOtp(ctx, user, "new@x.com")
		require.NoError(t, err)

		clock.Advance(time.Minute)
		_, err = service.GenerateOtp(ctx, user, "new@x.com")
		assert.ErrorIs(t, err, ErrTooManyRequests)

		require.NoError(t, service.CancelEmailChange(ctx, user))
		_, err = service.GenerateOtp(ctx, user, "new@x.com")
		assert.NoError(t, err)
	})

	t.Run("MissingEmail", func(t *testing.T) {
		service, user, _, _ := newOtpFixture(t, 6)
		_, err := service.GenerateOtp(ctx, user, "")
		assert.Equal(t, ReasonMissingParameters, Reason(err))
	})
}

func TestNewOtpEmailChangeService_DefaultGenerator(t *testing.T) {
	service := NewOtpEmailChangeService(NewInMemEmailChangeRepository(nil), nil)
	assert.Equal(t, DefaultOtpLength, service.CodeLength())
}
