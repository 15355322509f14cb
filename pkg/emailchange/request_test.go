package emailchange

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestRequest(now time.Time) *EmailChangeRequest {
	user := &testUser{id: "1", email: "old@x.com"}
	return NewEmailChangeRequest(user, now.Add(time.Hour), "selector", "hash", "new@x.com", now)
}

func TestNewEmailChangeRequest(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRequest(now)

	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, "user::1", r.AccountIdentifier)
	assert.Equal(t, now, r.RequestedAt)
	assert.Equal(t, now.Add(time.Hour), r.ExpiresAt)
	assert.Equal(t, "new@x.com", r.NewEmail)
	assert.Zero(t, r.Attempts)
	assert.False(t, r.HasOldEmailToken())
	assert.False(t, r.ConfirmedByNewEmail)
	assert.False(t, r.ConfirmedByOldEmail)
}

func TestEmailChangeRequest_IsExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRequest(now)

	t.Run("OneSecondInThePast", func(t *testing.T) {
		r.ExpiresAt = now.Add(-time.Second)
		assert.True(t, r.IsExpired(now))
	})

	t.Run("OneSecondInTheFuture", func(t *testing.T) {
		r.ExpiresAt = now.Add(time.Second)
		assert.False(t, r.IsExpired(now))
	})

	t.Run("ExactlyNow", func(t *testing.T) {
		r.ExpiresAt = now
		assert.True(t, r.IsExpired(now))
	})
}

func TestEmailChangeRequest_IncrementAttempts(t *testing.T) {
	r := newTestRequest(time.Now())
	for i := 1; i <= 3; i++ {
		r.IncrementAttempts()
		assert.Equal(t, i, r.Attempts)
	}
}

func TestEmailChangeRequest_IsFullyConfirmed(t *testing.T) {
	r := newTestRequest(time.Now())
	r.SetOldEmailToken("old-selector", "old-hash")
	assert.True(t, r.HasOldEmailToken())

	assert.True(t, r.IsFullyConfirmed(false))
	assert.False(t, r.IsFullyConfirmed(true))

	r.MarkConfirmedByOldEmail(true)
	assert.False(t, r.IsFullyConfirmed(true))

	r.MarkConfirmedByNewEmail(true)
	assert.True(t, r.IsFullyConfirmed(true))

	r.MarkConfirmedByOldEmail(false)
	assert.False(t, r.IsFullyConfirmed(true))
}

type plainAccount struct{ id, email string }

func (a *plainAccount) GetID() string         { return a.id }
func (a *plainAccount) GetEmail() string      { return a.email }
func (a *plainAccount) SetEmail(email string) { a.email = email }

func TestAccountIdentifier(t *testing.T) {
	assert.Equal(t, "user::42", AccountIdentifier(&testUser{id: "42"}))
	assert.Equal(t, "emailchange.plainAccount::7", AccountIdentifier(&plainAccount{id: "7"}))

	kind, id, err := SplitAccountIdentifier("user::42")
	assert.NoError(t, err)
	assert.Equal(t, "user", kind)
	assert.Equal(t, "42", id)

	_, _, err = SplitAccountIdentifier("user-42")
	assert.Error(t, err)
}
