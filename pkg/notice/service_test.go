package notice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-emailchange/pkg/emailchange"
	"github.com/tendant/simple-emailchange/pkg/notification"
)

type account struct{ email string }

func (a *account) GetID() string         { return "1" }
func (a *account) GetEmail() string      { return a.email }
func (a *account) SetEmail(email string) { a.email = email }

func newTestNotifier(t *testing.T) (*EmailChangeNotifier, *notification.MockNotifier) {
	mock := &notification.MockNotifier{}
	manager, err := notification.NewNotificationManagerWithOptions("https://app.example.com",
		notification.WithNotifier(notification.EmailSystem, mock),
		notification.WithDefaultTemplates(),
	)
	require.NoError(t, err)
	return NewEmailChangeNotifier(manager), mock
}

func signFor(t *testing.T, dual bool) *emailchange.EmailChangeSignature {
	builder, err := emailchange.NewRouteURLBuilder("https://app.example.com", map[string]string{"verify": "/verify"})
	require.NoError(t, err)

	user := &account{email: "old@x.com"}
	lookup := emailchange.AccountLookupFunc(func(ctx context.Context, id string) (emailchange.Account, error) { return user, nil })
	service := emailchange.NewEmailChangeService(emailchange.NewInMemEmailChangeRepository(lookup), builder,
		emailchange.WithRequireOldEmailConfirmation(dual))

	signature, err := service.GenerateSignature(context.Background(), "verify", user, "new@x.com", nil)
	require.NoError(t, err)
	return signature
}

func TestEmailChangeNotifier_SendVerificationEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("Single", func(t *testing.T) {
		notifier, mock := newTestNotifier(t)
		signature := signFor(t, false)

		require.NoError(t, notifier.SendVerificationEmail(ctx, &account{email: "old@x.com"}, "new@x.com", signature))

		sent := mock.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "new@x.com", sent[0].To)
		assert.Equal(t, signature.SignedURL, sent[0].Data["Link"])
		assert.Equal(t, "1", sent[0].Data["ExpiresInHours"])
	})

	t.Run("Dual", func(t *testing.T) {
		notifier, mock := newTestNotifier(t)
		signature := signFor(t, true)

		require.NoError(t, notifier.SendVerificationEmail(ctx, &account{email: "old@x.com"}, "new@x.com", signature))

		sent := mock.Sent()
		require.Len(t, sent, 2)
		assert.Equal(t, "new@x.com", sent[0].To)
		assert.Equal(t, signature.SignedURL, sent[0].Data["Link"])
		assert.Equal(t, "old@x.com", sent[1].To)
		assert.Equal(t, signature.OldEmailSignedURL, sent[1].Data["Link"])
		assert.Equal(t, []notification.NoticeType{notification.EmailChangeVerifyNewNotice, notification.EmailChangeVerifyOldNotice}, mock.SentTypes)
	})
}

func TestEmailChangeNotifier_OtherNotices(t *testing.T) {
	ctx := context.Background()
	notifier, mock := newTestNotifier(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	notifier.now = func() time.Time { return now }

	require.NoError(t, notifier.SendOtpEmail(ctx, "new@x.com", &emailchange.OtpResult{Code: "482913", ExpiresAt: now.Add(90 * time.Minute)}))
	require.NoError(t, notifier.SendEmailChangeConfirmation(ctx, "old@x.com", "new@x.com"))
	require.NoError(t, notifier.SendCancellationNotice(ctx, &account{email: "old@x.com"}, "new@x.com"))

	sent := mock.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "482913", sent[0].Data["Code"])
	assert.Equal(t, "2", sent[0].Data["ExpiresInHours"])
	assert.Equal(t, "old@x.com", sent[1].To)
	assert.Equal(t, "old@x.com", sent[2].To)
	assert.Equal(t, "new@x.com", sent[2].Data["NewEmail"])
}

func TestEmailChangeNotifier_WithoutSender(t *testing.T) {
	notifier := NewEmailChangeNotifier(nil)
	assert.NoError(t, notifier.SendEmailChangeConfirmation(context.Background(), "old@x.com", "new@x.com"))
}
