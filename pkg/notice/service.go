package notice

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/tendant/simple-emailchange/pkg/emailchange"
	"github.com/tendant/simple-emailchange/pkg/notification"
)

// Sender is satisfied by *notification.NotificationManager
type Sender interface {
	Send(noticeType notification.NoticeType, data notification.NotificationData) error
}

// NewNotificationManager creates a manager that mails every email change notice over SMTP
func NewNotificationManager(baseUrl string, smtpConfig notification.SMTPConfig) (*notification.NotificationManager, error) {
	return notification.NewNotificationManagerWithOptions(baseUrl,
		notification.WithSMTP(smtpConfig),
		notification.WithDefaultTemplates(),
	)
}

// EmailChangeNotifier sends the messages of the email change flow
type EmailChangeNotifier struct {
	sender Sender
	now    func() time.Time
}

func NewEmailChangeNotifier(sender Sender) *EmailChangeNotifier {
	return &EmailChangeNotifier{sender: sender, now: time.Now}
}

// SendVerificationEmail mails the signed link to the new address and, when the
// signature is dual, the approval link to the current address.
func (n *EmailChangeNotifier) SendVerificationEmail(ctx context.Context, account emailchange.Account, newEmail string, signature *emailchange.EmailChangeSignature) error {
	data := map[string]string{
		"OldEmail":       account.GetEmail(),
		"NewEmail":       newEmail,
		"Link":           signature.SignedURL,
		"ExpiresInHours": strconv.Itoa(signature.ExpiresInHours()),
	}
	if err := n.send(notification.EmailChangeVerifyNewNotice, newEmail, data); err != nil {
		return err
	}

	if !signature.IsDual() {
		return nil
	}

	oldData := make(map[string]string, len(data))
	for k, v := range data {
		oldData[k] = v
	}
	oldData["Link"] = signature.OldEmailSignedURL
	return n.send(notification.EmailChangeVerifyOldNotice, account.GetEmail(), oldData)
}

// SendOtpEmail mails the one-time code to the new address
func (n *EmailChangeNotifier) SendOtpEmail(ctx context.Context, newEmail string, otp *emailchange.OtpResult) error {
	return n.send(notification.EmailChangeOtpNotice, newEmail, map[string]string{
		"NewEmail":       newEmail,
		"Code":           otp.Code,
		"ExpiresInHours": strconv.Itoa(n.hoursUntil(otp.ExpiresAt)),
	})
}

// SendEmailChangeConfirmation tells the previous address that the change happened
func (n *EmailChangeNotifier) SendEmailChangeConfirmation(ctx context.Context, oldEmail, newEmail string) error {
	return n.send(notification.EmailChangeConfirmedNotice, oldEmail, map[string]string{
		"OldEmail": oldEmail,
		"NewEmail": newEmail,
	})
}

// SendCancellationNotice tells the account holder a pending change was dropped
func (n *EmailChangeNotifier) SendCancellationNotice(ctx context.Context, account emailchange.Account, pendingEmail string) error {
	return n.send(notification.EmailChangeCancelledNotice, account.GetEmail(), map[string]string{
		"OldEmail": account.GetEmail(),
		"NewEmail": pendingEmail,
	})
}

func (n *EmailChangeNotifier) send(noticeType notification.NoticeType, to string, data map[string]string) error {
	if n.sender == nil {
		slog.Warn("Notification manager not configured, skipping email send", "type", noticeType)
		return nil
	}

	err := n.sender.Send(noticeType, notification.NotificationData{To: to, Data: data})
	if err != nil {
		return fmt.Errorf("failed to send %s notice: %w", noticeType, err)
	}
	return nil
}

func (n *EmailChangeNotifier) hoursUntil(t time.Time) int {
	hours := int(math.Ceil(t.Sub(n.now()).Hours()))
	if hours < 1 {
		return 1
	}
	return hours
}
