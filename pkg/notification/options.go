package notification

import (
	"embed"
	"log/slog"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithNotifier registers a custom notifier, e.g. a MockNotifier in tests
func WithNotifier(system NotificationSystem, notifier Notifier) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(system, notifier)
		return nil
	}
}

// WithEmailChangeVerifyNewTemplate registers the link sent to the requested address
func WithEmailChangeVerifyNewTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(EmailChangeVerifyNewNotice, EmailSystem, NoticeTemplate{
			Subject: "Confirm your new email address",
			Text:    "Confirm {{.NewEmail}} as your new email address: {{.Link}}\nThe link expires in {{.ExpiresInHours}} hour(s).",
			Html:    loadTemplate("templates/email/email_change_verify_new.html"),
		})
	}
}

// WithEmailChangeVerifyOldTemplate registers the approval link sent to the current address
func WithEmailChangeVerifyOldTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(EmailChangeVerifyOldNotice, EmailSystem, NoticeTemplate{
			Subject: "Approve your email change",
			Text:    "Approve changing your email to {{.NewEmail}}: {{.Link}}\nThe link expires in {{.ExpiresInHours}} hour(s).",
			Html:    loadTemplate("templates/email/email_change_verify_old.html"),
		})
	}
}

// WithEmailChangeOtpTemplate registers the one-time code message
func WithEmailChangeOtpTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(EmailChangeOtpNotice, EmailSystem, NoticeTemplate{
			Subject: "Your email change code",
			Text:    "Your code is {{.Code}}. It expires in {{.ExpiresInHours}} hour(s).",
			Html:    loadTemplate("templates/email/email_change_otp.html"),
		})
	}
}

// WithEmailChangeConfirmedTemplate registers the notice sent after a change is applied
func WithEmailChangeConfirmedTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(EmailChangeConfirmedNotice, EmailSystem, NoticeTemplate{
			Subject: "Your email address was changed",
			Text:    "Your email address was changed from {{.OldEmail}} to {{.NewEmail}}.",
			Html:    loadTemplate("templates/email/email_change_confirmed.html"),
		})
	}
}

// WithEmailChangeCancelledTemplate registers the cancellation notice
func WithEmailChangeCancelledTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(EmailChangeCancelledNotice, EmailSystem, NoticeTemplate{
			Subject: "Email change cancelled",
			Text:    "The pending change of your email to {{.NewEmail}} was cancelled.",
			Html:    loadTemplate("templates/email/email_change_cancelled.html"),
		})
	}
}

// WithDefaultTemplates registers all default notification templates
func WithDefaultTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		options := []NotificationManagerOption{
			WithEmailChangeVerifyNewTemplate(),
			WithEmailChangeVerifyOldTemplate(),
			WithEmailChangeOtpTemplate(),
			WithEmailChangeConfirmedTemplate(),
			WithEmailChangeCancelledTemplate(),
		}

		for _, opt := range options {
			if err := opt(nm); err != nil {
				return err
			}
		}

		return nil
	}
}

// NewNotificationManagerWithOptions creates a new notification manager with the provided options
func NewNotificationManagerWithOptions(baseUrl string, opts ...NotificationManagerOption) (*NotificationManager, error) {
	notificationManager := NewNotificationManager(baseUrl)

	for _, opt := range opts {
		if err := opt(notificationManager); err != nil {
			return nil, err
		}
	}

	return notificationManager, nil
}
