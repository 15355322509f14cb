// Package notification delivers templated notices through pluggable notifiers.
//
// A NotificationManager maps each NoticeType to one template per
// NotificationSystem and routes Send calls to the notifier registered for
// that system. Email is delivered over SMTP with go-mail; templates use
// text/template for subjects and plain bodies and html/template for HTML.
//
// # Basic Usage
//
//	manager, err := notification.NewNotificationManagerWithOptions(
//		"https://app.example.com",
//		notification.WithSMTP(notification.SMTPConfig{
//			Host: "localhost",
//			Port: 1025,
//			From: "noreply@example.com",
//		}),
//		notification.WithDefaultTemplates(),
//	)
//	if err != nil {
//		return err
//	}
//
//	err = manager.Send(notification.EmailChangeVerifyNewNotice, notification.NotificationData{
//		To: "new@example.com",
//		Data: map[string]string{
//			"NewEmail":       "new@example.com",
//			"Link":           signedURL,
//			"ExpiresInHours": "1",
//		},
//	})
//
// # Testing
//
// MockNotifier records what would have been sent:
//
//	mock := &notification.MockNotifier{}
//	manager, _ := notification.NewNotificationManagerWithOptions("",
//		notification.WithNotifier(notification.EmailSystem, mock),
//		notification.WithDefaultTemplates(),
//	)
package notification
