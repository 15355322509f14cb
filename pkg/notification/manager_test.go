package notification

import (
	"errors"
	"testing"
)

func TestNewNotificationManager(t *testing.T) {
	nm := NewNotificationManager("https://app.example.com")
	if nm == nil {
		t.Fatal("NewNotificationManager returned nil")
	}
	if nm.notifiers == nil {
		t.Error("notifiers map not initialized")
	}
	if nm.notificationRegistry == nil {
		t.Error("notificationRegistry map not initialized")
	}
	if nm.BaseUrl != "https://app.example.com" {
		t.Errorf("BaseUrl = %s", nm.BaseUrl)
	}
}

func TestRegisterNotifier(t *testing.T) {
	nm := NewNotificationManager("")
	mockNotifier := &MockNotifier{}

	nm.RegisterNotifier(EmailSystem, mockNotifier)
	if n, exists := nm.notifiers[EmailSystem]; !exists {
		t.Error("Notifier not registered")
	} else if n != mockNotifier {
		t.Error("Wrong notifier registered")
	}

	// Test overwriting existing notifier
	newMockNotifier := &MockNotifier{}
	nm.RegisterNotifier(EmailSystem, newMockNotifier)
	if n := nm.notifiers[EmailSystem]; n != newMockNotifier {
		t.Error("Notifier not overwritten")
	}
}

func TestRegisterNotification(t *testing.T) {
	nm := NewNotificationManager("")

	tests := []struct {
		name        string
		notifType   NoticeType
		system      NotificationSystem
		template    NoticeTemplate
		shouldError bool
	}{
		{
			name:      "Valid registration with both Text and Html",
			notifType: EmailChangeVerifyNewNotice,
			system:    EmailSystem,
			template:  NoticeTemplate{Subject: "Confirm your new email address", Text: "Open {{.Link}} to confirm the change.", Html: "<p>Open <a href=\"{{.Link}}\">this link</a> to confirm the change.</p>"},
		},
		{
			name:      "Valid registration with Text only",
			notifType: EmailChangeOtpNotice,
			system:    EmailSystem,
			template:  NoticeTemplate{Subject: "Confirm your new email address", Text: "Open {{.Link}} to confirm the change."},
		},
		{
			name:      "Valid registration with Html only",
			notifType: EmailChangeOtpNotice,
			system:    EmailSystem,
			template:  NoticeTemplate{Subject: "Confirm your new email address", Html: "<p>Open <a href=\"{{.Link}}\">this link</a> to confirm the change.</p>"},
		},
		{
			name:        "Empty notification type",
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "Confirm your new email address", Text: "Open {{.Link}} to confirm the change."},
			shouldError: true,
		},
		{
			name:        "Empty system",
			notifType:   EmailChangeOtpNotice,
			template:    NoticeTemplate{Subject: "Confirm your new email address", Text: "Open {{.Link}} to confirm the change."},
			shouldError: true,
		},
		{
			name:        "Empty subject",
			notifType:   EmailChangeOtpNotice,
			system:      EmailSystem,
			template:    NoticeTemplate{Text: "Open {{.Link}} to confirm the change."},
			shouldError: true,
		},
		{
			name:        "No content",
			notifType:   EmailChangeOtpNotice,
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "Confirm your new email address"},
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := nm.RegisterNotification(tt.notifType, tt.system, tt.template)
			if tt.shouldError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if !tt.shouldError {
				if template, exists := nm.notificationRegistry[tt.notifType][tt.system]; !exists {
					t.Error("Template not registered")
				} else if template != tt.template {
					t.Errorf("Wrong template registered. Got %+v, want %+v", template, tt.template)
				}
			}
		})
	}
}

func TestSend(t *testing.T) {
	mockNotifier := &MockNotifier{}
	nm, err := NewNotificationManagerWithOptions("",
		WithNotifier(EmailSystem, mockNotifier),
		WithDefaultTemplates(),
	)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	testData := NotificationData{
		To:   "new@example.com",
		Data: map[string]string{"NewEmail": "new@example.com", "Link": "https://app.example.com/verify"},
	}

	if err := nm.Send(EmailChangeVerifyNewNotice, testData); err != nil {
		t.Fatalf("Failed to send notification: %v", err)
	}

	sent := mockNotifier.Sent()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(sent))
	}
	if sent[0].To != testData.To {
		t.Errorf("Notification sent to %s, want %s", sent[0].To, testData.To)
	}
	if mockNotifier.SentTypes[0] != EmailChangeVerifyNewNotice {
		t.Errorf("Notification type %s, want %s", mockNotifier.SentTypes[0], EmailChangeVerifyNewNotice)
	}
}

func TestSendErrors(t *testing.T) {
	nm := NewNotificationManager("")

	if err := nm.Send("unregistered", NotificationData{}); err == nil {
		t.Error("Expected error for unregistered notification type")
	}

	err := nm.RegisterNotification(EmailChangeOtpNotice, EmailSystem, NoticeTemplate{Subject: "Your verification code", Html: "<p>{{.Code}}</p>"})
	if err != nil {
		t.Fatalf("Failed to register notification: %v", err)
	}

	err = nm.Send(EmailChangeOtpNotice, NotificationData{})
	if err == nil {
		t.Error("Expected error for missing notifier")
	} else if err.Error() != "no notifier registered for system: email" {
		t.Errorf("Unexpected error message: %v", err)
	}

	failing := &MockNotifier{Err: errors.New("smtp down")}
	nm.RegisterNotifier(EmailSystem, failing)
	if err := nm.Send(EmailChangeOtpNotice, NotificationData{To: "a@example.com"}); !errors.Is(err, failing.Err) {
		t.Errorf("Expected wrapped notifier error, got %v", err)
	}
}

func TestDefaultTemplatesAreEmbedded(t *testing.T) {
	nm, err := NewNotificationManagerWithOptions("", WithDefaultTemplates())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	for _, noticeType := range []NoticeType{
		EmailChangeVerifyNewNotice,
		EmailChangeVerifyOldNotice,
		EmailChangeOtpNotice,
		EmailChangeConfirmedNotice,
		EmailChangeCancelledNotice,
	} {
		template := nm.notificationRegistry[noticeType][EmailSystem]
		if template.Html == "" {
			t.Errorf("HTML template for %s is empty", noticeType)
		}
	}
}
