package notification

// NotificationSystem represents a delivery channel (e.g., email)
type NotificationSystem string

// NoticeType identifies a kind of message (e.g., "email_change_verify_new")
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"

	EmailChangeVerifyNewNotice NoticeType = "email_change_verify_new"
	EmailChangeVerifyOldNotice NoticeType = "email_change_verify_old"
	EmailChangeOtpNotice       NoticeType = "email_change_otp"
	EmailChangeConfirmedNotice NoticeType = "email_change_confirmed"
	EmailChangeCancelledNotice NoticeType = "email_change_cancelled"
)

type NotificationData struct {
	To      string            // Recipient address
	Subject string            // Optional: overrides the template subject
	Body    string            // Optional: plain content when no template text is set
	Data    map[string]string // Template variables
}

// NoticeTemplate holds the subject and bodies rendered with NotificationData.Data
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
