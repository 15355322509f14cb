package api

import "time"

// InitiateRequest starts a link or code based email change
type InitiateRequest struct {
	NewEmail string `json:"new_email"`
}

// VerifyOtpRequest carries the code sent to the new address
type VerifyOtpRequest struct {
	Code string `json:"code"`
}

// InitiatedData is returned when a link based change was started
type InitiatedData struct {
	NewEmail                     string    `json:"new_email"`
	ExpiresAt                    time.Time `json:"expires_at"`
	ExpiresInHours               int       `json:"expires_in_hours"`
	RequiresOldEmailConfirmation bool      `json:"requires_old_email_confirmation"`
}

// OtpSentData is returned when a code was sent to the new address
type OtpSentData struct {
	NewEmail  string    `json:"new_email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidatedData is returned when one of two required confirmations was recorded
type ValidatedData struct {
	RequiresOldEmailConfirmation bool `json:"requires_old_email_confirmation"`
	ConfirmedByNewEmail          bool `json:"confirmed_by_new_email"`
	ConfirmedByOldEmail          bool `json:"confirmed_by_old_email"`
}

// ConfirmedData is returned once the account email was changed
type ConfirmedData struct {
	OldEmail string `json:"old_email"`
	NewEmail string `json:"new_email"`
}

// PendingStatus describes the live request of the caller. Field names follow
// EmailChangeRequest so it can be filled with copier; the times are set by hand.
type PendingStatus struct {
	HasPending          bool       `json:"has_pending"`
	NewEmail            string     `json:"pending_email,omitempty"`
	RequestedAt         *time.Time `json:"requested_at,omitempty" copier:"-"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty" copier:"-"`
	ConfirmedByNewEmail bool       `json:"confirmed_by_new_email"`
	ConfirmedByOldEmail bool       `json:"confirmed_by_old_email"`
}
