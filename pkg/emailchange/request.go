package emailchange

import (
	"time"

	"github.com/google/uuid"
)

// EmailChangeRequest is one in-flight email change attempt for an account.
// Only hashes of the secrets are stored.
type EmailChangeRequest struct {
	ID                  uuid.UUID `json:"id"`
	AccountIdentifier   string    `json:"account_identifier"`
	Selector            string    `json:"selector"`
	HashedToken         string    `json:"hashed_token"`
	RequestedAt         time.Time `json:"requested_at"`
	ExpiresAt           time.Time `json:"expires_at"`
	NewEmail            string    `json:"new_email"`
	Attempts            int       `json:"attempts"`
	OldEmailSelector    string    `json:"old_email_selector,omitempty"`
	OldEmailHashedToken string    `json:"old_email_hashed_token,omitempty"`
	ConfirmedByNewEmail bool      `json:"confirmed_by_new_email"`
	ConfirmedByOldEmail bool      `json:"confirmed_by_old_email"`
}

// NewEmailChangeRequest creates a request for the account, stamped with now
func NewEmailChangeRequest(account Account, expiresAt time.Time, selector, hashedToken, newEmail string, now time.Time) *EmailChangeRequest {
	return &EmailChangeRequest{
		ID:                uuid.New(),
		AccountIdentifier: AccountIdentifier(account),
		Selector:          selector,
		HashedToken:       hashedToken,
		RequestedAt:       now.UTC(),
		ExpiresAt:         expiresAt.UTC(),
		NewEmail:          newEmail,
	}
}

// IsExpired reports whether the request is past its expiry. A request expiring exactly at now is expired.
func (r *EmailChangeRequest) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// IncrementAttempts records one failed verification
func (r *EmailChangeRequest) IncrementAttempts() {
	r.Attempts++
}

// SetOldEmailToken attaches the old-address verification channel
func (r *EmailChangeRequest) SetOldEmailToken(selector, hashedToken string) {
	r.OldEmailSelector = selector
	r.OldEmailHashedToken = hashedToken
}

// HasOldEmailToken reports whether the request carries an old-address channel
func (r *EmailChangeRequest) HasOldEmailToken() bool {
	return r.OldEmailSelector != "" && r.OldEmailHashedToken != ""
}

func (r *EmailChangeRequest) MarkConfirmedByNewEmail(confirmed bool) {
	r.ConfirmedByNewEmail = confirmed
}

func (r *EmailChangeRequest) MarkConfirmedByOldEmail(confirmed bool) {
	r.ConfirmedByOldEmail = confirmed
}

// IsFullyConfirmed is always true in single mode. With requireOldEmail both
// addresses must have confirmed, in any order.
func (r *EmailChangeRequest) IsFullyConfirmed(requireOldEmail bool) bool {
	if !requireOldEmail {
		return true
	}
	return r.ConfirmedByNewEmail && r.ConfirmedByOldEmail
}

func (r *EmailChangeRequest) clone() *EmailChangeRequest {
	c := *r
	return &c
}
