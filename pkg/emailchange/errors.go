package emailchange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidRequest is matched by every InvalidRequestError
	ErrInvalidRequest = errors.New("invalid email change request")

	// ErrExpired is returned when a link or code was valid but its window has passed
	ErrExpired = errors.New("email change request has expired")

	// ErrTooManyRequests is returned when the account already has a live request
	ErrTooManyRequests = errors.New("email change already requested")

	// ErrTooManyAttempts is returned when failed verifications reached the limit.
	// The request has been deleted.
	ErrTooManyAttempts = errors.New("too many verification attempts")

	// ErrEmailAlreadyInUse is returned when another account owns the new address
	ErrEmailAlreadyInUse = errors.New("email address already in use")

	// ErrSameEmail is returned when the new address equals the current one
	ErrSameEmail = errors.New("new email is identical to the current one")
)

// Repository errors
var (
	// ErrRequestNotFound is returned by repositories when no request matches
	ErrRequestNotFound = errors.New("email change request not found")

	// ErrDuplicateRequest is returned by repositories that enforce one request per account atomically
	ErrDuplicateRequest = errors.New("email change request already exists for account")

	// ErrAccountNotFound is returned when the account owning a request cannot be resolved
	ErrAccountNotFound = errors.New("account not found")
)

const (
	ReasonMissingParameters   = "Missing or invalid verification parameters."
	ReasonInvalidLink         = "Invalid verification link."
	ReasonInvalidToken        = "Invalid verification token."
	ReasonInvalidCode         = "Invalid verification code."
	ReasonUserNotFound        = "User not found."
	ReasonNoPendingChange     = "No pending email change found."
	ReasonRequiresBothConfirm = "Email change requires confirmation from both old and new email addresses."
)

// InvalidRequestError covers malformed parameters, unknown selectors, wrong secrets and
// unresolvable accounts. Reason is safe to show to the caller.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string { return e.Reason }

func (e *InvalidRequestError) Is(target error) bool { return target == ErrInvalidRequest }

func invalidRequest(reason string) error {
	return &InvalidRequestError{Reason: reason}
}

// ExpiredError is returned when the request exists but has expired
type ExpiredError struct{}

func (e *ExpiredError) Error() string {
	return "The email change link has expired. Please request a new one."
}

func (e *ExpiredError) Is(target error) bool { return target == ErrExpired }

// TooManyRequestsError carries the time from which a new request will be accepted
type TooManyRequestsError struct {
	AvailableAt time.Time
}

func (e *TooManyRequestsError) Error() string {
	return fmt.Sprintf("You have already requested an email change. Please wait until %s before trying again.",
		e.AvailableAt.Format("2006-01-02 15:04:05"))
}

func (e *TooManyRequestsError) Is(target error) bool { return target == ErrTooManyRequests }

// TooManyAttemptsError is terminal for the request it was raised for
type TooManyAttemptsError struct {
	MaxAttempts int
}

func (e *TooManyAttemptsError) Error() string {
	return fmt.Sprintf("Too many verification attempts. The request has been invalidated after %d failed attempts.", e.MaxAttempts)
}

func (e *TooManyAttemptsError) Is(target error) bool { return target == ErrTooManyAttempts }

type EmailAlreadyInUseError struct {
	Email string
}

func (e *EmailAlreadyInUseError) Error() string { return "This email address is already in use." }

func (e *EmailAlreadyInUseError) Is(target error) bool { return target == ErrEmailAlreadyInUse }

type SameEmailError struct {
	Email string
}

func (e *SameEmailError) Error() string {
	return "The new email address is identical to the current one."
}

func (e *SameEmailError) Is(target error) bool { return target == ErrSameEmail }

// CheckNewEmail is an optional pre-check for callers before GenerateSignature or GenerateOtp
func CheckNewEmail(account Account, newEmail string) error {
	if strings.TrimSpace(newEmail) == "" {
		return invalidRequest(ReasonMissingParameters)
	}
	if strings.EqualFold(strings.TrimSpace(account.GetEmail()), strings.TrimSpace(newEmail)) {
		return &SameEmailError{Email: newEmail}
	}
	return nil
}

// Kind returns a stable identifier for the error variant, or "" for errors outside the taxonomy
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrTooManyRequests):
		return "too_many_requests"
	case errors.Is(err, ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, ErrEmailAlreadyInUse):
		return "email_already_in_use"
	case errors.Is(err, ErrSameEmail):
		return "same_email"
	default:
		return ""
	}
}

// IsEmailChangeError reports whether err belongs to the email change taxonomy
func IsEmailChangeError(err error) bool {
	return Kind(err) != ""
}

// Reason returns the caller-facing message of a taxonomy error, or "" when err is not one
func Reason(err error) string {
	var (
		invalid  *InvalidRequestError
		expired  *ExpiredError
		requests *TooManyRequestsError
		attempts *TooManyAttemptsError
		inUse    *EmailAlreadyInUseError
		same     *SameEmailError
	)
	switch {
	case errors.As(err, &invalid):
		return invalid.Error()
	case errors.As(err, &expired):
		return expired.Error()
	case errors.As(err, &requests):
		return requests.Error()
	case errors.As(err, &attempts):
		return attempts.Error()
	case errors.As(err, &inUse):
		return inUse.Error()
	case errors.As(err, &same):
		return same.Error()
	default:
		return ""
	}
}
