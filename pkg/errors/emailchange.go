package errors

import (
	"errors"
	"time"

	"github.com/tendant/simple-emailchange/pkg/emailchange"
)

// FromEmailChangeError maps an email change error onto a structured Error. The message is the
// caller-facing reason and the "type" detail is the stable kind. Errors outside the
// taxonomy become internal errors that keep the original as the cause.
func FromEmailChangeError(err error) *Error {
	if err == nil {
		return nil
	}

	kind := emailchange.Kind(err)
	var code ErrorCode
	switch kind {
	case "invalid_request":
		code = ErrCodeInvalidRequest
		if emailchange.Reason(err) == emailchange.ReasonUserNotFound {
			code = ErrCodeUserNotFound
		}
	case "expired":
		code = ErrCodeTokenExpired
	case "too_many_requests":
		code = ErrCodeTooManyRequests
	case "too_many_attempts":
		code = ErrCodeTooManyAttempts
	case "email_already_in_use":
		code = ErrCodeEmailAlreadyInUse
	case "same_email":
		code = ErrCodeSameEmail
	default:
		return InternalWrap(err, "internal error")
	}

	e := Wrap(err, code, emailchange.Reason(err)).WithDetail("type", kind)

	var tooMany *emailchange.TooManyRequestsError
	if errors.As(err, &tooMany) {
		e.WithDetail("available_at", tooMany.AvailableAt.UTC().Format(time.RFC3339))
	}
	var attempts *emailchange.TooManyAttemptsError
	if errors.As(err, &attempts) {
		e.WithDetail("max_attempts", attempts.MaxAttempts)
	}
	return e
}
