package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/tendant/simple-emailchange/pkg/emailchange"
	apperrors "github.com/tendant/simple-emailchange/pkg/errors"
)

// Response statuses
const (
	StatusInitiated = "initiated"
	StatusOtpSent   = "otp_sent"
	StatusValidated = "validated"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
	StatusNone      = "none"
	StatusError     = "error"
)

const internalErrorMessage = "An unexpected error occurred. Please try again later."

// Response is the envelope of every email change response
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody identifies the failure with a stable type
type ErrorBody struct {
	Type    string                 `json:"type"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func respond(w http.ResponseWriter, r *http.Request, status, message string, data interface{}) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Response{
		Status:  status,
		Message: message,
		Data:    data,
	})
}

// respondError renders any error. Email change errors keep their reason, other
// structured errors keep their message, everything else becomes a 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.FromEmailChangeError(err)
	}

	httpStatus := appErr.HTTPStatusCode()
	message := appErr.Message
	if httpStatus >= http.StatusInternalServerError {
		slog.Error("Email change request failed", "path", r.URL.Path, "error", err)
		message = internalErrorMessage
	}

	body := &ErrorBody{Type: errorType(appErr)}
	for key, value := range appErr.Details {
		if key == "type" {
			continue
		}
		if body.Details == nil {
			body.Details = make(map[string]interface{})
		}
		body.Details[key] = value
	}

	var tooMany *emailchange.TooManyRequestsError
	if errors.As(err, &tooMany) {
		w.Header().Set("Retry-After", retryAfter(tooMany.AvailableAt))
	}

	render.Status(r, httpStatus)
	render.JSON(w, r, Response{
		Status:  StatusError,
		Message: message,
		Error:   body,
	})
}

func errorType(e *apperrors.Error) string {
	if kind, ok := e.Details["type"].(string); ok && kind != "" {
		return kind
	}
	return strings.ToLower(string(e.Code))
}

func retryAfter(availableAt time.Time) string {
	seconds := int(time.Until(availableAt).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
