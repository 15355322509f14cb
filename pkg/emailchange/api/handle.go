package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-emailchange/pkg/account"
	"github.com/tendant/simple-emailchange/pkg/emailchange"
	apperrors "github.com/tendant/simple-emailchange/pkg/errors"
	"github.com/tendant/simple-emailchange/pkg/ratelimit"
)

// DefaultRouteName is the URL builder route used for verification links
const DefaultRouteName = "email_change_verify"

// Notifier sends the emails of the email change flow
type Notifier interface {
	SendVerificationEmail(ctx context.Context, acct emailchange.Account, newEmail string, signature *emailchange.EmailChangeSignature) error
	SendOtpEmail(ctx context.Context, newEmail string, otp *emailchange.OtpResult) error
	SendEmailChangeConfirmation(ctx context.Context, oldEmail, newEmail string) error
	SendCancellationNotice(ctx context.Context, acct emailchange.Account, pendingEmail string) error
}

// Handle serves the email change endpoints
type Handle struct {
	service    *emailchange.EmailChangeService
	otpService *emailchange.OtpEmailChangeService
	accounts   account.Store
	notifier   Notifier
	routeName  string
}

// Option is a function that configures a Handle
type Option func(*Handle)

// WithOtpService enables the code based endpoints
func WithOtpService(service *emailchange.OtpEmailChangeService) Option {
	return func(h *Handle) {
		h.otpService = service
	}
}

// WithNotifier sets how emails are delivered. Without one no email is sent.
func WithNotifier(notifier Notifier) Option {
	return func(h *Handle) {
		h.notifier = notifier
	}
}

// WithRouteName sets the URL builder route of verification links
func WithRouteName(routeName string) Option {
	return func(h *Handle) {
		h.routeName = routeName
	}
}

// NewHandle creates a new email change handler
func NewHandle(service *emailchange.EmailChangeService, accounts account.Store, opts ...Option) *Handle {
	h := &Handle{
		service:   service,
		accounts:  accounts,
		routeName: DefaultRouteName,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// HasOtp reports whether the code based endpoints are enabled
func (h *Handle) HasOtp() bool {
	return h.otpService != nil
}

// Initiate handles POST /
func (h *Handle) Initiate(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	newEmail, err := h.decodeNewEmail(r, user)
	if err != nil {
		respondError(w, r, err)
		return
	}

	signature, err := h.service.GenerateSignature(r.Context(), h.routeName, user, newEmail, nil)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if h.notifier != nil {
		if err := h.notifier.SendVerificationEmail(r.Context(), user, newEmail, signature); err != nil {
			// Drop the request so the user is not throttled by a link they never received
			if cancelErr := h.service.CancelEmailChange(r.Context(), user); cancelErr != nil {
				slog.Error("Failed to cancel email change after send failure", "user_id", user.ID, "error", cancelErr)
			}
			respondError(w, r, apperrors.InternalWrap(err, "failed to send verification email"))
			return
		}
	}

	respond(w, r, StatusInitiated, "A verification link has been sent to your new email address.", InitiatedData{
		NewEmail:                     newEmail,
		ExpiresAt:                    signature.ExpiresAt,
		ExpiresInHours:               signature.ExpiresInHours(),
		RequiresOldEmailConfirmation: signature.IsDual(),
	})
}

// Verify handles GET /verify. With confirm_old=1 the link was sent to the current address.
// The change is applied as soon as every required confirmation is recorded.
func (h *Handle) Verify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	selector := query.Get("selector")
	token := query.Get("token")

	var (
		acct emailchange.Account
		err  error
	)
	if query.Get("confirm_old") == "1" {
		acct, err = h.service.ValidateOldEmailTokenAndFetchAccount(r.Context(), selector, token)
	} else {
		acct, err = h.service.ValidateTokenAndFetchAccount(r.Context(), selector, token)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	user, ok := acct.(*account.User)
	if !ok {
		respondError(w, r, apperrors.Internal(fmt.Sprintf("unexpected account type %T", acct)))
		return
	}

	if h.service.RequiresOldEmailConfirmation() {
		request, err := h.service.GetPendingRequest(r.Context(), user)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if request != nil && !request.IsFullyConfirmed(true) {
			respond(w, r, StatusValidated, "Your confirmation has been recorded. The email change requires confirmation from both addresses.", ValidatedData{
				RequiresOldEmailConfirmation: true,
				ConfirmedByNewEmail:          request.ConfirmedByNewEmail,
				ConfirmedByOldEmail:          request.ConfirmedByOldEmail,
			})
			return
		}
	}

	h.confirm(w, r, user, h.service.ConfirmEmailChange)
}

// Confirm handles POST /confirm for the signed in user. It only applies a
// dual confirmation request whose links were both opened; single confirmation
// changes are applied by the link itself.
func (h *Handle) Confirm(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if !h.service.RequiresOldEmailConfirmation() {
		respondError(w, r, apperrors.New(apperrors.ErrCodeInvalidRequest, "Open the verification link to confirm your email change."))
		return
	}

	h.confirm(w, r, user, h.service.ConfirmEmailChange)
}

// Cancel handles POST /cancel
func (h *Handle) Cancel(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	pendingEmail, hadPending, err := h.service.GetPendingEmail(r.Context(), user)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.service.CancelEmailChange(r.Context(), user); err != nil {
		respondError(w, r, err)
		return
	}
	if h.otpService != nil {
		if err := h.otpService.CancelEmailChange(r.Context(), user); err != nil {
			respondError(w, r, err)
			return
		}
	}

	if hadPending && h.notifier != nil {
		if err := h.notifier.SendCancellationNotice(r.Context(), user, pendingEmail); err != nil {
			slog.Warn("Failed to send email change cancellation notice", "user_id", user.ID, "error", err)
		}
	}

	respond(w, r, StatusCancelled, "Your email change request has been cancelled.", nil)
}

// Status handles GET /status
func (h *Handle) Status(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	request, err := h.service.GetPendingRequest(r.Context(), user)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var status PendingStatus
	if request == nil {
		respond(w, r, StatusNone, "No pending email change.", status)
		return
	}

	if err := copier.Copy(&status, request); err != nil {
		respondError(w, r, apperrors.InternalWrap(err, "failed to build status"))
		return
	}
	status.HasPending = true
	status.RequestedAt = &request.RequestedAt
	status.ExpiresAt = &request.ExpiresAt

	respond(w, r, StatusPending, "An email change is waiting for verification.", status)
}

// RequestOtp handles POST /otp
func (h *Handle) RequestOtp(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	newEmail, err := h.decodeNewEmail(r, user)
	if err != nil {
		respondError(w, r, err)
		return
	}

	otp, err := h.otpService.GenerateOtp(r.Context(), user, newEmail)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if h.notifier != nil {
		if err := h.notifier.SendOtpEmail(r.Context(), newEmail, otp); err != nil {
			if cancelErr := h.otpService.CancelEmailChange(r.Context(), user); cancelErr != nil {
				slog.Error("Failed to cancel email change after send failure", "user_id", user.ID, "error", cancelErr)
			}
			respondError(w, r, apperrors.InternalWrap(err, "failed to send verification code"))
			return
		}
	}

	respond(w, r, StatusOtpSent, "A verification code has been sent to your new email address.", OtpSentData{
		NewEmail:  newEmail,
		ExpiresAt: otp.ExpiresAt,
	})
}

// VerifyOtp handles POST /otp/verify
func (h *Handle) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req VerifyOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apperrors.InvalidInput("body", "must be a JSON object"))
		return
	}

	code := strings.TrimSpace(req.Code)
	h.confirm(w, r, user, func(ctx context.Context, acct emailchange.Account) (string, error) {
		return h.otpService.VerifyOtp(ctx, acct, code)
	})
}

// storedUser saves the applied email in the account store before the request
// is removed, so a failed write leaves the change confirmable.
type storedUser struct {
	*account.User
	store account.Store
}

func (u storedUser) SaveEmail(ctx context.Context, oldEmail string) error {
	updated, err := u.store.UpdateEmail(ctx, u.ID, u.Email)
	if err != nil {
		return err
	}
	*u.User = updated
	return nil
}

// confirm runs apply, which sets and saves the new email, then notifies the old
// address.
func (h *Handle) confirm(w http.ResponseWriter, r *http.Request, user *account.User, apply func(context.Context, emailchange.Account) (string, error)) {
	pendingEmail, err := h.ensurePendingEmailFree(r.Context(), user)
	if err != nil {
		respondError(w, r, err)
		return
	}

	oldEmail, err := apply(r.Context(), storedUser{User: user, store: h.accounts})
	if errors.Is(err, account.ErrEmailTaken) {
		respondError(w, r, &emailchange.EmailAlreadyInUseError{Email: pendingEmail})
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	slog.Info("Account email updated", "user_id", user.ID)

	if h.notifier != nil {
		if err := h.notifier.SendEmailChangeConfirmation(r.Context(), oldEmail, user.Email); err != nil {
			slog.Warn("Failed to send email change confirmation", "user_id", user.ID, "error", err)
		}
	}

	respond(w, r, StatusConfirmed, "Your email address has been changed.", ConfirmedData{
		OldEmail: oldEmail,
		NewEmail: user.Email,
	})
}

// ensurePendingEmailFree rejects a confirmation when someone else took the
// pending address after the request was made. It returns the pending address.
func (h *Handle) ensurePendingEmailFree(ctx context.Context, user *account.User) (string, error) {
	pendingEmail, ok, err := h.pendingEmail(ctx, user)
	if err != nil || !ok {
		return pendingEmail, err
	}

	inUse, err := account.EmailInUse(ctx, h.accounts, pendingEmail, user.ID)
	if err != nil {
		return "", apperrors.InternalWrap(err, "failed to check email availability")
	}
	if inUse {
		return "", &emailchange.EmailAlreadyInUseError{Email: pendingEmail}
	}
	return pendingEmail, nil
}

func (h *Handle) pendingEmail(ctx context.Context, user *account.User) (string, bool, error) {
	pendingEmail, ok, err := h.service.GetPendingEmail(ctx, user)
	if err != nil || ok || h.otpService == nil {
		return pendingEmail, ok, err
	}
	return h.otpService.GetPendingEmail(ctx, user)
}

// decodeNewEmail reads and checks the requested address
func (h *Handle) decodeNewEmail(r *http.Request, user *account.User) (string, error) {
	var req InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", apperrors.InvalidInput("body", "must be a JSON object")
	}

	newEmail := strings.TrimSpace(req.NewEmail)
	if newEmail == "" {
		return "", apperrors.New(apperrors.ErrCodeMissingRequired, "new_email is required")
	}
	if addr, err := mail.ParseAddress(newEmail); err != nil || addr.Address != newEmail {
		return "", apperrors.InvalidInput("new_email", "must be a valid email address")
	}

	if err := emailchange.CheckNewEmail(user, newEmail); err != nil {
		return "", err
	}

	inUse, err := account.EmailInUse(r.Context(), h.accounts, newEmail, user.ID)
	if err != nil {
		return "", apperrors.InternalWrap(err, "failed to check email availability")
	}
	if inUse {
		return "", &emailchange.EmailAlreadyInUseError{Email: newEmail}
	}
	return newEmail, nil
}

// currentUser loads the user named by the "sub" claim of the verified JWT
func (h *Handle) currentUser(r *http.Request) (*account.User, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return nil, apperrors.Unauthorized("authentication required")
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid subject claim")
	}

	user, err := h.accounts.GetUser(r.Context(), userID)
	if errors.Is(err, account.ErrUserNotFound) {
		return nil, apperrors.New(apperrors.ErrCodeUserNotFound, emailchange.ReasonUserNotFound)
	}
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to load user")
	}
	return &user, nil
}

// RequestMetadata puts the client address and user agent on the request
// context so they end up in lifecycle event metadata.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := emailchange.WithRequestMetadata(r.Context(), emailchange.RequestMetadata{
			IPAddress: ratelimit.ClientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
