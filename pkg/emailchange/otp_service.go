package emailchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// OtpEmailChangeService runs the email change flow with a numeric code instead of a link.
// Verifying the code applies the change immediately.
type OtpEmailChangeService struct {
	lifecycle
	otp *OtpGenerator
}

// NewOtpEmailChangeService creates a new OTP based email change service.
// A nil generator issues 6 digit codes.
func NewOtpEmailChangeService(repo EmailChangeRepository, otp *OtpGenerator, opts ...Option) *OtpEmailChangeService {
	if otp == nil {
		otp, _ = NewOtpGenerator(DefaultOtpLength)
	}
	return &OtpEmailChangeService{
		lifecycle: newLifecycle(repo, opts),
		otp:       otp,
	}
}

// GenerateOtp starts an email change and returns the code to deliver to the new address
func (s *OtpEmailChangeService) GenerateOtp(ctx context.Context, account Account, newEmail string) (*OtpResult, error) {
	if newEmail == "" {
		return nil, invalidRequest(ReasonMissingParameters)
	}

	accountID := AccountIdentifier(account)
	if err := s.prepare(ctx, accountID); err != nil {
		return nil, err
	}

	now := s.opts.now()
	expiresAt := now.Add(s.opts.requestLifetime)

	code, err := s.otp.Generate()
	if err != nil {
		return nil, err
	}

	// The selector only identifies the record; the stored hash is the code's.
	components, err := s.opts.tokens.CreateToken()
	if err != nil {
		return nil, err
	}
	request := NewEmailChangeRequest(account, expiresAt, components.Selector, s.otp.Hash(code), newEmail, now)

	if err := s.store(ctx, request); err != nil {
		return nil, err
	}

	slog.Info("Email change code issued", "account", accountID, "request_id", request.ID, "expires_at", request.ExpiresAt)
	s.events.emit(ctx, EventInitiated, request, account.GetEmail())

	return &OtpResult{Code: code, ExpiresAt: request.ExpiresAt}, nil
}

// VerifyOtp checks the code for the account's pending request and applies the change.
// It returns the previous email.
func (s *OtpEmailChangeService) VerifyOtp(ctx context.Context, account Account, code string) (string, error) {
	if code == "" {
		return "", invalidRequest(ReasonMissingParameters)
	}

	request, err := s.repo.FindByAccount(ctx, AccountIdentifier(account))
	if errors.Is(err, ErrRequestNotFound) {
		return "", invalidRequest(ReasonNoPendingChange)
	}
	if err != nil {
		return "", fmt.Errorf("failed to find email change request: %w", err)
	}

	valid := s.otp.Verify(code, request.HashedToken)
	if err := s.checkSecret(ctx, request, valid, ReasonInvalidCode); err != nil {
		return "", err
	}

	return s.apply(ctx, account, request)
}

// CancelEmailChange removes any request for the account
func (s *OtpEmailChangeService) CancelEmailChange(ctx context.Context, account Account) error {
	return s.cancel(ctx, account)
}

func (s *OtpEmailChangeService) HasPendingEmailChange(ctx context.Context, account Account) (bool, error) {
	return s.hasPending(ctx, account)
}

func (s *OtpEmailChangeService) GetPendingEmail(ctx context.Context, account Account) (string, bool, error) {
	return s.pendingEmail(ctx, account)
}

// CodeLength returns the number of digits in issued codes
func (s *OtpEmailChangeService) CodeLength() int {
	return s.otp.Length()
}
