package emailchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Query parameters carried by signed URLs
const (
	SelectorParam   = "selector"
	TokenParam      = "token"
	ConfirmOldParam = "confirm_old"
)

// EmailChangeService runs the link based email change flow
type EmailChangeService struct {
	lifecycle
	urlBuilder URLBuilder
}

// NewEmailChangeService creates a new link based email change service
func NewEmailChangeService(repo EmailChangeRepository, urlBuilder URLBuilder, opts ...Option) *EmailChangeService {
	return &EmailChangeService{
		lifecycle:  newLifecycle(repo, opts),
		urlBuilder: urlBuilder,
	}
}

// RequiresOldEmailConfirmation reports whether dual confirmation is enabled
func (s *EmailChangeService) RequiresOldEmailConfirmation() bool {
	return s.opts.requireOldEmailConfirmation
}

// GenerateSignature starts an email change for the account and returns the signed URL(s)
// to send. It fails with TooManyRequestsError while another request is live.
func (s *EmailChangeService) GenerateSignature(ctx context.Context, routeName string, account Account, newEmail string, extraParams map[string]string) (*EmailChangeSignature, error) {
	if newEmail == "" {
		return nil, invalidRequest(ReasonMissingParameters)
	}

	accountID := AccountIdentifier(account)
	if err := s.prepare(ctx, accountID); err != nil {
		return nil, err
	}

	now := s.opts.now()
	expiresAt := now.Add(s.opts.requestLifetime)

	components, err := s.opts.tokens.CreateToken()
	if err != nil {
		return nil, err
	}
	request := NewEmailChangeRequest(account, expiresAt, components.Selector, components.HashedToken, newEmail, now)

	signedURL, err := s.buildURL(routeName, extraParams, components, false)
	if err != nil {
		return nil, err
	}

	var oldEmailURL string
	if s.opts.requireOldEmailConfirmation {
		oldComponents, err := s.opts.tokens.CreateToken()
		if err != nil {
			return nil, err
		}
		request.SetOldEmailToken(oldComponents.Selector, oldComponents.HashedToken)

		oldEmailURL, err = s.buildURL(routeName, extraParams, oldComponents, true)
		if err != nil {
			return nil, err
		}
	}

	if err := s.store(ctx, request); err != nil {
		return nil, err
	}

	slog.Info("Email change initiated", "account", accountID, "request_id", request.ID, "expires_at", request.ExpiresAt, "dual", request.HasOldEmailToken())
	s.events.emit(ctx, EventInitiated, request, account.GetEmail())

	return newSignature(signedURL, oldEmailURL, request.ExpiresAt, now), nil
}

func (s *EmailChangeService) buildURL(routeName string, extraParams map[string]string, components TokenComponents, oldEmail bool) (string, error) {
	params := make(map[string]string, len(extraParams)+3)
	for k, v := range extraParams {
		params[k] = v
	}
	params[SelectorParam] = components.Selector
	params[TokenParam] = components.Token
	if oldEmail {
		params[ConfirmOldParam] = "1"
	}

	u, err := s.urlBuilder.BuildURL(routeName, params)
	if err != nil {
		return "", fmt.Errorf("failed to build verification url: %w", err)
	}
	return u, nil
}

// ValidateTokenAndFetchAccount verifies the link sent to the new address and returns the
// owning account. With dual confirmation enabled it only records the new address confirmation.
func (s *EmailChangeService) ValidateTokenAndFetchAccount(ctx context.Context, selector, token string) (Account, error) {
	if selector == "" || token == "" {
		return nil, invalidRequest(ReasonMissingParameters)
	}

	request, err := s.repo.FindBySelector(ctx, selector)
	if errors.Is(err, ErrRequestNotFound) {
		return nil, invalidRequest(ReasonInvalidLink)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find email change request: %w", err)
	}

	valid := s.opts.tokens.VerifyToken(request.HashedToken, token)
	if err := s.checkSecret(ctx, request, valid, ReasonInvalidToken); err != nil {
		return nil, err
	}

	if s.opts.requireOldEmailConfirmation {
		request.MarkConfirmedByNewEmail(true)
		if err := s.repo.Save(ctx, request); err != nil {
			return nil, fmt.Errorf("failed to save email change request: %w", err)
		}
		s.events.emit(ctx, EventNewEmailConfirmed, request, "")
	}

	return s.fetchAccount(ctx, request)
}

// ValidateOldEmailTokenAndFetchAccount verifies the link sent to the current address.
// It is only valid when dual confirmation is enabled.
func (s *EmailChangeService) ValidateOldEmailTokenAndFetchAccount(ctx context.Context, selector, token string) (Account, error) {
	if selector == "" || token == "" {
		return nil, invalidRequest(ReasonMissingParameters)
	}
	if !s.opts.requireOldEmailConfirmation {
		return nil, invalidRequest(ReasonInvalidLink)
	}

	request, err := s.repo.FindByOldEmailSelector(ctx, selector)
	if errors.Is(err, ErrRequestNotFound) {
		return nil, invalidRequest(ReasonInvalidLink)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find email change request: %w", err)
	}

	valid := s.opts.tokens.VerifyToken(request.OldEmailHashedToken, token)
	if err := s.checkSecret(ctx, request, valid, ReasonInvalidToken); err != nil {
		return nil, err
	}

	request.MarkConfirmedByOldEmail(true)
	if err := s.repo.Save(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to save email change request: %w", err)
	}
	s.events.emit(ctx, EventOldEmailConfirmed, request, "")

	return s.fetchAccount(ctx, request)
}

func (s *EmailChangeService) fetchAccount(ctx context.Context, request *EmailChangeRequest) (Account, error) {
	account, err := s.repo.GetAccount(ctx, request)
	if errors.Is(err, ErrAccountNotFound) || (err == nil && account == nil) {
		return nil, invalidRequest(ReasonUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}
	return account, nil
}

// ConfirmEmailChange applies the pending new email to the account and returns the old one.
// Persisting the account is the caller's job unless the account is an AccountSaver.
func (s *EmailChangeService) ConfirmEmailChange(ctx context.Context, account Account) (string, error) {
	request, err := s.pending(ctx, account)
	if err != nil {
		return "", err
	}
	if request == nil {
		return "", invalidRequest(ReasonNoPendingChange)
	}

	if !request.IsFullyConfirmed(s.opts.requireOldEmailConfirmation) {
		return "", invalidRequest(ReasonRequiresBothConfirm)
	}

	return s.apply(ctx, account, request)
}

// CancelEmailChange removes any request for the account. It is a no-op when there is none.
func (s *EmailChangeService) CancelEmailChange(ctx context.Context, account Account) error {
	return s.cancel(ctx, account)
}

func (s *EmailChangeService) HasPendingEmailChange(ctx context.Context, account Account) (bool, error) {
	return s.hasPending(ctx, account)
}

// GetPendingEmail returns the address waiting for verification, if any
func (s *EmailChangeService) GetPendingEmail(ctx context.Context, account Account) (string, bool, error) {
	return s.pendingEmail(ctx, account)
}

// GetPendingRequest returns the live request for the account, or nil
func (s *EmailChangeService) GetPendingRequest(ctx context.Context, account Account) (*EmailChangeRequest, error) {
	return s.pending(ctx, account)
}
