package emailchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// lifecycle holds the request policy shared by the link and OTP flows
type lifecycle struct {
	repo   EmailChangeRepository
	opts   serviceOptions
	events eventEmitter
}

func newLifecycle(repo EmailChangeRepository, opts []Option) lifecycle {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return lifecycle{
		repo:   repo,
		opts:   o,
		events: eventEmitter{publisher: o.publisher, now: o.now},
	}
}

// prepare enforces one live request per account, sweeps expired requests and
// removes the account's stale request so a new one can be stored.
func (l *lifecycle) prepare(ctx context.Context, accountID string) error {
	existing, err := l.repo.FindByAccount(ctx, accountID)
	if err != nil && !errors.Is(err, ErrRequestNotFound) {
		return fmt.Errorf("failed to find existing email change request: %w", err)
	}

	now := l.opts.now()
	if existing != nil && !existing.IsExpired(now) && l.opts.throttling {
		slog.Info("Email change already pending", "account", accountID, "requested_at", existing.RequestedAt)
		return &TooManyRequestsError{AvailableAt: existing.RequestedAt.Add(l.opts.retryWindow)}
	}

	if _, err := l.repo.DeleteExpired(ctx, now); err != nil {
		return fmt.Errorf("failed to remove expired email change requests: %w", err)
	}

	if existing != nil {
		if err := l.repo.Delete(ctx, existing); err != nil {
			return fmt.Errorf("failed to remove previous email change request: %w", err)
		}
	}

	return nil
}

// store persists a new request. A backend that detects a concurrent insert for the
// same account reports the winner as a throttled request.
func (l *lifecycle) store(ctx context.Context, request *EmailChangeRequest) error {
	err := l.repo.Save(ctx, request)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrDuplicateRequest) {
		return fmt.Errorf("failed to save email change request: %w", err)
	}

	availableAt := l.opts.now().Add(l.opts.retryWindow)
	if winner, findErr := l.repo.FindByAccount(ctx, request.AccountIdentifier); findErr == nil {
		availableAt = winner.RequestedAt.Add(l.opts.retryWindow)
	}
	return &TooManyRequestsError{AvailableAt: availableAt}
}

// checkSecret verifies a secret against one channel of the request and applies the
// attempts policy on failure.
func (l *lifecycle) checkSecret(ctx context.Context, request *EmailChangeRequest, valid bool, invalidReason string) error {
	if request.IsExpired(l.opts.now()) {
		l.events.emit(ctx, EventExpiredAccess, request, "")
		return &ExpiredError{}
	}

	if valid {
		return nil
	}

	request.IncrementAttempts()
	if request.Attempts >= l.opts.maxAttempts {
		if err := l.repo.Delete(ctx, request); err != nil {
			return fmt.Errorf("failed to remove email change request: %w", err)
		}
		slog.Warn("Email change request invalidated after too many attempts", "account", request.AccountIdentifier, "attempts", request.Attempts)
		l.events.emit(ctx, EventMaxAttemptsExceeded, request, "")
		return &TooManyAttemptsError{MaxAttempts: l.opts.maxAttempts}
	}

	if err := l.repo.Save(ctx, request); err != nil {
		return fmt.Errorf("failed to record failed attempt: %w", err)
	}
	l.events.emit(ctx, EventFailedVerification, request, "")
	return invalidRequest(invalidReason)
}

// pending returns the live request for the account, or nil when there is none
func (l *lifecycle) pending(ctx context.Context, account Account) (*EmailChangeRequest, error) {
	request, err := l.repo.FindByAccount(ctx, AccountIdentifier(account))
	if errors.Is(err, ErrRequestNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find email change request: %w", err)
	}
	if request.IsExpired(l.opts.now()) {
		return nil, nil
	}
	return request, nil
}

// apply sets the new email on the account, saves it when the account is an
// AccountSaver and deletes the request. Until the email is saved every failure
// restores the account.
func (l *lifecycle) apply(ctx context.Context, account Account, request *EmailChangeRequest) (string, error) {
	oldEmail := account.GetEmail()
	account.SetEmail(request.NewEmail)

	saver, saves := account.(AccountSaver)
	if saves {
		if err := saver.SaveEmail(ctx, oldEmail); err != nil {
			account.SetEmail(oldEmail)
			return "", fmt.Errorf("failed to save account email: %w", err)
		}
	}

	if err := l.repo.Delete(ctx, request); err != nil {
		if !saves {
			account.SetEmail(oldEmail)
			return "", fmt.Errorf("failed to remove email change request: %w", err)
		}
		// the new email is stored; the leftover request expires on its own
		slog.Warn("Failed to remove applied email change request", "account", request.AccountIdentifier, "error", err)
	}

	slog.Info("Email changed", "account", request.AccountIdentifier)
	l.events.emit(ctx, EventConfirmed, request, oldEmail)
	return oldEmail, nil
}

func (l *lifecycle) cancel(ctx context.Context, account Account) error {
	request, err := l.repo.FindByAccount(ctx, AccountIdentifier(account))
	if errors.Is(err, ErrRequestNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find email change request: %w", err)
	}

	if err := l.repo.Delete(ctx, request); err != nil {
		return fmt.Errorf("failed to cancel email change request: %w", err)
	}

	slog.Info("Email change cancelled", "account", request.AccountIdentifier)
	l.events.emit(ctx, EventCancelled, request, "")
	return nil
}

func (l *lifecycle) hasPending(ctx context.Context, account Account) (bool, error) {
	request, err := l.pending(ctx, account)
	if err != nil {
		return false, err
	}
	return request != nil, nil
}

func (l *lifecycle) pendingEmail(ctx context.Context, account Account) (string, bool, error) {
	request, err := l.pending(ctx, account)
	if err != nil || request == nil {
		return "", false, err
	}
	return request.NewEmail, true, nil
}
