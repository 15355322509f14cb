package emailchange

import (
	"context"
	"time"
)

// EmailChangeRepository stores email change requests. Implementations must be safe
// for concurrent use. Single-record operations are atomic; the one-request-per-account
// rule is enforced by the services through a read-then-write sequence.
type EmailChangeRepository interface {
	// FindBySelector returns ErrRequestNotFound when no request has the selector
	FindBySelector(ctx context.Context, selector string) (*EmailChangeRequest, error)
	// FindByAccount returns the request for the account identifier, expired or not
	FindByAccount(ctx context.Context, accountIdentifier string) (*EmailChangeRequest, error)
	// FindByOldEmailSelector looks up the old-address channel of a dual-mode request
	FindByOldEmailSelector(ctx context.Context, selector string) (*EmailChangeRequest, error)
	// Save inserts or updates the request keyed by its selector
	Save(ctx context.Context, request *EmailChangeRequest) error
	// Delete removes the request. Deleting a missing request is not an error.
	Delete(ctx context.Context, request *EmailChangeRequest) error
	// DeleteExpired removes every request that is expired at cutoff, i.e. whose
	// expiry is at or before it
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
	// CountExpired counts requests that are expired at cutoff
	CountExpired(ctx context.Context, cutoff time.Time) (int64, error)
	// GetAccount resolves the account that owns the request
	GetAccount(ctx context.Context, request *EmailChangeRequest) (Account, error)
}

// AccountLookup resolves an account from the identifier stored on a request.
// It returns ErrAccountNotFound when the account does not exist.
type AccountLookup interface {
	FindAccount(ctx context.Context, accountIdentifier string) (Account, error)
}

// AccountLookupFunc adapts a function to AccountLookup
type AccountLookupFunc func(ctx context.Context, accountIdentifier string) (Account, error)

func (f AccountLookupFunc) FindAccount(ctx context.Context, accountIdentifier string) (Account, error) {
	return f(ctx, accountIdentifier)
}

func lookupAccount(ctx context.Context, lookup AccountLookup, request *EmailChangeRequest) (Account, error) {
	if lookup == nil {
		return nil, ErrAccountNotFound
	}
	return lookup.FindAccount(ctx, request.AccountIdentifier)
}
