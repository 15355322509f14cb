package account

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/simple-emailchange/pkg/emailchange"
)

// Common errors
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already in use")
)

// Store keeps the users whose email addresses are changed. Emails are unique
// ignoring case.
type Store interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	// FindByEmail matches case-insensitively
	FindByEmail(ctx context.Context, email string) (User, error)
	// UpdateEmail returns ErrEmailTaken when another user has the address
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) (User, error)
}

// EmailInUse reports whether a user other than except owns email
func EmailInUse(ctx context.Context, store Store, email string, except uuid.UUID) (bool, error) {
	user, err := store.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.ID != except, nil
}

// Lookup resolves "user::<uuid>" identifiers against a Store
type Lookup struct {
	store Store
}

func NewLookup(store Store) *Lookup {
	return &Lookup{store: store}
}

func (l *Lookup) FindAccount(ctx context.Context, accountIdentifier string) (emailchange.Account, error) {
	kind, id, err := emailchange.SplitAccountIdentifier(accountIdentifier)
	if err != nil || kind != AccountType {
		return nil, emailchange.ErrAccountNotFound
	}
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, emailchange.ErrAccountNotFound
	}

	user, err := l.store.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, emailchange.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
