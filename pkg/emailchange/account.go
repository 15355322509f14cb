package emailchange

import (
	"context"
	"fmt"
	"strings"
)

// Account is the capability the email change flow needs from an account entity.
type Account interface {
	GetID() string
	GetEmail() string
	SetEmail(email string)
}

// AccountTyper can be implemented by an Account to control the type prefix of
// its identifier. Without it the Go type name is used.
type AccountTyper interface {
	AccountType() string
}

// AccountSaver can be implemented by an Account that persists its own email.
// SaveEmail runs after SetEmail and before the request is deleted. When it fails
// the account is restored and the request is kept, so the change can be
// confirmed again.
type AccountSaver interface {
	SaveEmail(ctx context.Context, oldEmail string) error
}

const accountIdentifierSeparator = "::"

// AccountIdentifier builds the "type::id" key that scopes pending requests to one account.
func AccountIdentifier(account Account) string {
	return accountType(account) + accountIdentifierSeparator + account.GetID()
}

// SplitAccountIdentifier reverses AccountIdentifier.
func SplitAccountIdentifier(identifier string) (kind, id string, err error) {
	kind, id, found := strings.Cut(identifier, accountIdentifierSeparator)
	if !found || kind == "" || id == "" {
		return "", "", fmt.Errorf("malformed account identifier: %q", identifier)
	}
	return kind, id, nil
}

func accountType(account Account) string {
	if typer, ok := account.(AccountTyper); ok {
		return typer.AccountType()
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", account), "*")
}
