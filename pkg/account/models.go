package account

import (
	"time"

	"github.com/google/uuid"
)

// AccountType prefixes the identifiers of User accounts in email change requests
const AccountType = "user"

// User represents a user whose email can be changed
type User struct {
	ID             uuid.UUID `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	LastModifiedAt time.Time `json:"last_modified_at"`
	Email          string    `json:"email"`
	Name           string    `json:"name,omitempty"`
}

func (u *User) GetID() string {
	return u.ID.String()
}

func (u *User) GetEmail() string {
	return u.Email
}

func (u *User) SetEmail(email string) {
	u.Email = email
}

func (u *User) AccountType() string {
	return AccountType
}

// CreateUserParams contains parameters for creating a new user
type CreateUserParams struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
