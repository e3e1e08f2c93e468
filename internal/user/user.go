// Package user is the credential collaborator: it stores subjects and
// verifies passwords. The OAuth flow only ever sees the resulting subject ID.
package user

import (
	"context"
	"time"
)

// AccountType distinguishes the kinds of login-capable subjects.
type AccountType string

const (
	AccountTypeAdmin  AccountType = "admin"
	AccountTypeParent AccountType = "parent"
	AccountTypeKid    AccountType = "kid"
)

// User is a subject that can authenticate against the login surface.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	AccountType  AccountType
	CreatedAt    time.Time
}

// Store persists users. Implementations return sentinel.ErrNotFound
// (wrapped) for missing records.
type Store interface {
	Save(ctx context.Context, u User) error
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
}
