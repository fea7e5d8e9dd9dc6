package auth

import (
	"errors"
	"time"
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username  string `validate:"required,max=150"`
	Email     string `validate:"required,email,max=254"`
	Password1 string `validate:"required,min=8,max=72"`
	Password2 string `validate:"required,eqfield=Password1"`
}

// ErrUserNotFound is returned when no account uses the submitted email.
var ErrUserNotFound = errors.New("auth: user not found")
