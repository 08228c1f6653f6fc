package models

import (
	"strings"
	"time"

	"badguys/pkg/domain"
	dErrors "badguys/pkg/domain-errors"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores input beyond 72 bytes.
	MaxPasswordLength = 72
	MaxEmailLength    = 254
)

// Account is a credential holder. Role decides admin access; id is referenced
// by the profiles it reported.
type Account struct {
	ID           domain.UserID
	Email        string
	PasswordHash string
	Role         domain.Role
	CreatedAt    time.Time
}

// NewAccount builds an account with a normalised email.
// Errors: CodeValidation for an empty or malformed email or a non-account role.
func NewAccount(id domain.UserID, email, passwordHash string, role domain.Role, now time.Time) (*Account, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeValidation, "role must be user or admin")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "password hash is required")
	}
	return &Account{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
	}, nil
}

// Actor is the identity this account acts as once signed in.
func (a *Account) Actor() domain.Actor {
	return domain.Actor{ID: a.ID, Email: a.Email, Role: a.Role}
}

// NormalizeEmail lower-cases and trims. Emails are unique case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	if email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if len(email) > MaxEmailLength {
		return dErrors.New(dErrors.CodeValidation, "email is too long")
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return dErrors.New(dErrors.CodeValidation, "email is not valid")
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at most 72 bytes")
	}
	return nil
}
