package handler

import (
	"strings"

	"badguys/internal/auth/models"
	dErrors "badguys/pkg/domain-errors"
)

// CredentialsRequest is the body of sign-up and sign-in calls.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *CredentialsRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

// Validate only checks presence and size; password policy is the service's.
func (r *CredentialsRequest) Validate() error {
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	if len(r.Email) > models.MaxEmailLength || len(r.Password) > 1024 {
		return dErrors.New(dErrors.CodeValidation, "credentials are too long")
	}
	return nil
}
