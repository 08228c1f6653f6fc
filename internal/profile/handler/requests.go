package handler

import (
	"strings"

	"badguys/internal/profile/models"
	dErrors "badguys/pkg/domain-errors"
)

// URLRequest is the body of validate, analyze and report calls.
type URLRequest struct {
	URL string `json:"url"`
}

func (r *URLRequest) Normalize() {
	r.URL = strings.TrimSpace(r.URL)
}

// Validate accepts any url; urlcheck.Validate in the service rejects bad ones
// with a reason.
func (r *URLRequest) Validate() error {
	return nil
}

// CreateProfileRequest is the body of POST /admin/profiles. Without an
// analysis the server runs the analyzer itself.
type CreateProfileRequest struct {
	URL      string           `json:"url"`
	Analysis *models.Analysis `json:"analysis,omitempty"`
}

func (r *CreateProfileRequest) Normalize() {
	r.URL = strings.TrimSpace(r.URL)
	if r.Analysis != nil {
		r.Analysis.Name = strings.TrimSpace(r.Analysis.Name)
		r.Analysis.Title = strings.TrimSpace(r.Analysis.Title)
		r.Analysis.Rationale = strings.TrimSpace(r.Analysis.Rationale)
	}
}

func (r *CreateProfileRequest) Validate() error {
	if r.Analysis != nil {
		if len(r.Analysis.Name) > 200 || len(r.Analysis.Title) > 500 {
			return dErrors.New(dErrors.CodeValidation, "analysis name or title is too long")
		}
		if len(r.Analysis.Rationale) > 10_000 {
			return dErrors.New(dErrors.CodeValidation, "analysis rationale is too long")
		}
	}
	return nil
}

// UpdateStatusRequest is the body of PATCH /admin/profiles/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`

	parsed models.Status
}

func (r *UpdateStatusRequest) Normalize() {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
}

func (r *UpdateStatusRequest) Validate() error {
	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	r.parsed = status
	return nil
}

// ParsedStatus returns the validated status.
func (r *UpdateStatusRequest) ParsedStatus() models.Status {
	return r.parsed
}

// SetActiveRequest is the body of PATCH /admin/profiles/{id}/active.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

func (r *SetActiveRequest) Normalize() {}

func (r *SetActiveRequest) Validate() error {
	if r.Active == nil {
		return dErrors.New(dErrors.CodeValidation, "active is required")
	}
	return nil
}
