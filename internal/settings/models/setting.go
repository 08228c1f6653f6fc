package models

import (
	"regexp"
	"strings"
	"time"

	"badguys/pkg/domain"
	dErrors "badguys/pkg/domain-errors"
)

const (
	MaxValueLength = 4096

	// KeyAnalyzerAPIKey overrides the ANALYZER_API_KEY environment variable.
	KeyAnalyzerAPIKey = "analyzer_api_key"
)

var keyPattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// Setting is an admin-managed key/value pair. Values may be secrets and are
// never returned over the API.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
	UpdatedBy domain.UserID
}

// NewSetting validates key and value.
// Errors: CodeValidation for a malformed key or an empty or oversized value.
func NewSetting(key, value string, by domain.UserID, now time.Time) (*Setting, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "value is required")
	}
	if len(value) > MaxValueLength {
		return nil, dErrors.New(dErrors.CodeValidation, "value is too long")
	}
	return &Setting{Key: key, Value: value, UpdatedAt: now, UpdatedBy: by}, nil
}

func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return dErrors.New(dErrors.CodeValidation, "key must match ^[a-z0-9_]{1,64}$")
	}
	return nil
}
