package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badguys/pkg/domain"
	dErrors "badguys/pkg/domain-errors"
)

func TestNewSetting(t *testing.T) {
	now := time.Now()
	by := domain.NewUserID()

	s, err := NewSetting("linkedin_api_key", "  secret  ", by, now)
	require.NoError(t, err)
	assert.Equal(t, "secret", s.Value)
	assert.Equal(t, by, s.UpdatedBy)

	tests := []struct {
		name, key, value string
	}{
		{"uppercase key", "LinkedIn", "v"},
		{"dash in key", "api-key", "v"},
		{"empty key", "", "v"},
		{"long key", strings.Repeat("k", 65), "v"},
		{"blank value", "api_key", "   "},
		{"oversized value", "api_key", strings.Repeat("v", MaxValueLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSetting(tt.key, tt.value, by, now)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}
