package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badguys/pkg/domain"
	dErrors "badguys/pkg/domain-errors"
)

func TestClampRiskScore(t *testing.T) {
	tests := []struct {
		raw  float64
		want int
	}{
		{137, 100},
		{-5, 0},
		{100, 100},
		{0, 0},
		{42.4, 42},
		{42.5, 43},
		{99.7, 100},
		{math.Inf(1), 100},
		{math.Inf(-1), 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampRiskScore(tt.raw), "raw=%v", tt.raw)
	}
}

func TestNewPendingProfile(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	reporter := domain.NewUserID()

	p, err := NewPendingProfile(domain.NewProfileID(), "https://linkedin.com/in/johndoe",
		Analysis{Name: "John Doe", Title: "CEO", RiskScore: 150, Rationale: "too good to be true"}, reporter, now)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, 100, p.RiskScore)
	assert.Equal(t, 1, p.ReportCount)
	assert.True(t, p.IsActiveOnSource)
	assert.Equal(t, now, p.CreatedAt)
	require.NotNil(t, p.LastCheckedAt)
	assert.Equal(t, now, *p.LastCheckedAt)
	require.NotNil(t, p.ReportedBy)
	assert.Equal(t, reporter, *p.ReportedBy)
	assert.False(t, p.IsPublic())

	_, err = NewPendingProfile(domain.NewProfileID(), "", Analysis{}, reporter, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestStatusIsDecision(t *testing.T) {
	assert.True(t, StatusVerified.IsDecision())
	assert.True(t, StatusRejected.IsDecision())
	assert.False(t, StatusPending.IsDecision())
	assert.False(t, Status("archived").IsDecision())
}

func TestParsers(t *testing.T) {
	kind, err := ParsePublicListKind("")
	require.NoError(t, err)
	assert.Equal(t, ListLatest, kind)

	_, err = ParsePublicListKind("oldest")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = ParseStatus("archived")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	s, err := ParseStatus("verified")
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, s)
}
