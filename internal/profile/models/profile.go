package models

import (
	"math"
	"time"

	"badguys/pkg/domain"
	dErrors "badguys/pkg/domain-errors"
)

// Status is the moderation state of a profile record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusVerified, StatusRejected:
		return Status(s), nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "status is required")
	default:
		return "", dErrors.New(dErrors.CodeValidation, "status must be one of pending, verified, rejected")
	}
}

// IsDecision reports whether s is a status an admin may set. Records never
// return to pending; verified and rejected may flip either way.
func (s Status) IsDecision() bool {
	return s == StatusVerified || s == StatusRejected
}

func (s Status) String() string { return string(s) }

// Profile is a reported external profile and its moderation state.
//
// Invariants:
//   - SourceURL is a validated reference and unique across records
//   - RiskScore is within [0,100]
//   - ReportCount starts at 1 and never decreases
//   - Only verified records are publicly visible
//   - CreatedAt is immutable after construction
type Profile struct {
	ID                domain.ProfileID `json:"id"`
	SourceURL         string           `json:"source_url"`
	DisplayName       *string          `json:"display_name"`
	DisplayTitle      *string          `json:"display_title"`
	RiskScore         int              `json:"risk_score"`
	Status            Status           `json:"status"`
	ReportCount       int              `json:"report_count"`
	IsActiveOnSource  bool             `json:"is_active_on_source"`
	AnalysisRationale *string          `json:"analysis_rationale,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	LastCheckedAt     *time.Time       `json:"last_checked_at"`
	ReportedBy        *domain.UserID   `json:"-"`
}

// IsPublic reports whether the record may appear in public projections.
func (p *Profile) IsPublic() bool {
	return p.Status == StatusVerified
}

// NewPendingProfile builds a freshly analyzed record awaiting admin review.
func NewPendingProfile(id domain.ProfileID, sourceURL string, a Analysis, reporter domain.UserID, now time.Time) (*Profile, error) {
	if sourceURL == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "profile source url cannot be empty")
	}
	p := &Profile{
		ID:               id,
		SourceURL:        sourceURL,
		Status:           StatusPending,
		ReportCount:      1,
		IsActiveOnSource: true,
		CreatedAt:        now,
	}
	p.ApplyAnalysis(a, now)
	if !reporter.IsNil() {
		r := reporter
		p.ReportedBy = &r
	}
	return p, nil
}

// ApplyAnalysis overwrites the analysis-derived fields. Status is untouched.
func (p *Profile) ApplyAnalysis(a Analysis, now time.Time) {
	p.DisplayName = optional(a.Name)
	p.DisplayTitle = optional(a.Title)
	p.AnalysisRationale = optional(a.Rationale)
	p.RiskScore = ClampRiskScore(float64(a.RiskScore))
	checked := now
	p.LastCheckedAt = &checked
}

// Analysis is the structured output of a profile analyzer.
type Analysis struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	RiskScore int    `json:"risk_score"`
	Rationale string `json:"analysis"`
}

// ClampRiskScore rounds raw to the nearest integer and clamps it into [0,100].
func ClampRiskScore(raw float64) int {
	if math.IsNaN(raw) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, raw))))
}

// PublicListKind selects a public projection.
type PublicListKind string

const (
	ListLatest       PublicListKind = "latest"
	ListMostReported PublicListKind = "most_reported"
)

// ParsePublicListKind defaults to latest when s is empty.
func ParsePublicListKind(s string) (PublicListKind, error) {
	switch PublicListKind(s) {
	case "":
		return ListLatest, nil
	case ListLatest, ListMostReported:
		return PublicListKind(s), nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "kind must be latest or most_reported")
	}
}

// Filter narrows Count queries. Nil fields match everything.
type Filter struct {
	Status           *Status
	IsActiveOnSource *bool
}

// Stats are the public KPI counters.
type Stats struct {
	Found       int `json:"found"`
	StillActive int `json:"still_active"`
	Deactivated int `json:"deactivated"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
