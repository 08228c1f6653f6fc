package handler

import (
	"time"

	"badguys/internal/profile/models"
	"badguys/internal/profile/urlcheck"
)

// ValidateResponse describes an accepted profile reference.
type ValidateResponse struct {
	Valid      bool   `json:"valid"`
	URL        string `json:"url"`
	Kind       string `json:"kind"`
	Identifier string `json:"identifier"`
}

func toValidateResponse(u urlcheck.URL) *ValidateResponse {
	return &ValidateResponse{
		Valid:      true,
		URL:        u.String(),
		Kind:       string(u.Kind()),
		Identifier: u.Identifier(),
	}
}

// PublicProfileResponse is the public projection of a verified record.
// Moderation metadata and the reporter are not exposed.
type PublicProfileResponse struct {
	ID               string    `json:"id"`
	SourceURL        string    `json:"source_url"`
	DisplayName      *string   `json:"display_name"`
	DisplayTitle     *string   `json:"display_title"`
	RiskScore        int       `json:"risk_score"`
	ReportCount      int       `json:"report_count"`
	IsActiveOnSource bool      `json:"is_active_on_source"`
	CreatedAt        time.Time `json:"created_at"`
}

type PublicListResponse struct {
	Kind     string                   `json:"kind"`
	Profiles []*PublicProfileResponse `json:"profiles"`
}

func toPublicList(kind models.PublicListKind, profiles []*models.Profile) *PublicListResponse {
	out := &PublicListResponse{Kind: string(kind), Profiles: make([]*PublicProfileResponse, 0, len(profiles))}
	for _, p := range profiles {
		out.Profiles = append(out.Profiles, &PublicProfileResponse{
			ID:               p.ID.String(),
			SourceURL:        p.SourceURL,
			DisplayName:      p.DisplayName,
			DisplayTitle:     p.DisplayTitle,
			RiskScore:        p.RiskScore,
			ReportCount:      p.ReportCount,
			IsActiveOnSource: p.IsActiveOnSource,
			CreatedAt:        p.CreatedAt,
		})
	}
	return out
}

// ReportResponse carries only the new count.
type ReportResponse struct {
	ReportCount int `json:"report_count"`
}

type ProfileListResponse struct {
	Profiles []*models.Profile `json:"profiles"`
}
