package handler

import (
	"time"

	"badguys/internal/auth/models"
	"badguys/internal/auth/service"
)

type AccountResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
}

func toAccountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID.String(),
		Email:     a.Email,
		Role:      string(a.Role),
		CreatedAt: a.CreatedAt,
	}
}

func toTokenResponse(res *service.SignInResult, now time.Time) TokenResponse {
	return TokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(res.ExpiresAt.Sub(now).Seconds()),
		UserID:      res.Actor.ID.String(),
		Role:        string(res.Actor.Role),
	}
}
