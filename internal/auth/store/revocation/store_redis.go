package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefixes for revoked tokens and revoked subjects
	revokedTokenKeyPrefix   = "badguys:revoked:jti:"
	revokedSubjectKeyPrefix = "badguys:revoked:sub:"
)

// RedisList is a Redis-backed revocation list shared by every instance.
// Entries expire with the token they revoke.
type RedisList struct {
	client redis.Cmdable
}

// NewRedis constructs a Redis-backed token revocation list.
func NewRedis(client redis.Cmdable) *RedisList {
	return &RedisList{client: client}
}

// Revoke marks jti as revoked for ttl. A non-positive ttl means the token has
// already expired and nothing is stored.
func (l *RedisList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	// The key's existence is what matters.
	if err := l.client.Set(ctx, revokedTokenKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeSubject rejects every token issued to subject for ttl, which should
// cover the longest lifetime a token can have.
func (l *RedisList) RevokeSubject(ctx context.Context, subject string, ttl time.Duration) error {
	if subject == "" || ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, revokedSubjectKeyPrefix+subject, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke subject: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether jti is on the list.
func (l *RedisList) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	revoked, err := l.exists(ctx, revokedTokenKeyPrefix+jti)
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return revoked, nil
}

// IsSubjectRevoked reports whether tokens issued to subject are rejected.
func (l *RedisList) IsSubjectRevoked(ctx context.Context, subject string) (bool, error) {
	if subject == "" {
		return false, nil
	}
	revoked, err := l.exists(ctx, revokedSubjectKeyPrefix+subject)
	if err != nil {
		return false, fmt.Errorf("check subject revocation: %w", err)
	}
	return revoked, nil
}

func (l *RedisList) exists(ctx context.Context, key string) (bool, error) {
	_, err := l.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
