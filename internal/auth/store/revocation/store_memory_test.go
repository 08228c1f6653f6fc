package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	list := NewInMemory(WithClock(func() time.Time { return now }))

	require.NoError(t, list.Revoke(ctx, "jti-1", time.Minute))
	require.NoError(t, list.Revoke(ctx, "", time.Minute))
	require.NoError(t, list.Revoke(ctx, "jti-expired", 0))

	revoked, err := list.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = list.IsTokenRevoked(ctx, "jti-expired")
	assert.False(t, revoked)
	revoked, _ = list.IsTokenRevoked(ctx, "never-seen")
	assert.False(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = list.IsTokenRevoked(ctx, "jti-1")
	assert.False(t, revoked, "entry lapses with the token")

	require.NoError(t, list.Revoke(ctx, "jti-2", time.Minute))
	assert.Len(t, list.revoked, 1, "expired entries are pruned on write")
}

func TestInMemory_Subjects(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	list := NewInMemory(WithClock(func() time.Time { return now }))

	require.NoError(t, list.RevokeSubject(ctx, "user-1", time.Hour))
	require.NoError(t, list.RevokeSubject(ctx, "", time.Hour))

	revoked, err := list.IsSubjectRevoked(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, _ = list.IsSubjectRevoked(ctx, "user-2")
	assert.False(t, revoked)
	revoked, _ = list.IsTokenRevoked(ctx, "user-1")
	assert.False(t, revoked, "subjects and token ids are separate lists")

	now = now.Add(time.Hour)
	revoked, _ = list.IsSubjectRevoked(ctx, "user-1")
	assert.False(t, revoked, "entry lapses once every token it covered has expired")
}
