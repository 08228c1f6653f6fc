package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("nil error stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("cause remains reachable", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeInternal, "failed to load profile")

		require.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to load profile: connection refused", err.Error())
		assert.True(t, HasCode(err, CodeInternal))
	})
}

func TestHasCode(t *testing.T) {
	t.Run("outermost code wins", func(t *testing.T) {
		inner := New(CodeNotFound, "profile not found")
		outer := Wrap(inner, CodeConflict, "cannot report")

		assert.True(t, HasCode(outer, CodeConflict))
		assert.False(t, HasCode(outer, CodeNotFound))
	})

	t.Run("fmt wrapping is transparent", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeForbidden, "admin role required"))
		assert.True(t, Is(err, CodeForbidden))
		assert.Equal(t, CodeForbidden, CodeOf(err))
		assert.Equal(t, "admin role required", MessageOf(err))
	})

	t.Run("plain errors map to internal", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.Empty(t, MessageOf(err))
	})
}
