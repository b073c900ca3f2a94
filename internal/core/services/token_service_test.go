package services

import (
	"testing"
	"time"

	"streamgate/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueAndValidate(t *testing.T) {
	svc := NewTokenService("secret-1", time.Hour)

	token, expiresAt, err := svc.Issue("cam-1", "user-1", "store-1", []string{domain.PermissionStreamView}, 30*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, time.Minute)

	decoded, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, domain.CameraID("cam-1"), decoded.CameraID)
	assert.Equal(t, domain.UserID("user-1"), decoded.UserID)
	assert.Equal(t, domain.StoreID("store-1"), decoded.StoreID)
	assert.True(t, decoded.Allows(domain.PermissionStreamView))
	assert.False(t, decoded.Allows("stream:admin"))
}

func TestTokenService_DefaultTTLWhenUnset(t *testing.T) {
	svc := NewTokenService("secret-1", 2*time.Hour)

	_, expiresAt, err := svc.Issue("cam-1", "user-1", "store-1", nil, 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), expiresAt, time.Minute)
}

func TestTokenService_RejectsExpired(t *testing.T) {
	// A negative default TTL lets us mint an already-expired token.
	svc := NewTokenService("secret-1", -time.Minute)

	token, _, err := svc.Issue("cam-1", "user-1", "store-1", nil, 0)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-1", time.Hour)
	verifier := NewTokenService("secret-2", time.Hour)

	token, _, err := issuer.Issue("cam-1", "user-1", "store-1", nil, 0)
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestTokenService_RejectsTamperedAndGarbage(t *testing.T) {
	svc := NewTokenService("secret-1", time.Hour)

	token, _, err := svc.Issue("cam-1", "user-1", "store-1", nil, 0)
	require.NoError(t, err)

	tampered := token[:len(token)-3] + "xyz"
	for _, bad := range []string{tampered, "", "not.a.jwt", "a.b"} {
		_, err := svc.Validate(bad)
		assert.ErrorIs(t, err, domain.ErrTokenInvalid, "input %q", bad)
	}
}
