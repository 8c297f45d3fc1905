package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreboard/choreboard/internal/model"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return fixed }

	tok, exp, err := issuer.Issue(&model.User{ID: 7, FamilyID: 3, Role: model.RoleChild})
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(time.Hour), exp)

	claims, err := issuer.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, int64(3), claims.FamilyID)
	assert.Equal(t, model.RoleChild, claims.Role)
	assert.True(t, claims.ExpiresAt.Equal(exp))
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return start }

	tok, _, err := issuer.Issue(&model.User{ID: 1, FamilyID: 1, Role: model.RoleParent})
	require.NoError(t, err)

	issuer.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, err = issuer.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWrongSecret(t *testing.T) {
	tok, _, err := NewTokenIssuer("one", time.Hour).Issue(&model.User{ID: 1, FamilyID: 1, Role: model.RoleParent})
	require.NoError(t, err)

	_, err = NewTokenIssuer("two", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsUnsignedAlgorithm(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "1", "fid": 1, "role": "parent", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsMissingClaims(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenGarbage(t *testing.T) {
	_, err := NewTokenIssuer("secret", time.Hour).Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
