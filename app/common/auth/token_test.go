package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	raw, err := Issue("secret", "analyst", time.Hour)
	require.NoError(t, err)

	claims, err := Parse("secret", raw)
	require.NoError(t, err)
	assert.Equal(t, "analyst", claims.Username)
	assert.Equal(t, "analyst", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestParse_Invalid(t *testing.T) {
	raw, err := Issue("secret", "analyst", time.Hour)
	require.NoError(t, err)

	_, err = Parse("other", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid))

	_, err = Parse("secret", "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse("", raw)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestParse_Expired(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: "analyst",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	raw, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = Parse("secret", raw)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestIssue_EmptyKey(t *testing.T) {
	_, err := Issue("", "analyst", 0)
	assert.ErrorIs(t, err, ErrEmptyKey)
}
