package auth_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/accapool/internal/adapters/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	iss, err := auth.NewIssuer("s3cret", "accapool", time.Hour)
	require.NoError(t, err)

	token, err := iss.Issue("alice", auth.RoleOperator)
	require.NoError(t, err)

	claims, err := iss.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.ParticipantID())
	assert.True(t, claims.IsOperator())
}

func TestIssuer_DefaultRoleIsParticipant(t *testing.T) {
	iss, err := auth.NewIssuer("s3cret", "", 0)
	require.NoError(t, err)

	token, err := iss.Issue("bob", "")
	require.NoError(t, err)
	claims, err := iss.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleParticipant, claims.Role)
	assert.False(t, claims.IsOperator())
}

func TestIssuer_RejectsWrongSecret(t *testing.T) {
	a, _ := auth.NewIssuer("one", "", time.Hour)
	b, _ := auth.NewIssuer("two", "", time.Hour)

	token, err := a.Issue("alice", "")
	require.NoError(t, err)
	_, err = b.Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestIssuer_RejectsExpired(t *testing.T) {
	iss, _ := auth.NewIssuer("s3cret", "", time.Nanosecond)
	token, err := iss.Issue("alice", "")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)
	_, err = iss.Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestIssuer_RejectsNoneAlgorithm(t *testing.T) {
	iss, _ := auth.NewIssuer("s3cret", "", time.Hour)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "mallory"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.Validate(unsigned)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := auth.NewIssuer("", "", time.Hour)
	assert.Error(t, err)
}
