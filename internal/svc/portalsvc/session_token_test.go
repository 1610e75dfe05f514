package portalsvc_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/studentportal/internal/domain"
	"github.com/mkrupp/studentportal/internal/svc/portalsvc"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)

	signed, issued, err := portalsvc.IssueSessionToken(testSigningKey(), "acc-1", now, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "acc-1", issued.AccountID)
	assert.Len(t, issued.ID, 36)
	assert.Equal(t, now.Unix(), issued.IssuedAt)
	assert.Equal(t, now.Add(time.Hour).Unix(), issued.ExpiresAt)

	parsed, err := portalsvc.ParseSessionToken(signed, &testSigningKey().PublicKey, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, issued, parsed)
}

func TestSessionToken_Rejected(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)

	signed, _, err := portalsvc.IssueSessionToken(testSigningKey(), "acc-1", now, time.Hour)
	require.NoError(t, err)

	otherKey, err := portalsvc.GeneratePrivateKey(portalsvc.DefaultKeySize)
	require.NoError(t, err)

	foreign, _, err := portalsvc.IssueSessionToken(otherKey, "acc-1", now, time.Hour)
	require.NoError(t, err)

	//nolint:exhaustruct
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "acc-1",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, _, err := portalsvc.IssueSessionToken(testSigningKey(), "", now, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		at    time.Time
	}{
		{name: "expired", token: signed, at: now.Add(2 * time.Hour)},
		{name: "tampered", token: signed[:len(signed)-4] + "AAAA", at: now},
		{name: "foreign key", token: foreign, at: now},
		{name: "alg none", token: unsigned, at: now},
		{name: "no subject", token: noSubject, at: now},
		{name: "garbage", token: "not.a.token", at: now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := portalsvc.ParseSessionToken(tt.token, &testSigningKey().PublicKey, tt.at)
			assert.ErrorIs(t, err, domain.ErrInvalidSessionToken)
		})
	}
}
