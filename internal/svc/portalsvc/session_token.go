package portalsvc

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mkrupp/studentportal/internal/domain"
)

// IssueSessionToken creates a PS256-signed JWT for accountID valid for ttl from now.
func IssueSessionToken(
	signingKey *rsa.PrivateKey,
	accountID string,
	now time.Time,
	ttl time.Duration,
) (string, domain.SessionToken, error) {
	token := domain.SessionToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}

	//nolint:exhaustruct
	claims := jwt.RegisteredClaims{
		ID:        token.ID,
		Subject:   token.AccountID,
		IssuedAt:  jwt.NewNumericDate(time.Unix(token.IssuedAt, 0)),
		ExpiresAt: jwt.NewNumericDate(time.Unix(token.ExpiresAt, 0)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodPS256, claims).SignedString(signingKey)
	if err != nil {
		return "", domain.SessionToken{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, token, nil
}

// ParseSessionToken verifies the signature and expiry of a session token at time now.
// Returns domain.ErrInvalidSessionToken for any validation failure.
func ParseSessionToken(tokenString string, publicKey *rsa.PublicKey, now time.Time) (domain.SessionToken, error) {
	var claims jwt.RegisteredClaims

	_, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(*jwt.Token) (any, error) { return publicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodPS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return domain.SessionToken{}, errors.Join(domain.ErrInvalidSessionToken, err)
	}

	if claims.Subject == "" || claims.IssuedAt == nil {
		return domain.SessionToken{}, fmt.Errorf("%w: missing subject or iat", domain.ErrInvalidSessionToken)
	}

	return domain.SessionToken{
		ID:        claims.ID,
		AccountID: claims.Subject,
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	}, nil
}
