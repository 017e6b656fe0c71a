// Package auth issues and verifies session credentials and guards routes
// that need an authenticated user.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard registered claims plus the user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

var errBadIssue = errors.New("subject must be set and ttl at least one second")

// Codec signs and verifies HS256 session tokens with a process-wide secret.
// The secret is read-only after construction, so a Codec is safe for
// concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithClock replaces time.Now, used by tests to pin the current instant.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a Codec. An empty secret is rejected.
func NewCodec(secret []byte, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, common.ErrEmptySecret
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

// Issue signs a token for subject that expires ttl from now. The returned
// expiry is truncated to whole seconds and equals the exp claim.
func (c *Codec) Issue(subject string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" || ttl < time.Second {
		return "", time.Time{}, fmt.Errorf("issue token: %w", errBadIssue)
	}

	now := c.now()
	expiresAt := now.Add(ttl).Truncate(time.Second)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: subject,
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Decode verifies token and returns its subject. Any problem with the token
// (shape, encoding, algorithm, signature, expiry) yields
// common.ErrInvalidCredential. A token is expired from its exp instant on.
func (c *Codec) Decode(token string) (string, error) {
	claims := &Claims{}

	_, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return "", common.ErrInvalidCredential
	}
	if claims.Subject == "" || claims.UserID != claims.Subject {
		return "", common.ErrInvalidCredential
	}

	return claims.Subject, nil
}
