package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose tells what a token may be used for.
type Purpose string

const (
	PurposeAccess            Purpose = "access"
	PurposeRefresh           Purpose = "refresh"
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

// Claims carries the standard registered claims plus the token purpose.
// Subject is a username for access/refresh tokens and an email otherwise.
type Claims struct {
	jwt.RegisteredClaims
	Purpose Purpose `json:"typ"`
}

// Lifetimes holds the default lifetime per purpose.
type Lifetimes struct {
	Access            time.Duration
	Refresh           time.Duration
	EmailVerification time.Duration
	PasswordReset     time.Duration
}

// TokenCodec issues and validates HMAC-signed JWTs.
type TokenCodec struct {
	secret    []byte
	method    jwt.SigningMethod
	lifetimes map[Purpose]time.Duration
	now       func() time.Time
}

// NewTokenCodec accepts HS256, HS384 or HS512. A nil now uses time.Now.
func NewTokenCodec(secret, algorithm string, l Lifetimes, now func() time.Time) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("empty signing secret")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{
		secret: []byte(secret),
		method: method,
		lifetimes: map[Purpose]time.Duration{
			PurposeAccess:            l.Access,
			PurposeRefresh:           l.Refresh,
			PurposeEmailVerification: l.EmailVerification,
			PurposePasswordReset:     l.PasswordReset,
		},
		now: now,
	}, nil
}

// Lifetime returns the default lifetime for p.
func (c *TokenCodec) Lifetime(p Purpose) time.Duration {
	return c.lifetimes[p]
}

// Issue signs a token for subject with the default lifetime of p.
func (c *TokenCodec) Issue(subject string, p Purpose) (string, error) {
	ttl, ok := c.lifetimes[p]
	if !ok {
		return "", fmt.Errorf("unknown token purpose %q", p)
	}
	return c.IssueWithTTL(subject, p, ttl)
}

// IssueWithTTL signs a token that expires ttl after now. A zero ttl yields a
// token that is already expired.
func (c *TokenCodec) IssueWithTTL(subject string, p Purpose, ttl time.Duration) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(c.method, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: p,
	})
	return token.SignedString(c.secret)
}

// Parse verifies the signature and expiry of token and returns its claims.
// Errors are common.ErrTokenExpired or common.ErrInvalidToken.
func (c *TokenCodec) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", common.ErrInvalidToken)
	}
	return claims, nil
}

// ParseFor is Parse plus a purpose check.
func (c *TokenCodec) ParseFor(token string, p Purpose) (*Claims, error) {
	claims, err := c.Parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != p {
		return nil, fmt.Errorf("%w: %s token used as %s", common.ErrInvalidToken, claims.Purpose, p)
	}
	return claims, nil
}
