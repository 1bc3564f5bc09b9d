package jwtinfra

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Purpose scopes a token to exactly one operation. A token minted for
// one purpose must never verify for another, so every verification
// call site pins the purpose it expects.
type Purpose string

const (
	PurposeAccess        Purpose = "access"
	PurposeRefresh       Purpose = "refresh"
	PurposeVerifyEmail   Purpose = "verify-email"
	PurposeResetPassword Purpose = "reset-password"
)

// Verification failures. Callers treat all three as invalid-or-expired
// toward end users; the distinction is for logging and tests.
var (
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenMalformed  = errors.New("token malformed")
	ErrPurposeMismatch = errors.New("token purpose mismatch")
)

// Claims is the signed claim set. Subject carries the account email.
type Claims struct {
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TTLs holds the validity window per purpose, fixed at startup.
type TTLs struct {
	Access        time.Duration
	Refresh       time.Duration
	VerifyEmail   time.Duration
	ResetPassword time.Duration
}

// DefaultTTLs matches the service contract: short-lived access tokens,
// long-lived refresh tokens, a day for email verification and an hour
// for password resets.
func DefaultTTLs() TTLs {
	return TTLs{
		Access:        30 * time.Minute,
		Refresh:       15 * 24 * time.Hour,
		VerifyEmail:   24 * time.Hour,
		ResetPassword: time.Hour,
	}
}

// Provider signs and verifies HS256 JWTs with a process-wide secret.
// Signing and verification are pure computation over the secret and
// clock; the Provider performs no I/O.
type Provider struct {
	secret []byte
	ttls   TTLs
}

func NewProvider(secret []byte, ttls TTLs) (*Provider, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret must not be empty")
	}
	return &Provider{secret: secret, ttls: ttls}, nil
}

func (p *Provider) ttl(purpose Purpose) (time.Duration, error) {
	switch purpose {
	case PurposeAccess:
		return p.ttls.Access, nil
	case PurposeRefresh:
		return p.ttls.Refresh, nil
	case PurposeVerifyEmail:
		return p.ttls.VerifyEmail, nil
	case PurposeResetPassword:
		return p.ttls.ResetPassword, nil
	default:
		return 0, fmt.Errorf("unknown token purpose %q", purpose)
	}
}

// Issue builds and signs a claim set for the given purpose and subject.
// The jti is a fresh ULID so purpose-scoped tokens can be consumed once.
func (p *Provider) Issue(purpose Purpose, subject string) (string, error) {
	ttl, err := p.ttl(purpose)
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// Verify decodes the token and checks signature, expiry and purpose.
// On success it returns the claim set; the subject is the account email.
func (p *Provider) Verify(tokenStr string, expected Purpose) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Purpose != expected {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrPurposeMismatch, claims.Purpose, expected)
	}
	return claims, nil
}
