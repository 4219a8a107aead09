package token

// Package token owns the signed session token. The token mirrors the
// server-side session record; the record in the session store remains
// authoritative and client-presented claims are never trusted on their own.

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/DexterMayheww/nit-portal-api/internal/domain/auth"
)

const minSigningKeyLen = 32

// Config holds the signing configuration for the token manager.
type Config struct {
	// SigningKey is the HMAC-SHA256 key. Must be at least 32 bytes.
	SigningKey []byte
	// Issuer is stamped into and required of every token.
	Issuer string
	// Leeway tolerates small clock skew when validating expiry.
	Leeway time.Duration
}

// SessionClaims are the claims carried by a session token. OTPVerified is a
// projection of the stored session at mint time; consumers must re-check the
// stored session before honoring it.
type SessionClaims struct {
	UserID      string          `json:"uid"`
	Role        domainauth.Role `json:"role"`
	OTPVerified bool            `json:"otp_verified"`
	jwt.RegisteredClaims
}

// SessionID returns the session store key the token points at.
func (c SessionClaims) SessionID() string { return c.RegisteredClaims.Subject }

// Manager mints and parses signed session tokens.
type Manager struct {
	cfg Config
}

var (
	// ErrInvalidToken is returned for any token that fails signature,
	// structure, or registered-claim validation.
	ErrInvalidToken = errors.New("invalid session token")
)

// NewManager validates the config and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.SigningKey) < minSigningKeyLen {
		return nil, fmt.Errorf("signing key must be at least %d bytes", minSigningKeyLen)
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{cfg: cfg}, nil
}

// Mint produces a signed token projecting the given session. The token's
// lifetime follows the session's ExpiresAt.
func (m *Manager) Mint(sess domainauth.Session) (string, error) {
	if sess.ID == "" {
		return "", errors.New("session ID is required")
	}
	now := time.Now()
	claims := SessionClaims{
		UserID:      sess.UserID,
		Role:        sess.Role,
		OTPVerified: sess.OTPVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.ID,
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies the token's signature and registered claims and returns the
// embedded session claims.
func (m *Manager) Parse(raw string) (SessionClaims, error) {
	if raw == "" {
		return SessionClaims{}, ErrInvalidToken
	}

	var claims SessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return m.cfg.SigningKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.cfg.Leeway),
	)
	if err != nil {
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.SessionID() == "" {
		return SessionClaims{}, ErrInvalidToken
	}
	return claims, nil
}
