// Package auth issues and validates the operator tokens that guard admin endpoints.
//
// Tokens are HS256 JWTs carrying the operator as subject and a role claim.
// There are no refresh tokens; operators mint a new token when one expires.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenExpiry is how long operator tokens are valid unless configured otherwise.
const DefaultTokenExpiry = 12 * time.Hour

// Token errors.
var (
	ErrInvalidToken      = errors.New("invalid access token")
	ErrTokenExpired      = errors.New("access token has expired")
	ErrMissingSubject    = errors.New("token subject is required")
	ErrUnknownRole       = errors.New("unknown role")
	ErrMissingSigningKey = errors.New("signing key is required")
)

// Role grants access to a group of admin endpoints.
type Role string

const (
	// RoleModerator may clear barrier reports.
	RoleModerator Role = "moderator"
	// RoleAdmin may do everything a moderator can and manage feature flags.
	RoleAdmin Role = "admin"
)

// Roles lists every role.
var Roles = []Role{RoleModerator, RoleAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return slices.Contains(Roles, r)
}

// Grants reports whether r satisfies a requirement for required.
func (r Role) Grants(required Role) bool {
	if r == RoleAdmin {
		return true
	}
	return r == required
}

// Claims are the claims carried by an operator token.
type Claims struct {
	jwt.RegisteredClaims

	Role Role `json:"role"`
}

// JWTConfig holds configuration for the token service.
type JWTConfig struct {
	// SigningKey is the HMAC secret (required).
	SigningKey string

	// Issuer is the iss claim, e.g. "https://api.accessroute.example".
	Issuer string

	// Audience is the aud claim, e.g. "accessroute-admin".
	Audience string

	// Expiry is the token lifetime (default: DefaultTokenExpiry).
	Expiry time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// JWTService signs and validates operator tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	expiry     time.Duration
	now        func() time.Time
}

// NewJWTService creates a token service.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.SigningKey == "" {
		return nil, ErrMissingSigningKey
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		expiry:     expiry,
		now:        now,
	}, nil
}

// Issue signs a token for subject with role.
func (s *JWTService) Issue(subject string, role Role) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, ErrMissingSubject
	}
	if !role.Valid() {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	now := s.now()
	expiresAt := now.Add(s.expiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        newTokenID(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses a token and checks its signature, issuer, audience, expiry and role.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrMissingSubject)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: %w %q", ErrInvalidToken, ErrUnknownRole, claims.Role)
	}
	return claims, nil
}

func newTokenID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
