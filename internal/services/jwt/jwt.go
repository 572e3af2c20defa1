// Package jwt issues and validates the API keys of the JSON API.
//
// An API key is an HS256 JWT carrying a role claim:
//   - anon:    may read users
//   - service: may also create, update and delete users
package jwt

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrTokenNotFound = errors.New("token not found")
	ErrInvalidRole   = errors.New("invalid role")
	ErrMissingSecret = errors.New("api key secret not configured")
)

const (
	DefaultIssuer = "user-directory"
	audience      = "user-directory-api"
)

// Role is the access level granted by a key.
type Role string

const (
	RoleAnon    Role = "anon"
	RoleService Role = "service"
)

func (r Role) Valid() bool { return r == RoleAnon || r == RoleService }

// Allows reports whether a key with role r may act as required.
func (r Role) Allows(required Role) bool {
	switch r {
	case RoleService:
		return required.Valid()
	case RoleAnon:
		return required == RoleAnon
	default:
		return false
	}
}

// Claims represents the API key claims
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and parses API keys
type TokenService struct {
	secret []byte
	issuer string
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenService reads JWT_API_SECRET and JWT_ISSUER from the environment
func NewTokenService() *TokenService {
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return NewTokenServiceWithSecret([]byte(os.Getenv("JWT_API_SECRET")), issuer)
}

func NewTokenServiceWithSecret(secret []byte, issuer string) *TokenService {
	return &TokenService{
		secret: secret,
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
		),
		now: time.Now,
	}
}

// Issue creates a key for role valid for ttl.
func (s *TokenService) Issue(role Role, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	now := s.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   string(role),
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("creating api key: %w", err)
	}
	return token, nil
}

// Parse validates a key and returns its claims
func (s *TokenService) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenNotFound
	}
	if len(s.secret) == 0 {
		return nil, ErrMissingSecret
	}

	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !claims.Role.Valid() {
		return nil, ErrInvalidRole
	}
	return claims, nil
}
