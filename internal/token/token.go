// Package token issues and verifies the access/refresh JWT pair.
//
// The two token kinds are signed with distinct secrets so an access token can
// never be replayed against the refresh endpoint and vice versa. Verification
// failures of any kind collapse into ErrInvalidToken so callers cannot leak
// why a token was rejected.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for every verification failure: bad signature,
// wrong signing method, expired, malformed claims, wrong issuer or audience.
var ErrInvalidToken = errors.New("invalid token")

const (
	// Issuer and Audience are embedded in every token and checked on verify.
	Issuer   = "verdant-api"
	Audience = "verdant-client"
)

// Payload is the application data carried by a token.
type Payload struct {
	UserID uint
	Email  string
}

// Pair holds a freshly issued access/refresh token couple.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service signs and verifies tokens. Access and refresh tokens use separate
// secrets and lifetimes.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewService builds a token service. Secrets must be non-empty and distinct;
// config validation enforces that before we get here.
func NewService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *Service) sign(p Payload, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(p.UserID), 10),
		"email": p.Email,
		"iss":   Issuer,
		"aud":   Audience,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"jti":   uuid.NewString(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// IssueAccess signs a new short-lived access token for the payload.
func (s *Service) IssueAccess(p Payload) (string, error) {
	return s.sign(p, s.accessSecret, s.accessTTL)
}

// IssueRefresh signs a new long-lived refresh token for the payload.
func (s *Service) IssueRefresh(p Payload) (string, error) {
	return s.sign(p, s.refreshSecret, s.refreshTTL)
}

// IssuePair signs a fresh access/refresh pair for the payload.
func (s *Service) IssuePair(p Payload) (Pair, error) {
	access, err := s.IssueAccess(p)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.IssueRefresh(p)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) verify(raw string, secret []byte) (Payload, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return Payload{}, ErrInvalidToken
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Payload{}, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Payload{}, ErrInvalidToken
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return Payload{}, ErrInvalidToken
	}

	email, _ := claims["email"].(string)

	return Payload{UserID: uint(id), Email: email}, nil
}

// VerifyAccess validates an access token and returns its payload.
func (s *Service) VerifyAccess(raw string) (Payload, error) {
	return s.verify(raw, s.accessSecret)
}

// VerifyRefresh validates a refresh token and returns its payload.
func (s *Service) VerifyRefresh(raw string) (Payload, error) {
	return s.verify(raw, s.refreshSecret)
}
