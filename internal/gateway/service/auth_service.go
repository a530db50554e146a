package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"codeduel/internal/gateway/repository"
	pkgerrors "codeduel/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// PlayerInfo is the identity carried by a verified token.
type PlayerInfo struct {
	ID string
}

type AuthService struct {
	jwtSecret []byte
	jwtIssuer string
	blacklist *repository.TokenBlacklistRepository
}

func NewAuthService(jwtSecret, jwtIssuer string, blacklist *repository.TokenBlacklistRepository) *AuthService {
	return &AuthService{
		jwtSecret: []byte(jwtSecret),
		jwtIssuer: jwtIssuer,
		blacklist: blacklist,
	}
}

type tokenClaims struct {
	jwt.RegisteredClaims
}

// Authenticate verifies an HS256 bearer token and returns the player it was issued to.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (PlayerInfo, error) {
	if raw == "" {
		return PlayerInfo{}, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, err := s.parseToken(raw)
	if err != nil {
		return PlayerInfo{}, err
	}
	if s.blacklist != nil {
		blacklisted, err := s.blacklist.IsBlacklisted(ctx, hashToken(raw))
		if err != nil {
			return PlayerInfo{}, pkgerrors.Wrap(err, pkgerrors.ServiceUnavailable)
		}
		if blacklisted {
			return PlayerInfo{}, pkgerrors.New(pkgerrors.TokenInvalid)
		}
	}
	return PlayerInfo{ID: claims.Subject}, nil
}

// Revoke blacklists raw until its expiry.
func (s *AuthService) Revoke(ctx context.Context, raw string) error {
	claims, err := s.parseToken(raw)
	if err != nil {
		return err
	}
	if s.blacklist == nil || claims.ExpiresAt == nil {
		return nil
	}
	return s.blacklist.Revoke(ctx, hashToken(raw), time.Until(claims.ExpiresAt.Time))
}

// Issue signs a token for playerID. Used by tooling and tests; accounts are managed elsewhere.
func (s *AuthService) Issue(playerID string, ttl time.Duration) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("jwt secret is not configured")
	}
	if strings.TrimSpace(playerID) == "" {
		return "", pkgerrors.ValidationError("playerId", "required")
	}
	now := time.Now()
	claims := tokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   playerID,
		Issuer:    s.jwtIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *AuthService) parseToken(raw string) (*tokenClaims, error) {
	if len(s.jwtSecret) == 0 {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgerrors.New(pkgerrors.TokenExpired)
		}
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if s.jwtIssuer != "" && claims.Issuer != s.jwtIssuer {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	return claims, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
