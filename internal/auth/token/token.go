// Package token issues and verifies the JWT pair used by the API: a short
// lived access token and a rotating refresh token.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"yaadmarket_backend/platform/config"
)

var ErrInvalidToken = errors.New("invalid token")

// Pair is an issued access/refresh token pair.
type Pair struct {
	AccessToken   string
	RefreshToken  string
	RefreshID     uuid.UUID
	AccessExpiry  time.Time
	RefreshExpiry time.Time
}

// Issuer creates signed token pairs.
type Issuer struct {
	cfg config.AuthServiceConfig
}

func NewIssuer(cfg config.AuthServiceConfig) *Issuer {
	return &Issuer{cfg: cfg}
}

// Issue creates a fresh token pair for the user. The refresh token carries a
// jti so it can be revoked server side.
func (i *Issuer) Issue(userID uuid.UUID, roles []string) (Pair, error) {
	now := time.Now()
	accessExpiry := now.Add(i.cfg.GetAccessTokenTTL())
	refreshExpiry := now.Add(i.cfg.GetRefreshTokenTTL())
	refreshID := uuid.New()

	accessClaims := jwt.MapClaims{
		"sub":   userID.String(),
		"roles": roles,
		"type":  "access",
		"iat":   now.Unix(),
		"exp":   accessExpiry.Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(i.cfg.GetJWTAccessSecret()))
	if err != nil {
		return Pair{}, err
	}

	refreshClaims := jwt.MapClaims{
		"sub":  userID.String(),
		"jti":  refreshID.String(),
		"type": "refresh",
		"iat":  now.Unix(),
		"exp":  refreshExpiry.Unix(),
	}
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(i.cfg.GetJWTRefreshSecret()))
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:   access,
		RefreshToken:  refresh,
		RefreshID:     refreshID,
		AccessExpiry:  accessExpiry,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// RefreshClaims is the verified content of a refresh token.
type RefreshClaims struct {
	UserID    uuid.UUID
	RefreshID uuid.UUID
}

// ParseRefresh verifies a refresh token and extracts its claims.
func (i *Issuer) ParseRefresh(rawToken string) (RefreshClaims, error) {
	parsed, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(i.cfg.GetJWTRefreshSecret()), nil
	})
	if err != nil || !parsed.Valid {
		return RefreshClaims{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return RefreshClaims{}, ErrInvalidToken
	}
	if tokenType, _ := claims["type"].(string); tokenType != "refresh" {
		return RefreshClaims{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return RefreshClaims{}, ErrInvalidToken
	}

	jti, _ := claims["jti"].(string)
	refreshID, err := uuid.Parse(jti)
	if err != nil {
		return RefreshClaims{}, ErrInvalidToken
	}

	return RefreshClaims{UserID: userID, RefreshID: refreshID}, nil
}
