package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"snapexpense/internal"
)

// Claims carries only the user identifier; role and profile are always
// resolved from the repository at request time so edits take effect
// immediately.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type TokenGenerator struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenGenerator(secret string, ttl time.Duration) *TokenGenerator {
	return &TokenGenerator{secret: []byte(secret), ttl: ttl}
}

func (g *TokenGenerator) Generate(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return signed, nil
}

func (g *TokenGenerator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}
	if !token.Valid {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}
