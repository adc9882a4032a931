package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultIssuer is stamped on every poll token.
	DefaultIssuer = "whiteboard-relay"
	// DefaultTTL bounds how long a polling session may live.
	DefaultTTL = 12 * time.Hour
)

// ErrSessionMismatch is returned when a valid token is presented for another poll session.
var ErrSessionMismatch = errors.New("token does not match poll session")

// Claims binds a token to one polling connection.
type Claims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// NewJWTConfig builds a config from a shared secret. An empty secret is replaced
// with a random one, which invalidates tokens across restarts.
func NewJWTConfig(secret string, ttl time.Duration) (*JWTConfig, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JWTConfig{Secret: key, Issuer: DefaultIssuer, TTL: ttl}, nil
}

// GenerateToken signs a token for the poll session sid.
func GenerateToken(cfg *JWTConfig, sid string) (string, error) {
	now := time.Now()
	claims := Claims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   sid,
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// ValidateToken parses and validates a JWT token.
func ValidateToken(cfg *JWTConfig, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("invalid issuer")
	}
	if claims.SID == "" {
		return nil, fmt.Errorf("token has no session")
	}

	return claims, nil
}

// ValidateFor validates tokenString and checks it was issued for sid.
func ValidateFor(cfg *JWTConfig, tokenString, sid string) (*Claims, error) {
	claims, err := ValidateToken(cfg, tokenString)
	if err != nil {
		return nil, err
	}
	if claims.SID != sid {
		return nil, ErrSessionMismatch
	}
	return claims, nil
}
