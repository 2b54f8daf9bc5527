package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "postflow"

var ErrInvalidToken = errors.New("invalid token")

// CustomClaims identify the user of an API session.
type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// StateClaims travel through an OAuth authorize redirect and come back on the
// callback. Verifier holds the encrypted PKCE code verifier, if any.
type StateClaims struct {
	UserID   int64  `json:"uid"`
	Platform string `json:"platform"`
	Verifier string `json:"pkce,omitempty"`
	jwt.RegisteredClaims
}

func registered(id string, d time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		ID:        id,
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    issuer,
	}
}

func sign(secretKey string, claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func parse(secretKey, tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return err
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func GenerateToken(secretKey, userID string, tokenDuration time.Duration) (string, error) {
	return sign(secretKey, CustomClaims{UserID: userID, RegisteredClaims: registered("", tokenDuration)})
}

func ValidateToken(secretKey, tokenString string) (*CustomClaims, error) {
	var claims CustomClaims
	if err := parse(secretKey, tokenString, &claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// GenerateState signs the OAuth state for a user linking platform. nonce
// becomes the token id so every authorize redirect carries a distinct state.
func GenerateState(secretKey string, claims StateClaims, nonce string, d time.Duration) (string, error) {
	claims.RegisteredClaims = registered(nonce, d)
	return sign(secretKey, claims)
}

// ValidateState verifies a state returned on an OAuth callback for platform.
func ValidateState(secretKey, state, platform string) (*StateClaims, error) {
	var claims StateClaims
	if err := parse(secretKey, state, &claims); err != nil {
		return nil, err
	}
	if claims.Platform != platform || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
