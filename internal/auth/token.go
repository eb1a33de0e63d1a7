// ABOUTME: JWT session tokens so the CLI can stay logged in between invocations
// ABOUTME: Uses HS256 signing with the configured session secret

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// SessionClaims is what a session token asserts
type SessionClaims struct {
	IdentityID string
	SessionID  string
	ExpiresAt  time.Time
}

// JWTIssuer issues and verifies HS256 signed JWTs
type JWTIssuer struct {
	secret []byte
}

// NewJWTIssuer creates a new issuer with the given secret
func NewJWTIssuer(secret []byte) *JWTIssuer {
	return &JWTIssuer{secret: secret}
}

// Verify validates the token and extracts the identity ("sub") and session ("sid") claims
func (v *JWTIssuer) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	sid, _ := claims["sid"].(string)

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: exp", ErrMissingClaim)
	}

	return &SessionClaims{
		IdentityID: sub,
		SessionID:  sid,
		ExpiresAt:  exp.Time,
	}, nil
}

// Generate creates a new JWT for the identity and session with expiration
func (v *JWTIssuer) Generate(identityID, sessionID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": identityID,
		"sid": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
