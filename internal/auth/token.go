// ABOUTME: JWT session tokens for authenticating HTTP requests
// ABOUTME: HS256 signed; the "sub" claim carries the caller identity

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2389/coven-acl/internal/identity"
)

// MinSecretLength is the minimum HS256 secret size in bytes.
const MinSecretLength = 32

// tokenIssuer is written to and required in the "iss" claim.
const tokenIssuer = "coven-acl"

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrWeakSecret   = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
)

// TokenVerifier defines the interface for token verification
type TokenVerifier interface {
	Verify(tokenString string) (identity.Identity, error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret
func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &JWTVerifier{secret: secret}, nil
}

// Verify validates the token and extracts the caller from the "sub" claim
func (v *JWTVerifier) Verify(tokenString string) (identity.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Null, ErrExpiredToken
		}
		return identity.Null, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return identity.Null, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	caller, err := identity.Parse(sub)
	if err != nil || caller.IsNull() {
		return identity.Null, fmt.Errorf("%w: sub is not an identity", ErrInvalidToken)
	}
	return caller, nil
}

// Generate creates a token for caller that expires after expiresIn.
func (v *JWTVerifier) Generate(caller identity.Identity, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   caller.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
