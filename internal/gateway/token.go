package gateway

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access-token payload. The auth service signs these with
// RS256; the gateway only ever holds the public key.
type Claims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenVerifier validates access tokens against the auth service's RSA
// public key.
type TokenVerifier struct {
	publicKey *rsa.PublicKey
}

// NewTokenVerifier loads an RSA public key from a PEM file.
func NewTokenVerifier(publicKeyPath string) (*TokenVerifier, error) {
	pemBytes, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading jwt public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt public key: %w", err)
	}
	return &TokenVerifier{publicKey: key}, nil
}

// NewTokenVerifierFromKey wraps an already-parsed key, mainly for tests.
func NewTokenVerifierFromKey(key *rsa.PublicKey) *TokenVerifier {
	return &TokenVerifier{publicKey: key}
}

// Verify checks the signature and expiry and returns the claims. Only
// RS256 is accepted; a token signed with any other algorithm is rejected
// outright.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return v.publicKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
