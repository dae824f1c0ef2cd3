// Package auth verifies bearer tokens on protected routes.
package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "go-crop-inspector/internal/errors"
)

const (
	msgMissingHeader = "No authorization header"
	msgInvalidToken  = "Invalid token"
)

var errMissingBearer = errors.New("missing bearer token")

// Identity is the authenticated caller.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
}

// Verifier validates a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Options configures a JWTVerifier. Exactly one of Secret (HS256) and
// PublicKeyPEM (RS256) is used; the public key wins when both are set.
type Options struct {
	Secret       string
	PublicKeyPEM string
	Issuer       string
	Audience     string
	Leeway       time.Duration
}

type tokenClaims struct {
	Email  string `json:"email"`
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTVerifier checks signature, expiry and optionally issuer and audience.
type JWTVerifier struct {
	key     any
	method  string
	options []jwt.ParserOption
}

// NewJWTVerifier builds a verifier from opts.
func NewJWTVerifier(opts Options) (*JWTVerifier, error) {
	v := &JWTVerifier{}
	switch {
	case opts.PublicKeyPEM != "":
		pub, err := parseRSAPublic(opts.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		v.key = pub
		v.method = jwt.SigningMethodRS256.Alg()
	case opts.Secret != "":
		v.key = []byte(opts.Secret)
		v.method = jwt.SigningMethodHS256.Alg()
	default:
		return nil, errors.New("jwt secret or public key is required")
	}

	leeway := opts.Leeway
	if leeway <= 0 {
		leeway = 30 * time.Second
	}
	v.options = []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method}),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		v.options = append(v.options, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		v.options = append(v.options, jwt.WithAudience(opts.Audience))
	}
	return v, nil
}

// Verify implements Verifier. Failures are unauthorized AppErrors.
func (v *JWTVerifier) Verify(ctx context.Context, raw string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != v.method {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.key, nil
	}, v.options...)
	if err != nil {
		return Identity{}, apperrors.NewUnauthorizedError(msgInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Identity{}, apperrors.NewUnauthorizedError(msgInvalidToken, errors.New("invalid token claims"))
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.UserID
	}
	if subject == "" {
		return Identity{}, apperrors.NewUnauthorizedError(msgInvalidToken, errors.New("token has no subject"))
	}
	return Identity{Subject: subject, Email: claims.Email}, nil
}

// BearerTokenFromHeader extracts the token from an Authorization value.
func BearerTokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errMissingBearer
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errMissingBearer
	}
	return token, nil
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
