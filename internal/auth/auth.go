// Package auth verifies bearer tokens issued by the identity provider and
// carries the authenticated principal through request contexts.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"counselflow.org/internal/domain"
)

// Claims is the token payload the platform cares about. Everything beyond the
// registered set is provider-specific and ignored.
type Claims struct {
	jwt.RegisteredClaims
}

// ExternalID extracts the provider user id from the token subject. Subjects
// arrive as "<connection>|<uuid>"; bare UUIDs are accepted too.
func (c *Claims) ExternalID() (uuid.UUID, error) {
	sub := c.Subject
	if i := strings.LastIndexByte(sub, '|'); i >= 0 {
		sub = sub[i+1:]
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed token subject", domain.ErrUnauthorized)
	}
	return id, nil
}

// Verifier validates access tokens. RS256 tokens are checked against the
// provider's JWKS; HS256 tokens are checked against the shared secret, which
// keeps local development and tests off the network.
type Verifier struct {
	jwks     *JWKS
	secret   []byte
	issuer   string
	audience string
}

// NewVerifier builds a Verifier. jwks may be nil when only HS256 is in play,
// and secret may be empty when only RS256 is.
func NewVerifier(jwks *JWKS, secret, issuer, audience string) *Verifier {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &Verifier{jwks: jwks, secret: key, issuer: issuer, audience: audience}
}

// Verify parses and validates a raw bearer token, returning its claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "HS256"}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA:
			if v.jwks == nil {
				return nil, fmt.Errorf("rsa tokens not accepted")
			}
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, fmt.Errorf("token missing kid header")
			}
			return v.jwks.Key(ctx, kid)
		case *jwt.SigningMethodHMAC:
			if len(v.secret) == 0 {
				return nil, fmt.Errorf("hmac tokens not accepted")
			}
			return v.secret, nil
		default:
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return claims, nil
}
