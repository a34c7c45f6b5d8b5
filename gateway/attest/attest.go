// Package attest implements identity verification backends for the issuance
// engine. Attestation tokens travel in the request context.
package attest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"playmint/crypto"
)

var (
	ErrMissingToken     = errors.New("attest: attestation token missing")
	ErrInvalidToken     = errors.New("attest: attestation token invalid")
	ErrIdentityMismatch = errors.New("attest: token subject does not match identity")
	ErrNetworkMismatch  = errors.New("attest: token issued for another network")
	ErrNotAllowed       = errors.New("attest: identity not on allowlist")
)

type contextKey struct{}

// WithToken returns a context carrying the caller's attestation token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKey{}, strings.TrimSpace(token))
}

// TokenFrom extracts the attestation token from ctx.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(contextKey{}).(string)
	return token
}

// NetworkClaim names the JWT claim carrying the gatekeeper network.
const NetworkClaim = "net"

// JWTVerifier accepts HS256 tokens whose subject is the identity and whose
// network claim matches the gatekeeper network.
type JWTVerifier struct {
	secret    []byte
	issuer    string
	clockSkew time.Duration
}

// NewJWTVerifier builds a verifier. An empty secret is rejected.
func NewJWTVerifier(secret, issuer string, clockSkew time.Duration) (*JWTVerifier, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errors.New("attest: secret not configured")
	}
	if clockSkew <= 0 {
		clockSkew = 2 * time.Minute
	}
	return &JWTVerifier{secret: []byte(trimmed), issuer: strings.TrimSpace(issuer), clockSkew: clockSkew}, nil
}

// Verify implements the engine gateway.
func (v *JWTVerifier) Verify(ctx context.Context, identity crypto.Address, network string) error {
	raw := TokenFrom(ctx)
	if raw == "" {
		return ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(v.clockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("%w: claims not map", ErrInvalidToken)
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	subjectAddr, err := crypto.ParseAddress(subject)
	if err != nil || subjectAddr != identity {
		return ErrIdentityMismatch
	}
	if network != "" {
		claimed, _ := claims[NetworkClaim].(string)
		if claimed != network {
			return ErrNetworkMismatch
		}
	}
	return nil
}

// Issue mints a token for identity on network. Operators use it to hand out
// attestations; tests use it to exercise Verify.
func (v *JWTVerifier) Issue(identity crypto.Address, network string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":        identity.String(),
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
		NetworkClaim: network,
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Allowlist accepts a fixed set of identities regardless of network.
type Allowlist struct {
	mu      sync.RWMutex
	members map[crypto.Address]struct{}
}

// NewAllowlist seeds the allowlist.
func NewAllowlist(members ...crypto.Address) *Allowlist {
	list := &Allowlist{members: make(map[crypto.Address]struct{}, len(members))}
	for _, m := range members {
		list.members[m] = struct{}{}
	}
	return list
}

// Add admits identity.
func (a *Allowlist) Add(identity crypto.Address) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.members[identity] = struct{}{}
}

// Verify implements the engine gateway.
func (a *Allowlist) Verify(_ context.Context, identity crypto.Address, _ string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if _, ok := a.members[identity]; !ok {
		return fmt.Errorf("%w: %s", ErrNotAllowed, identity)
	}
	return nil
}

// Permissive accepts every identity. Suitable for curated local networks.
type Permissive struct{}

// Verify implements the engine gateway.
func (Permissive) Verify(context.Context, crypto.Address, string) error { return nil }
