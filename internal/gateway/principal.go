// Package gateway implements C11: the OpenAI-compatible HTTP frontend that
// decodes requests, derives the request's required capabilities, and drives
// C10 (dedup) then C9 (fallback orchestrator) to produce a response.
package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the caller identity the core consumes; it never inspects the
// token itself, only these three fields.
type Principal struct {
	TenantID    string
	UserID      string
	PrincipalID string
}

// principalClaims is the minimal claim set a bearer JWT must carry.
type principalClaims struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	jwt.RegisteredClaims
}

// AuthExtractor turns an Authorization header into a Principal. The default
// implementation accepts HS256 JWTs signed with a shared secret; deployments
// needing OAuth/OIDC/API-key lookups supply their own.
type AuthExtractor interface {
	Extract(r *http.Request) (Principal, error)
}

type jwtExtractor struct {
	secret []byte
}

// NewJWTExtractor returns an AuthExtractor that verifies HS256-signed
// bearer tokens against secret.
func NewJWTExtractor(secret []byte) AuthExtractor {
	return &jwtExtractor{secret: secret}
}

func (e *jwtExtractor) Extract(r *http.Request) (Principal, error) {
	header := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return Principal{}, errMissingToken
	}

	claims := &principalClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnexpectedSigningMethod
		}
		return e.secret, nil
	})
	if err != nil {
		return Principal{}, err
	}

	return Principal{
		TenantID:    claims.TenantID,
		UserID:      claims.UserID,
		PrincipalID: claims.Subject,
	}, nil
}

type contextKey string

const principalKey contextKey = "gateway_principal"

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the Principal attached by the auth
// middleware, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
