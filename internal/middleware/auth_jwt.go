package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the identity claims carried by API bearer tokens.
type TokenClaims struct {
	OrgID string `json:"org_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthOptions configures token verification. Issuer and Audience are only
// checked when set.
type AuthOptions struct {
	Secret   string
	Issuer   string
	Audience string
}

type userKey string

const (
	userIDKey userKey = "user_id"
	orgIDKey  userKey = "org_id"
)

// SignJWT issues an HS256 token for claims. Used by tests and local tooling.
func SignJWT(secret string, claims TokenClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyJWT parses token and validates signature, expiry and the optional
// issuer and audience.
func VerifyJWT(opts AuthOptions, token string) (*TokenClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(opts.Secret), nil
	}, parserOpts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// AuthJWT rejects requests without a valid bearer token and stores the
// subject and organization in the request context.
func AuthJWT(opts AuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, "missing or malformed authorization header")
				return
			}
			claims, err := VerifyJWT(opts, token)
			if err != nil {
				writeAuthError(w, "invalid token")
				return
			}
			ctx := ContextWithUserID(r.Context(), claims.Subject)
			ctx = ContextWithOrgID(ctx, claims.OrgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InternalToken guards operator routes with a shared bearer token. An empty
// token disables the routes entirely.
func InternalToken(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if expected == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				writeAuthError(w, "invalid internal token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"` + msg + `"}}`))
}

func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if strings.TrimSpace(userID) == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// OrgIDFromContext returns the caller's organization, or "" for tokens
// without one.
func OrgIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(orgIDKey).(string); ok {
		return v
	}
	return ""
}

func ContextWithOrgID(ctx context.Context, orgID string) context.Context {
	if strings.TrimSpace(orgID) == "" {
		return ctx
	}
	return context.WithValue(ctx, orgIDKey, orgID)
}
