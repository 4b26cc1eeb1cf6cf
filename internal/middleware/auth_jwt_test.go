package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, secret string, claims TokenClaims) string {
	t.Helper()
	token, err := SignJWT(secret, claims)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	return token
}

func validClaims() TokenClaims {
	return TokenClaims{
		OrgID: "org-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "newscast",
			Audience:  jwt.ClaimStrings{"newscast-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifyJWT(t *testing.T) {
	opts := AuthOptions{Secret: "s3cret", Issuer: "newscast", Audience: "newscast-api"}

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"
	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid", token: signed(t, "s3cret", validClaims())},
		{name: "wrong secret", token: signed(t, "other", validClaims()), wantErr: true},
		{name: "expired", token: signed(t, "s3cret", expired), wantErr: true},
		{name: "wrong issuer", token: signed(t, "s3cret", wrongIssuer), wantErr: true},
		{name: "no subject", token: signed(t, "s3cret", noSubject), wantErr: true},
		{name: "garbage", token: "not.a.token", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := VerifyJWT(opts, tc.token)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("VerifyJWT: %v", err)
			}
			if claims.Subject != "user-1" || claims.OrgID != "org-1" {
				t.Fatalf("claims = %+v", claims)
			}
		})
	}
}

func TestAuthJWTStoresIdentity(t *testing.T) {
	var gotUser, gotOrg string
	h := AuthJWT(AuthOptions{Secret: "s3cret"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotOrg = OrgIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "s3cret", validClaims()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || gotUser != "user-1" || gotOrg != "org-1" {
		t.Fatalf("code = %d user = %q org = %q", rec.Code, gotUser, gotOrg)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header code = %d", rec.Code)
	}
}

func TestInternalToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	tests := []struct {
		name     string
		expected string
		header   string
		want     int
	}{
		{name: "match", expected: "ops", header: "Bearer ops", want: http.StatusNoContent},
		{name: "mismatch", expected: "ops", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "missing", expected: "ops", want: http.StatusUnauthorized},
		{name: "disabled", expected: "", header: "Bearer ", want: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/internal/jobs/reconcile", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			InternalToken(tc.expected)(ok).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("code = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
