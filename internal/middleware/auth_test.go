package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("middleware-test-secret")

func signToken(t *testing.T, claims AdminClaims, secret []byte, method jwt.SigningMethod) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func protectedHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminCtx, ok := AdminFrom(r.Context())
		if !ok {
			t.Fatal("expected admin context downstream of auth")
		}
		w.Write([]byte(adminCtx.AdminID))
	})
}

func TestAdminAuthAcceptsValidToken(t *testing.T) {
	auth := NewAdminAuth(testSecret, nil)
	handler := auth.Handler(protectedHandler(t))

	token := signToken(t, AdminClaims{
		AdminID: "ops-42",
		Role:    "recovery",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret, jwt.SigningMethodHS256)

	req := httptest.NewRequest(http.MethodPost, "/admin/export", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ops-42" {
		t.Fatalf("admin id = %q, want ops-42", rec.Body.String())
	}
}

func TestAdminAuthRejections(t *testing.T) {
	auth := NewAdminAuth(testSecret, nil)
	handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for rejected requests")
	}))

	expired := signToken(t, AdminClaims{
		AdminID: "ops-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}, testSecret, jwt.SigningMethodHS256)
	wrongKey := signToken(t, AdminClaims{
		AdminID: "ops-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, []byte("other-secret"), jwt.SigningMethodHS256)
	noIdentity := signToken(t, AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret, jwt.SigningMethodHS256)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not.a.jwt"},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong key", header: "Bearer " + wrongKey},
		{name: "no admin id", header: "Bearer " + noIdentity},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/admin/export", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", tc.name, rec.Code)
		}
	}
}
