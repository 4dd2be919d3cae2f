// Package middleware provides HTTP middleware for the custody API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/OpenCustody/wallet_layer/internal/app/domain/audit"
	"github.com/OpenCustody/wallet_layer/internal/errors"
	"github.com/OpenCustody/wallet_layer/internal/httputil"
	"github.com/OpenCustody/wallet_layer/pkg/logger"
)

type contextKey string

const adminContextKey contextKey = "admin_context"

// AdminClaims are the JWT claims required on administrative tokens.
type AdminClaims struct {
	AdminID string `json:"admin_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth authenticates administrative endpoints with HMAC-signed JWTs.
type AdminAuth struct {
	secret []byte
	log    *logger.Logger
}

// NewAdminAuth creates the admin authentication middleware.
func NewAdminAuth(secret []byte, log *logger.Logger) *AdminAuth {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &AdminAuth{secret: secret, log: log}
}

// Handler rejects requests without a valid Bearer token and stores the
// verified admin identity in the request context.
func (m *AdminAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, r, errors.Unauthorized("missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.respondError(w, r, errors.Unauthorized("invalid Authorization header format"))
			return
		}

		claims, err := m.validateToken(parts[1])
		if err != nil {
			m.log.WithError(err).Warnf("admin token validation failed")
			m.respondError(w, r, errors.Unauthorized("invalid token"))
			return
		}

		adminCtx := audit.AdminContext{AdminID: claims.AdminID, Role: claims.Role}
		ctx := context.WithValue(r.Context(), adminContextKey, adminCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AdminAuth) validateToken(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Unauthorized("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, errors.Unauthorized("invalid claims")
	}
	if strings.TrimSpace(claims.AdminID) == "" {
		return nil, errors.Unauthorized("token carries no admin identity")
	}
	return claims, nil
}

func (m *AdminAuth) respondError(w http.ResponseWriter, r *http.Request, err error) {
	m.log.WithFields(map[string]any{
		"path":   r.URL.Path,
		"method": r.Method,
	}).Warnf("admin authentication failed")
	httputil.WriteError(w, err)
}

// AdminFrom extracts the verified admin identity from the context.
func AdminFrom(ctx context.Context) (audit.AdminContext, bool) {
	adminCtx, ok := ctx.Value(adminContextKey).(audit.AdminContext)
	return adminCtx, ok
}
