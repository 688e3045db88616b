package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/homevisit-scheduler/internal/identity"
)

type contextKey string

const (
	principalKey     contextKey = "principal"
	principalSlotKey contextKey = "principal_slot"
)

// principalSlot lets middleware that runs before authentication (the
// request logger) see who the caller turned out to be.
type principalSlot struct {
	p  Principal
	ok bool
}

// Claims is the bearer token payload issued by the identity service.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	UserID int64
	Role   identity.Role
}

// JWTAuth validates an HMAC-signed bearer token and stores the caller's
// Principal in the request context.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "auth disabled", http.StatusUnauthorized)
				return
			}
			tokenString, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			p, err := ParseToken(secret, tokenString)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// ParseToken verifies tokenString and extracts the principal.
func ParseToken(secret, tokenString string) (Principal, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !token.Valid {
		return Principal{}, errors.New("middleware: token not valid")
	}
	role, err := identity.ParseRole(claims.Role)
	if err != nil {
		return Principal{}, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Principal{}, fmt.Errorf("middleware: subject %q: %w", claims.Subject, err)
	}
	return Principal{UserID: id, Role: role}, nil
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter that browsers must use for websockets.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer "), true
	}
	if tok := r.URL.Query().Get("access_token"); tok != "" {
		return tok, true
	}
	return "", false
}

// RequireRoles rejects callers whose role is not in roles.
func RequireRoles(roles ...identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}
			if err := identity.Authorize(p.Role, roles...); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if slot, ok := ctx.Value(principalSlotKey).(*principalSlot); ok {
		slot.p, slot.ok = p, true
	}
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated caller if present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
