package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/oblivion-comments/internal/comments/model"
)

type ctxKeyUserID struct{}
type ctxKeyRole struct{}
type ctxKeyName struct{}

func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyUserID{}).(string)
	return v, ok
}

// WithUserID injects user_id into context. Useful for testing.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, uid)
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyRole{}).(string)
	return v, ok
}

// WithRole injects role into context. Useful for testing.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole{}, role)
}

func NameFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyName{}).(string)
	return v, ok
}

// ViewerFromContext builds the comment viewer for an authenticated request.
// Requests that did not pass RequireUser yield the anonymous viewer.
func ViewerFromContext(ctx context.Context) model.Viewer {
	uid, _ := UserIDFromContext(ctx)
	name, _ := NameFromContext(ctx)
	role, _ := RoleFromContext(ctx)
	return model.ViewerFor(uid, name, role)
}

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

// Viewer maps verified claims to the comment viewer they stand for.
func (c *Claims) Viewer() model.Viewer {
	if c == nil {
		return model.Viewer{}
	}
	return model.ViewerFor(c.Subject, c.Name, c.Role)
}

type JWTVerifier struct {
	Secret []byte
}

func (v JWTVerifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// PeekClaims decodes a token's claims without checking its signature. Clients
// use it to learn who a token they were handed stands for; servers must use
// JWTVerifier.Parse.
func PeekClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// RequireUser middleware validates Bearer token and injects user_id, role and
// display name into context.
func RequireUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if authz == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			ctx, ok := authenticate(r.Context(), verifier, authz)
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalUser behaves like RequireUser when an Authorization header is
// present and lets anonymous requests through untouched.
func OptionalUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if authz == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx, ok := authenticate(r.Context(), verifier, authz)
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, verifier JWTVerifier, authz string) (context.Context, bool) {
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ctx, false
	}
	claims, err := verifier.Parse(strings.TrimSpace(parts[1]))
	if err != nil || strings.TrimSpace(claims.Subject) == "" {
		return ctx, false
	}
	ctx = context.WithValue(ctx, ctxKeyUserID{}, claims.Subject)
	if strings.TrimSpace(claims.Role) != "" {
		ctx = context.WithValue(ctx, ctxKeyRole{}, claims.Role)
	}
	if strings.TrimSpace(claims.Name) != "" {
		ctx = context.WithValue(ctx, ctxKeyName{}, claims.Name)
	}
	return ctx, true
}

// RequireOperator allows the request only if RequireUser already injected a
// moderating role (admin, editor or moderator) into context.
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := RoleFromContext(r.Context())
		if !model.OperatorRoles[strings.ToLower(strings.TrimSpace(role))] {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
