package auth

import (
	"errors"
	"net/http"
	"strings"
)

// Middleware authenticates bearer tokens and enforces the route
// policy's role requirements.
type Middleware struct {
	secret []byte
	policy Policy
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{secret: secret, policy: policy}
}

// Wrap guards next with the route policy. Exempt routes and routes the
// policy does not cover pass through untouched; everything else needs
// a token whose role satisfies the policy.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, guarded := m.policy.RequiredRole(r)
		if !guarded {
			next.ServeHTTP(w, r)
			return
		}
		role, subject, err := m.authorize(r, required)
		if err != nil {
			if errors.Is(err, ErrForbidden) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), role, subject)))
	})
}

// authorize validates the request's token and checks the role it
// carries against the required one.
func (m *Middleware) authorize(r *http.Request, required Role) (Role, string, error) {
	token, err := bearerToken(r)
	if err != nil {
		return "", "", err
	}
	claims, err := ParseJWT(token, m.secret)
	if err != nil {
		return "", "", err
	}
	role, _ := NormalizeRole(claims.Role)
	if !RoleAtLeast(role, required) {
		return "", "", ErrForbidden
	}
	return role, claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || token == "" || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidToken
	}
	return token, nil
}
