// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for user ID.
	UserIDKey ContextKey = "user_id"
)

var (
	ErrMissingIdentity = errors.New("missing user identity")
	ErrInvalidToken    = errors.New("invalid token")
)

// Claims represents JWT claims. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// AuthConfig controls how a request's user identity is established.
type AuthConfig struct {
	JWTSecret string

	// IdentityHeader carries an already authenticated user id, set by a
	// trusted proxy. Ignored unless TrustIdentityHeader is set.
	IdentityHeader      string
	TrustIdentityHeader bool
}

// Identity resolves the caller's user id and rejects the request with 401
// when there is none. Identity is taken, in order, from a bearer token, an
// access_token query parameter (EventSource cannot send headers) or the
// trusted identity header.
func Identity(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := ResolveUserID(r, cfg)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			setLoggedUser(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// ResolveUserID returns the user id carried by r.
func ResolveUserID(r *http.Request, cfg AuthConfig) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", ErrInvalidToken
		}
		return parseToken(parts[1], cfg.JWTSecret)
	}

	if token := r.URL.Query().Get("access_token"); token != "" {
		return parseToken(token, cfg.JWTSecret)
	}

	if cfg.TrustIdentityHeader && cfg.IdentityHeader != "" {
		if userID := strings.TrimSpace(r.Header.Get(cfg.IdentityHeader)); userID != "" {
			if err := ValidateUserID(userID); err != nil {
				return "", err
			}
			return userID, nil
		}
	}

	return "", ErrMissingIdentity
}

func parseToken(tokenString, secret string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if err := ValidateUserID(claims.Subject); err != nil {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// IssueToken signs an HS256 token whose subject is userID.
func IssueToken(secret, userID, name string, ttl time.Duration) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
