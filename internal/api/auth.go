package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"smflab/shared/access"
)

// RoleHeader carries the role in development mode.
const RoleHeader = "X-Role"

// RoleClaims is the bearer token payload.
type RoleClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// IssueToken signs an HS256 token carrying role for subject.
func IssueToken(secret string, role access.Role, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("missing jwt secret")
	}
	claims := RoleClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyToken validates an HS256 token and returns its role.
func VerifyToken(tokenString, secret string, now time.Time) (access.Role, error) {
	if tokenString == "" {
		return "", fmt.Errorf("missing token")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	claims := &RoleClaims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !tok.Valid {
		return "", fmt.Errorf("invalid token")
	}
	return access.ParseRole(claims.Role)
}

// RoleAuth resolves the caller's role.
//
// With a secret, the role comes from a verified bearer token and an invalid
// token is rejected. Without a secret, the X-Role header is trusted when
// devHeader is set. Requests carrying neither act as Viewer.
func RoleAuth(secret string, devHeader bool, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := access.RoleViewer

			if secret != "" {
				auth := strings.TrimSpace(r.Header.Get("Authorization"))
				if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
					parsed, err := VerifyToken(strings.TrimSpace(token), secret, now())
					if err != nil {
						writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
						return
					}
					role = parsed
				}
			} else if devHeader {
				if parsed, err := access.ParseRole(r.Header.Get(RoleHeader)); err == nil {
					role = parsed
				}
			}

			next.ServeHTTP(w, r.WithContext(WithRole(r.Context(), role)))
		})
	}
}
