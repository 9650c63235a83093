package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carries the caller's identity and workspace role grants, issued by
// the account service.
type Claims struct {
	Sub        string            `json:"sub"`
	Workspaces map[string]string `json:"workspaces"` // workspace id -> role
	jwt.RegisteredClaims
}

// JWTAuthorizer implements Authorizer over HMAC-signed bearer tokens.
type JWTAuthorizer struct {
	secret []byte
}

func NewJWTAuthorizer(secret string) *JWTAuthorizer {
	return &JWTAuthorizer{secret: []byte(secret)}
}

func (a *JWTAuthorizer) Resolve(r *http.Request) (*Principal, error) {
	tokenStr := extractBearerToken(r)
	if tokenStr == "" {
		return nil, fmt.Errorf("missing authorization token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, fmt.Errorf("token expired")
	}

	userID, err := uuid.Parse(claims.Sub)
	if err != nil {
		return nil, fmt.Errorf("invalid user id in token")
	}

	workspaces := make(map[uuid.UUID]Role, len(claims.Workspaces))
	for wsStr, roleStr := range claims.Workspaces {
		wsID, err := uuid.Parse(wsStr)
		if err != nil {
			continue
		}
		switch Role(roleStr) {
		case RoleViewer, RoleEditor, RoleOwner:
			workspaces[wsID] = Role(roleStr)
		}
	}

	return &Principal{UserID: userID, Workspaces: workspaces}, nil
}

// Middleware resolves the principal and stores it on the request context.
func Middleware(a Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.Resolve(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
