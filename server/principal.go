package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
)

// PrincipalHeader carries the identity of the caller: standard base64 over a
// JSON principal. In production the identity proxy injects it; in local
// development the client's request bridge synthesizes an equivalent value.
const PrincipalHeader = "X-MS-Client-Principal"

// Claim is one typed claim of the principal.
type Claim struct {
	Type  string `json:"typ"`
	Value string `json:"val"`
}

// Principal is the authenticated caller as decoded from the header.
type Principal struct {
	UserID           string  `json:"userId"`
	UserDetails      string  `json:"userDetails"`
	IdentityProvider string  `json:"identityProvider"`
	Claims           []Claim `json:"claims"`
}

type principalKey struct{}

// PrincipalFromContext returns the principal attached by the middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// UserIDFromContext returns the caller's user ID, empty when unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.UserID
	}
	return ""
}

// decodePrincipal parses a header value into a Principal. A payload without
// a userId is rejected: an authenticated principal always has one.
func decodePrincipal(encoded string) (*Principal, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	var p Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, errHeaderNoUserID
	}
	if p.UserDetails == "" {
		p.UserDetails = "Unknown User"
	}
	if p.IdentityProvider == "" {
		p.IdentityProvider = "unknown"
	}
	if p.Claims == nil {
		p.Claims = []Claim{}
	}
	return &p, nil
}

var errHeaderNoUserID = &principalError{"user ID not found in client principal"}

type principalError struct{ msg string }

func (e *principalError) Error() string { return e.msg }

// PrincipalMiddleware rejects requests without a decodable principal header.
// "No identity" and "bad identity" are both 401: the gateway is the only
// party trusted to mint this header.
func PrincipalMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoded := r.Header.Get(PrincipalHeader)
			if encoded == "" {
				writeError(w, http.StatusUnauthorized, "Authentication required. No client principal found.")
				return
			}

			principal, err := decodePrincipal(encoded)
			if err != nil {
				logger.Debug("rejecting request with invalid principal header", "error", err)
				writeError(w, http.StatusUnauthorized, "Invalid authentication data.")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
