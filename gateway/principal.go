package gateway

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// PrincipalHeader carries the authenticated identity to the backend.
const PrincipalHeader = "X-MS-Client-Principal"

// Claim is a single typ/val pair attached to a principal.
type Claim struct {
	Type  string `json:"typ"`
	Value string `json:"val"`
}

// Principal is the identity the gateway vouches for. It is serialized both
// into the /.auth/me envelope and into the header injected on proxied API
// requests.
type Principal struct {
	UserID           string  `json:"userId"`
	UserDetails      string  `json:"userDetails"`
	IdentityProvider string  `json:"identityProvider"`
	Claims           []Claim `json:"claims"`
}

// EncodeHeader renders the principal as the base64 JSON header value.
func (p Principal) EncodeHeader() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// buildUserID produces the stable per-provider user identifier.
func buildUserID(provider, subject string) string {
	return provider + ":" + strings.TrimSpace(subject)
}

// principalForUser normalizes a provider user into a Principal.
func principalForUser(provider string, user ProviderUser) Principal {
	details := user.Name
	if details == "" {
		details = user.Email
	}
	if details == "" {
		details = user.Subject
	}

	claims := []Claim{}
	if user.Name != "" {
		claims = append(claims, Claim{Type: "name", Value: user.Name})
	}
	if user.Email != "" {
		claims = append(claims, Claim{Type: "email", Value: user.Email})
	}

	return Principal{
		UserID:           buildUserID(provider, user.Subject),
		UserDetails:      details,
		IdentityProvider: provider,
		Claims:           claims,
	}
}
