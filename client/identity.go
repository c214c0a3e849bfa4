package client

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// PrincipalHeader is the header the backend accepts as a stand-in for the
// identity header the production proxy injects.
const PrincipalHeader = "X-MS-Client-Principal"

// Claim is a single typed claim attached to an identity. The wire names
// follow the client principal format.
type Claim struct {
	Type  string `json:"typ"`
	Value string `json:"val"`
}

// Identity is the canonical representation of the authenticated principal.
// An absent identity is a nil *Identity, never an Identity with an empty
// UserID.
type Identity struct {
	UserID      string
	DisplayName string
	Provider    string
	Claims      []Claim
}

// headerPayload is the transport encoding of an Identity for the principal
// header. It is derived per request and never persisted.
type headerPayload struct {
	UserID           string  `json:"userId"`
	UserDetails      string  `json:"userDetails"`
	IdentityProvider string  `json:"identityProvider"`
	Claims           []Claim `json:"claims"`
}

func payloadFromIdentity(id Identity) headerPayload {
	claims := id.Claims
	if claims == nil {
		claims = []Claim{}
	}
	return headerPayload{
		UserID:           id.UserID,
		UserDetails:      id.DisplayName,
		IdentityProvider: id.Provider,
		Claims:           claims,
	}
}

// EncodePrincipal serializes an identity into the header value: standard
// base64 over the JSON payload.
func EncodePrincipal(id Identity) (string, error) {
	b, err := json.Marshal(payloadFromIdentity(id))
	if err != nil {
		return "", fmt.Errorf("marshal principal: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodePrincipal reverses EncodePrincipal. Used by tests and by anything
// that needs to inspect a header value; returns nil when the payload has no
// userId.
func DecodePrincipal(encoded string) (*Identity, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode principal: %w", err)
	}
	var p headerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("unmarshal principal: %w", err)
	}
	if p.UserID == "" {
		return nil, nil
	}
	return &Identity{
		UserID:      p.UserID,
		DisplayName: p.UserDetails,
		Provider:    p.IdentityProvider,
		Claims:      p.Claims,
	}, nil
}
