package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// TestUserID is the fixed identifier of the synthesized development identity.
const TestUserID = "test-user-123"

const testUserEmail = "test-user@example.com"

// ResolverConfig configures an identity resolver.
type ResolverConfig struct {
	// AuthMeURL is the authentication status endpoint, e.g.
	// "http://127.0.0.1:4280/.auth/me".
	AuthMeURL string
	// Store holds the locally synthesized identity. Defaults to a FileStore
	// under the user config directory.
	Store IdentityStore
	// HTTPClient used for status lookups. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Resolver is the single source of truth for the current identity. It is an
// explicit object handed to the API client rather than process-global state,
// so resolution stays testable.
type Resolver struct {
	store  IdentityStore
	meURL  string
	client *http.Client
	logger *slog.Logger

	mu     sync.Mutex
	cached *Identity
	local  bool
	gen    uint64
}

// NewResolver constructs a resolver. The returned resolver has no cached
// identity until Resolve or SynthesizeTestIdentity is called.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	store := cfg.Store
	if store == nil {
		path, err := DefaultStorePath()
		if err != nil {
			return nil, err
		}
		store = NewFileStore(path)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		store:  store,
		meURL:  cfg.AuthMeURL,
		client: client,
		logger: logger,
	}, nil
}

// Resolve determines the current identity: the local store wins, then the
// authentication status endpoint. Every failure mode is a normal "not logged
// in" outcome, so Resolve returns nil rather than an error. The result is
// cached; callers re-resolve on explicit triggers, not per request.
func (r *Resolver) Resolve(ctx context.Context) *Identity {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	id, local := r.resolve(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		// A newer resolution started while this one was in flight; its
		// outcome must not be overwritten by ours.
		return id
	}
	r.cached = id
	r.local = local
	return id
}

func (r *Resolver) resolve(ctx context.Context) (*Identity, bool) {
	id, err := r.store.Load()
	if err != nil {
		// Corrupt local record: discard silently and fall through to the
		// real provider lookup.
		r.logger.Debug("ignoring unreadable local identity", "error", err)
	} else if id != nil {
		return id, true
	}

	if r.meURL == "" {
		return nil, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.meURL, nil)
	if err != nil {
		r.logger.Debug("auth status request build failed", "error", err)
		return nil, false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("auth status endpoint unreachable", "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.logger.Debug("auth status body read failed", "error", err)
		return nil, false
	}
	return decodeAuthStatus(body), false
}

// Cached returns the identity from the last resolution without touching the
// network or the store.
func (r *Resolver) Cached() *Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cached
}

// LocalIdentity returns the cached identity only when it was synthesized
// locally. The request bridge attaches a header for exactly these; a
// production-resolved identity is the proxy's job to transport.
func (r *Resolver) LocalIdentity() *Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.local {
		return nil
	}
	return r.cached
}

// SynthesizeTestIdentity writes a deterministic development identity to the
// local store and makes it the cached identity. Shape-wise it is
// indistinguishable from a production-resolved one.
func (r *Resolver) SynthesizeTestIdentity(name string) (*Identity, error) {
	id := Identity{
		UserID:      TestUserID,
		DisplayName: name,
		Provider:    "github",
		Claims: []Claim{
			{Type: "name", Value: name},
			{Type: "email", Value: testUserEmail},
		},
	}
	if err := r.store.Save(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.cached = &id
	r.local = true
	return &id, nil
}

// ClearIdentity removes the synthesized identity (the logout path for
// development). A production identity is cleared by the provider's logout
// endpoint, not here.
func (r *Resolver) ClearIdentity() error {
	if err := r.store.Clear(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if r.local {
		r.cached = nil
		r.local = false
	}
	return nil
}

// decodeAuthStatus normalizes the status endpoint response. Backends differ
// in how they wrap the principal, so each known shape is attempted in fixed
// priority order; the first decoder that recognizes the document wins.
func decodeAuthStatus(body []byte) *Identity {
	for _, decode := range []func([]byte) (*Identity, bool){
		decodePrincipalEnvelope,
		decodePrincipalList,
		decodeBarePrincipal,
	} {
		if id, ok := decode(body); ok {
			return id
		}
	}
	return nil
}

// decodePrincipalEnvelope handles {"clientPrincipal": <principal|null>}.
func decodePrincipalEnvelope(body []byte) (*Identity, bool) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false
	}
	raw, ok := envelope["clientPrincipal"]
	if !ok {
		return nil, false
	}
	var p headerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		// Envelope key present but principal malformed: shape matched,
		// principal unusable.
		return nil, true
	}
	return identityFromPayload(p), true
}

// decodePrincipalList handles a non-empty array whose first element is the
// principal.
func decodePrincipalList(body []byte) (*Identity, bool) {
	var list []headerPayload
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, false
	}
	if len(list) == 0 {
		return nil, false
	}
	return identityFromPayload(list[0]), true
}

// decodeBarePrincipal handles a principal object identified by a non-empty
// userId.
func decodeBarePrincipal(body []byte) (*Identity, bool) {
	var p headerPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, false
	}
	if p.UserID == "" {
		return nil, false
	}
	return identityFromPayload(p), true
}

func identityFromPayload(p headerPayload) *Identity {
	if p.UserID == "" {
		return nil
	}
	return &Identity{
		UserID:      p.UserID,
		DisplayName: p.UserDetails,
		Provider:    p.IdentityProvider,
		Claims:      p.Claims,
	}
}
