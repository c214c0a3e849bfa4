package client

import (
	"io"
	"log/slog"
	"net/http"
)

// Transport is the request bridge: an http.RoundTripper that attaches the
// principal header for locally synthesized identities. Where the real proxy
// injects identity, Transport adds nothing so the two headers can never
// conflict.
type Transport struct {
	// Resolver supplies the cached identity. Only the cache is consulted;
	// the bridge never triggers a fresh resolution.
	Resolver *Resolver
	// Base is the underlying transport, http.DefaultTransport when nil.
	Base http.RoundTripper
	// Logger for degraded-mode reporting. Discards when nil.
	Logger *slog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	id := t.Resolver.LocalIdentity()
	if id == nil {
		return base.RoundTrip(req)
	}

	encoded, err := EncodePrincipal(*id)
	if err != nil {
		// Degraded but functional: an unauthenticated request yields a
		// well-defined 401 downstream, aborting here would not.
		t.logger().Warn("principal serialization failed, sending without identity header", "error", err)
		return base.RoundTrip(req)
	}

	// Per RoundTripper contract the original request is not mutated. Caller
	// headers are preserved; only the principal header is ours to set.
	clone := req.Clone(req.Context())
	clone.Header.Set(PrincipalHeader, encoded)
	return base.RoundTrip(clone)
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
