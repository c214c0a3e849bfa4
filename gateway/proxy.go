package gateway

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"
)

// Proxy forwards requests to an upstream, replacing any inbound principal
// header with the one derived from the caller's session. Clients can never
// smuggle an identity past the gateway.
type Proxy struct {
	target   *url.URL
	proxy    *httputil.ReverseProxy
	sessions *SessionManager
	logger   *slog.Logger
}

// NewProxy builds a reverse proxy for the target URL.
func NewProxy(target string, sessions *SessionManager, logger *slog.Logger) (*Proxy, error) {
	targetURL, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", target, err)
	}

	rp := httputil.NewSingleHostReverseProxy(targetURL)
	rp.Transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	originalDirector := rp.Director
	rp.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = targetURL.Host

		if clientIP, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
			prior := req.Header.Get("X-Forwarded-For")
			if prior != "" {
				clientIP = prior + ", " + clientIP
			}
			req.Header.Set("X-Forwarded-For", clientIP)
		}
		req.Header.Set("X-Forwarded-Proto", schemeFromRequest(req))
		req.Header.Set("X-Forwarded-Host", req.Host)
	}

	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("proxy error", "target", target, "path", r.URL.Path, "error", err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	return &Proxy{
		target:   targetURL,
		proxy:    rp,
		sessions: sessions,
		logger:   logger,
	}, nil
}

// ServeHTTP strips the inbound principal header, injects the session
// principal when one exists, and forwards the request.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Header.Del(PrincipalHeader)

	if principal, err := p.sessions.Fetch(r); err == nil && principal != nil {
		encoded, err := principal.EncodeHeader()
		if err != nil {
			p.logger.Error("encode principal failed", "user_id", principal.UserID, "error", err)
		} else {
			r.Header.Set(PrincipalHeader, encoded)
		}
	}

	p.proxy.ServeHTTP(w, r)
}

func schemeFromRequest(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return "http"
}
