package gateway

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const loginStateTTL = 10 * time.Minute

// loginState tracks one in-flight login between redirect and callback.
type loginState struct {
	Provider  string
	Nonce     string
	ReturnTo  string
	CreatedAt time.Time
}

// stateStore holds pending login states. Entries are single use and expire
// after loginStateTTL.
type stateStore struct {
	mu     sync.Mutex
	states map[string]loginState
	now    func() time.Time
}

func newStateStore() *stateStore {
	return &stateStore{states: make(map[string]loginState), now: time.Now}
}

func (s *stateStore) Put(state string, ls loginState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls.CreatedAt = s.now()
	s.states[state] = ls

	for key, st := range s.states {
		if s.now().Sub(st.CreatedAt) > loginStateTTL {
			delete(s.states, key)
		}
	}
}

// Consume removes and returns the state entry, if still live.
func (s *stateStore) Consume(state string) (loginState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.states[state]
	if !ok {
		return loginState{}, false
	}
	delete(s.states, state)
	if s.now().Sub(ls.CreatedAt) > loginStateTTL {
		return loginState{}, false
	}
	return ls, true
}

func randomToken() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// handleAuthMe reports the current session. The principal always arrives
// wrapped in the clientPrincipal envelope, null when no session exists.
func (a *App) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	principal, err := a.Sessions.Fetch(r)
	if err != nil {
		a.Logger.Error("session fetch failed", "error", err)
		principal = nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(map[string]*Principal{
		"clientPrincipal": principal,
	})
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	if name == "" {
		name = a.Config.Providers.Default
	}
	provider, ok := a.Providers[name]
	if !ok {
		http.Error(w, "unknown identity provider", http.StatusNotFound)
		return
	}

	state := randomToken()
	nonce := randomToken()
	a.States.Put(state, loginState{
		Provider: name,
		Nonce:    nonce,
		ReturnTo: sanitizeReturnTo(r.URL.Query().Get("post_login_redirect_uri")),
	})

	http.Redirect(w, r, provider.AuthCodeURL(state, nonce), http.StatusFound)
}

func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, ok := a.Providers[name]
	if !ok {
		http.Error(w, "unknown identity provider", http.StatusNotFound)
		return
	}

	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		a.Logger.Warn("upstream login failed", "provider", name, "error", errParam,
			"description", query.Get("error_description"))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	state, ok := a.States.Consume(query.Get("state"))
	if !ok || state.Provider != name {
		http.Error(w, "login state expired or invalid", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "authorization code missing", http.StatusBadRequest)
		return
	}

	user, err := provider.Exchange(r.Context(), code, state.Nonce)
	if err != nil {
		a.Logger.Error("code exchange failed", "provider", name, "error", err)
		http.Error(w, "login failed", http.StatusBadGateway)
		return
	}

	principal := principalForUser(name, user)
	if err := a.Sessions.Create(w, principal); err != nil {
		a.Logger.Error("session create failed", "provider", name, "error", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	a.Logger.Info("login succeeded", "provider", name, "user_id", principal.UserID)
	http.Redirect(w, r, state.ReturnTo, http.StatusFound)
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.Sessions.Clear(w)
	http.Redirect(w, r, sanitizeReturnTo(r.URL.Query().Get("post_logout_redirect_uri")), http.StatusFound)
}

// sanitizeReturnTo keeps redirects on-site. Anything absolute or
// scheme-relative falls back to the root.
func sanitizeReturnTo(raw string) string {
	if raw == "" {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return u.String()
}
