package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionCookieName = "salesd_session"

// sessionClaims is the JWT payload carried in the session cookie. The whole
// principal travels in the token so the gateway stays stateless across
// restarts.
type sessionClaims struct {
	UserDetails string  `json:"details"`
	Provider    string  `json:"idp"`
	UserClaims  []Claim `json:"user_claims,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager issues and validates the signed session cookie.
type SessionManager struct {
	secret       []byte
	ttl          time.Duration
	secure       bool
	sameSite     http.SameSite
	cookieDomain string

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewSessionManager constructs a session manager honouring config.
func NewSessionManager(cfg Config) *SessionManager {
	sameSite := http.SameSiteStrictMode
	if cfg.Server.DevMode {
		sameSite = http.SameSiteLaxMode
	}
	return &SessionManager{
		secret:       []byte(cfg.Session.Secret),
		ttl:          cfg.Session.ParsedTTL,
		secure:       !cfg.Server.DevMode,
		sameSite:     sameSite,
		cookieDomain: cfg.Server.CookieDomain,
		now:          time.Now,
	}
}

// Create signs a session token for the principal and sets the cookie.
func (sm *SessionManager) Create(w http.ResponseWriter, principal Principal) error {
	now := sm.now()
	claims := sessionClaims{
		UserDetails: principal.UserDetails,
		Provider:    principal.IdentityProvider,
		UserClaims:  principal.Claims,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.secret)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   sm.cookieDomain,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: sm.sameSite,
		MaxAge:   int(sm.ttl.Seconds()),
	})
	return nil
}

// Fetch returns the principal from the request cookie. A missing, expired,
// or tampered cookie yields (nil, nil); only unexpected failures surface as
// errors.
func (sm *SessionManager) Fetch(r *http.Request) (*Principal, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, nil
	}

	var claims sessionClaims
	token, err := jwt.ParseWithClaims(cookie.Value, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return sm.secret, nil
	}, jwt.WithTimeFunc(sm.now))
	if err != nil || !token.Valid {
		return nil, nil
	}
	if claims.Subject == "" {
		return nil, nil
	}

	userClaims := claims.UserClaims
	if userClaims == nil {
		userClaims = []Claim{}
	}
	return &Principal{
		UserID:           claims.Subject,
		UserDetails:      claims.UserDetails,
		IdentityProvider: claims.Provider,
		Claims:           userClaims,
	}, nil
}

// Clear removes the session cookie for logout.
func (sm *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   sm.cookieDomain,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: sm.sameSite,
		MaxAge:   -1,
	})
}
