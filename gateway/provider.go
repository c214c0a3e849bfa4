package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Provider is the minimal behaviour required from an upstream login
// provider.
type Provider interface {
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, expectedNonce string) (ProviderUser, error)
}

// ProviderUser is a normalized upstream identity.
type ProviderUser struct {
	Subject string
	Name    string
	Email   string
}

// OIDCProvider authenticates against an upstream OIDC issuer.
type OIDCProvider struct {
	name        string
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	logger      *slog.Logger
}

// NewOIDCProvider initializes the provider via discovery.
func NewOIDCProvider(ctx context.Context, name string, upstream OIDCProviderConfig, redirect string, logger *slog.Logger) (*OIDCProvider, error) {
	if upstream.Issuer == "" {
		return nil, fmt.Errorf("issuer required for provider %s", name)
	}

	op, err := oidc.NewProvider(ctx, upstream.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover provider %s: %w", name, err)
	}

	endpoint := op.Endpoint()
	if upstream.ClientSecret == "" {
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}

	oauthCfg := &oauth2.Config{
		ClientID:     upstream.ClientID,
		ClientSecret: upstream.ClientSecret,
		RedirectURL:  redirect,
		Endpoint:     endpoint,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	return &OIDCProvider{
		name:        name,
		oauthConfig: oauthCfg,
		verifier:    op.Verifier(&oidc.Config{ClientID: upstream.ClientID}),
		logger:      logger,
	}, nil
}

// AuthCodeURL constructs the authorization request for upstream.
func (p *OIDCProvider) AuthCodeURL(state, nonce string) string {
	opts := []oauth2.AuthCodeOption{}
	if nonce != "" {
		opts = append(opts, oauth2.SetAuthURLParam("nonce", nonce))
	}
	return p.oauthConfig.AuthCodeURL(state, opts...)
}

// Exchange completes the code exchange and returns a normalized user.
func (p *OIDCProvider) Exchange(ctx context.Context, code, expectedNonce string) (ProviderUser, error) {
	tok, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return ProviderUser{}, fmt.Errorf("exchange code: %w", err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return ProviderUser{}, fmt.Errorf("id_token missing in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return ProviderUser{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return ProviderUser{}, fmt.Errorf("parse claims: %w", err)
	}

	if expectedNonce != "" {
		if nonce, ok := claims["nonce"].(string); !ok || nonce != expectedNonce {
			return ProviderUser{}, fmt.Errorf("nonce mismatch")
		}
	}

	user := ProviderUser{Subject: idToken.Subject}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		user.Name = name
	} else if preferred, ok := claims["preferred_username"].(string); ok {
		user.Name = preferred
	}

	return user, nil
}

const githubUserEndpoint = "https://api.github.com/user"

// GitHubProvider authenticates via the GitHub OAuth app flow. GitHub is
// plain OAuth2, not OIDC, so the user identity comes from the user API
// instead of an id_token.
type GitHubProvider struct {
	oauthConfig *oauth2.Config
	userURL     string
	logger      *slog.Logger
}

// NewGitHubProvider builds the provider from OAuth app credentials.
func NewGitHubProvider(upstream GitHubProviderConfig, redirect string, logger *slog.Logger) (*GitHubProvider, error) {
	if upstream.ClientID == "" {
		return nil, fmt.Errorf("client_id required for provider github")
	}
	return &GitHubProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     upstream.ClientID,
			ClientSecret: upstream.ClientSecret,
			RedirectURL:  redirect,
			Endpoint:     endpoints.GitHub,
			Scopes:       []string{"read:user", "user:email"},
		},
		userURL: githubUserEndpoint,
		logger:  logger,
	}, nil
}

// AuthCodeURL constructs the authorization request. GitHub has no nonce
// support; state alone binds the callback.
func (p *GitHubProvider) AuthCodeURL(state, nonce string) string {
	return p.oauthConfig.AuthCodeURL(state)
}

// Exchange trades the code for a token and resolves the user profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code, expectedNonce string) (ProviderUser, error) {
	tok, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return ProviderUser{}, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return ProviderUser{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.oauthConfig.Client(ctx, tok).Do(req)
	if err != nil {
		return ProviderUser{}, fmt.Errorf("fetch user profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return ProviderUser{}, fmt.Errorf("user profile request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var profile struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return ProviderUser{}, fmt.Errorf("decode user profile: %w", err)
	}
	if profile.ID == 0 {
		return ProviderUser{}, fmt.Errorf("user profile missing id")
	}

	user := ProviderUser{
		Subject: strconv.FormatInt(profile.ID, 10),
		Name:    profile.Name,
		Email:   profile.Email,
	}
	if user.Name == "" {
		user.Name = profile.Login
	}
	return user, nil
}

// BuildProviders prepares all configured providers. In dev mode a provider
// that fails to initialize is logged and skipped so the gateway can still
// serve the rest.
func BuildProviders(ctx context.Context, cfg Config, logger *slog.Logger) (map[string]Provider, error) {
	providers := make(map[string]Provider)
	base := strings.TrimSuffix(cfg.Server.PublicURL, "/")

	if cfg.Providers.GitHub.ClientID != "" {
		gh, err := NewGitHubProvider(cfg.Providers.GitHub, base+"/.auth/callback/github", logger)
		if err != nil {
			return nil, err
		}
		providers["github"] = gh
	}

	for name, upstream := range cfg.Providers.OIDC {
		prov, err := NewOIDCProvider(ctx, name, upstream, base+"/.auth/callback/"+name, logger)
		if err != nil {
			if cfg.Server.DevMode {
				logger.Warn("provider init failed", "provider", name, "error", err)
				continue
			}
			return nil, err
		}
		providers[name] = prov
	}

	return providers, nil
}
