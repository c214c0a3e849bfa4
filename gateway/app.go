// Package gateway implements the identity gateway that fronts the sale
// tracker: it handles provider logins under /.auth, keeps the session in a
// signed cookie, and reverse-proxies /api traffic to the backend with the
// authenticated principal injected as a header.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
)

// App wires the gateway together.
type App struct {
	Config    Config
	Logger    *slog.Logger
	Providers map[string]Provider
	Sessions  *SessionManager
	States    *stateStore

	api      *Proxy
	frontend *Proxy
}

// NewApp builds the gateway, its providers, and its proxies.
func NewApp(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
	providers, err := BuildProviders(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}
	if len(providers) == 0 && !cfg.Server.DevMode {
		return nil, fmt.Errorf("no identity providers configured")
	}

	sessions := NewSessionManager(cfg)

	api, err := NewProxy(cfg.Upstream.API, sessions, logger)
	if err != nil {
		return nil, fmt.Errorf("api proxy: %w", err)
	}

	var frontend *Proxy
	if cfg.Upstream.Frontend != "" {
		frontend, err = NewProxy(cfg.Upstream.Frontend, sessions, logger)
		if err != nil {
			return nil, fmt.Errorf("frontend proxy: %w", err)
		}
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Providers: providers,
		Sessions:  sessions,
		States:    newStateStore(),
		api:       api,
		frontend:  frontend,
	}, nil
}
