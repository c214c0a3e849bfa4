// Package server implements the sale-tracker backend API: per-user sales
// CRUD, dashboard aggregates, and the principal middleware that trusts the
// identity header injected by the gateway in front of it.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// App wires the backend together.
type App struct {
	Config Config
	Logger *slog.Logger
	Store  SaleStore

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewApp builds the application and its store backend.
func NewApp(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
	var store SaleStore
	switch cfg.Store.Backend {
	case "memory":
		store = NewMemoryStore()
	case "redis":
		rs, err := NewRedisStore(cfg.Store.Redis)
		if err != nil {
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		store = rs
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	logger.Info("store initialized", "backend", cfg.Store.Backend)

	return &App{
		Config: cfg,
		Logger: logger,
		Store:  store,
		now:    time.Now,
	}, nil
}
