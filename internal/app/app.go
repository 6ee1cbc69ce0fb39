package app

import (
	"fmt"

	"github.com/florianilch/fincli/internal/apiclient"
	"github.com/florianilch/fincli/internal/authclient"
	"github.com/florianilch/fincli/internal/credstore"
	"github.com/florianilch/fincli/internal/session"
)

// App wires the credential store, session manager, and service clients
// for one CLI invocation. No I/O happens at construction; the credential
// file is opened per operation inside its lock-scoped critical section.
type App struct {
	cfg *Config

	Sessions *session.Manager
	Auth     *authclient.Client
	API      *apiclient.Client
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	backend, err := cfg.Store.NewBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to create credential backend: %w", err)
	}

	store, err := credstore.New(backend, cfg.Store.LockFile,
		credstore.WithLockTimeout(cfg.Store.LockTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	auth, err := authclient.New(cfg.Auth.BaseURL, authclient.WithTimeout(cfg.Auth.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth client: %w", err)
	}

	sessions, err := session.NewManager(store, auth,
		session.WithSkewMargin(cfg.Session.SkewMargin))
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	api, err := apiclient.New(cfg.API.BaseURL, sessions, apiclient.WithTimeout(cfg.API.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	return &App{
		cfg:      cfg,
		Sessions: sessions,
		Auth:     auth,
		API:      api,
	}, nil
}
