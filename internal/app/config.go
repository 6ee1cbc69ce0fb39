package app

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/fincli/internal/credstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// StorageType represents the storage backends supported for credentials.
type StorageType string

const (
	StorageTypeFile    StorageType = "file"
	StorageTypeKeyring StorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogLevel    = "info"
	DefaultConfigLogFormat   = LogFormatText
	DefaultConfigAuthBaseURL = "http://127.0.0.1:8001"
	DefaultConfigAPIBaseURL  = "http://127.0.0.1:8000"
	DefaultConfigHTTPTimeout = 30 * time.Second
	DefaultConfigStorage     = StorageTypeFile
	DefaultConfigLockTimeout = credstore.DefaultLockTimeout
	DefaultConfigSkewMargin  = 30 * time.Second
)

// keyringService identifies this program's entries in the OS keyring.
const keyringService = "fincli-credentials"

// ServiceConfig holds the endpoint of one remote service.
type ServiceConfig struct {
	BaseURL string        `json:"base_url" validate:"required,url"`
	Timeout time.Duration `json:"timeout"`
}

// StoreConfig describes how to construct the credential store backend.
type StoreConfig struct {
	// Storage configuration - where the credential document lives
	Storage StorageType `json:"storage" validate:"required,oneof=file keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to credential file
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier

	// LockFile is the sidecar path for the cross-process store lock.
	// Used by both backends; the keyring has no locking of its own.
	LockFile string `json:"lock_file,omitempty"`

	// LockTimeout bounds waiting on the store lock before failing with a
	// transient busy error.
	LockTimeout time.Duration `json:"lock_timeout"`
}

// SessionConfig holds session lifecycle tuning.
type SessionConfig struct {
	// SkewMargin is subtracted from token expiry before staleness checks
	// to absorb clock skew between client and services.
	SkewMargin time.Duration `json:"skew_margin"`
}

// Config holds the application's configuration.
type Config struct {
	LogLevel  string        `json:"log_level" validate:"oneof=debug info warn error"`
	LogFormat LogFormat     `json:"log_format" validate:"oneof=text json"`
	Auth      ServiceConfig `json:"auth"`
	API       ServiceConfig `json:"api"`
	Store     StoreConfig   `json:"store"`
	Session   SessionConfig `json:"session"`
}

// NewBackend creates a credential store backend from the configuration.
func (s *StoreConfig) NewBackend() (credstore.Backend, error) {
	switch s.Storage {
	case StorageTypeFile:
		return credstore.NewFileBackend(s.File)
	case StorageTypeKeyring:
		return credstore.NewKeyringBackend(keyringService, s.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", s.Storage)
	}
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogLevel == "" {
		c.LogLevel = DefaultConfigLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Auth.BaseURL == "" {
		c.Auth.BaseURL = DefaultConfigAuthBaseURL
	}
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = DefaultConfigHTTPTimeout
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultConfigAPIBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultConfigHTTPTimeout
	}
	if c.Store.Storage == "" {
		c.Store.Storage = DefaultConfigStorage
	}
	if c.Store.LockTimeout == 0 {
		c.Store.LockTimeout = DefaultConfigLockTimeout
	}
	if c.Session.SkewMargin == 0 {
		c.Session.SkewMargin = DefaultConfigSkewMargin
	}

	// Dynamic defaults based on storage type
	switch c.Store.Storage {
	case StorageTypeFile:
		if c.Store.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("store.file required (auto-detect failed: %w)", err)
			}
			c.Store.File = filepath.Join(configDir, "fincli", "credentials.json")
		}
		if c.Store.LockFile == "" {
			c.Store.LockFile = c.Store.File + ".lock"
		}
	case StorageTypeKeyring:
		if c.Store.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("store.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Store.KeyringUser = currentUser.Username
		}
		if c.Store.LockFile == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("store.lock_file required (auto-detect failed: %w)", err)
			}
			c.Store.LockFile = filepath.Join(configDir, "fincli", "credentials.lock")
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Store.Storage {
	case StorageTypeFile:
		if c.Store.File == "" {
			return errors.New("file path required for file storage")
		}
	case StorageTypeKeyring:
		if c.Store.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	if c.Store.LockFile == "" {
		return errors.New("lock_file required")
	}

	return nil
}
