package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/fincli/internal/app"
)

func noEnv() []string { return nil }

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", nil, noEnv)
	require.NoError(t, err)

	require.Equal(t, app.DefaultConfigLogLevel, cfg.LogLevel)
	require.Equal(t, app.DefaultConfigLogFormat, cfg.LogFormat)
	require.Equal(t, app.DefaultConfigAuthBaseURL, cfg.Auth.BaseURL)
	require.Equal(t, app.DefaultConfigAPIBaseURL, cfg.API.BaseURL)
	require.Equal(t, app.DefaultConfigHTTPTimeout, cfg.Auth.Timeout)
	require.Equal(t, app.StorageTypeFile, cfg.Store.Storage)
	require.NotEmpty(t, cfg.Store.File)
	require.Equal(t, cfg.Store.File+".lock", cfg.Store.LockFile)
	require.Equal(t, app.DefaultConfigLockTimeout, cfg.Store.LockTimeout)
	require.Equal(t, app.DefaultConfigSkewMargin, cfg.Session.SkewMargin)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
log_level = "debug"
log_format = "json"

[auth]
base_url = "http://auth.internal:8001"
timeout = "10s"

[session]
skew_margin = "90s"

[store]
file = "/tmp/fincli-test/credentials.json"
`)

	cfg, err := loadConfig(path, nil, noEnv)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, app.LogFormatJSON, cfg.LogFormat)
	require.Equal(t, "http://auth.internal:8001", cfg.Auth.BaseURL)
	require.Equal(t, 10*time.Second, cfg.Auth.Timeout)
	require.Equal(t, 90*time.Second, cfg.Session.SkewMargin)
	require.Equal(t, "/tmp/fincli-test/credentials.json", cfg.Store.File)
	require.Equal(t, "/tmp/fincli-test/credentials.json.lock", cfg.Store.LockFile)

	// Untouched sections still get defaults.
	require.Equal(t, app.DefaultConfigAPIBaseURL, cfg.API.BaseURL)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
[auth]
base_url = "http://from-file:8001"
`)

	environ := func() []string {
		return []string{
			"FINCLI_AUTH__BASE_URL=http://from-env:8001",
			"FINCLI_API__BASE_URL=http://api-from-env:8000",
			"FINCLI_LOG_LEVEL=warn",
			"UNRELATED=ignored",
		}
	}

	cfg, err := loadConfig(path, nil, environ)
	require.NoError(t, err)

	require.Equal(t, "http://from-env:8001", cfg.Auth.BaseURL)
	require.Equal(t, "http://api-from-env:8000", cfg.API.BaseURL)
	require.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	environ := func() []string {
		return []string{"FINCLI_AUTH__BASE_URL=http://from-env:8001"}
	}

	var cfg *app.Config
	cmd := &cli.Command{
		Name: "test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "auth--base-url"},
			&cli.StringFlag{Name: "log-level"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			var err error
			cfg, err = loadConfig("", cmd, environ)
			return err
		},
	}

	err := cmd.Run(context.Background(), []string{
		"test",
		"--auth--base-url", "http://from-flag:8001",
		"--log-level", "error",
	})
	require.NoError(t, err)

	require.Equal(t, "http://from-flag:8001", cfg.Auth.BaseURL)
	require.Equal(t, "error", cfg.LogLevel)
}

func TestLoadConfigUnsetFlagsDoNotOverride(t *testing.T) {
	environ := func() []string {
		return []string{"FINCLI_AUTH__BASE_URL=http://from-env:8001"}
	}

	var cfg *app.Config
	cmd := &cli.Command{
		Name: "test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "auth--base-url", Value: app.DefaultConfigAuthBaseURL},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			var err error
			cfg, err = loadConfig("", cmd, environ)
			return err
		},
	}

	require.NoError(t, cmd.Run(context.Background(), []string{"test"}))
	require.Equal(t, "http://from-env:8001", cfg.Auth.BaseURL,
		"a flag left at its default must not shadow the environment")
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "bad log level",
			content: `log_level = "loud"`,
		},
		{
			name:    "bad storage type",
			content: "[store]\nstorage = \"etcd\"",
		},
		{
			name:    "bad auth URL",
			content: "[auth]\nbase_url = \"not a url\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)

			_, err := loadConfig(path, nil, noEnv)
			require.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), nil, noEnv)
	require.Error(t, err)
}
