// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:8080"

database:
  driver: "sqlite3"
  path: "./test.db"

auth:
  jwt_secret: "`+testSecret+`"
  token_ttl: "2h"
  signature_max_age: "90s"

token:
  name: "Guild Credit"
  symbol: "GLD"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "./test.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 90*time.Second, cfg.Auth.SignatureMaxAge)
	assert.Equal(t, "Guild Credit", cfg.Token.Name)
	assert.Equal(t, "GLD", cfg.Token.Symbol)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
http_addr = "127.0.0.1:9000"

[tailscale]
enabled = false

[database]
path = "acl.db"

[auth]
jwt_secret = "`+testSecret+`"
token_ttl = "30m"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.HTTPAddr)
	assert.Equal(t, "acl.db", cfg.Database.Path)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, DefaultDriver, cfg.Database.Driver)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
database:
  path: "acl.db"
auth:
  jwt_secret: "`+testSecret+`"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.Server.HTTPAddr)
	assert.Equal(t, DefaultDriver, cfg.Database.Driver)
	assert.Equal(t, DefaultTokenTTL, cfg.Auth.TokenTTL)
	assert.Equal(t, DefaultSignatureMaxAge, cfg.Auth.SignatureMaxAge)
	assert.Equal(t, DefaultTokenName, cfg.Token.Name)
	assert.Equal(t, DefaultTokenSymbol, cfg.Token.Symbol)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_ACL_SECRET", testSecret)
	t.Setenv("TEST_ACL_DB", "/tmp/acl.db")

	path := writeConfig(t, "config.yaml", `
database:
  path: "${TEST_ACL_DB}"
auth:
  jwt_secret: "${TEST_ACL_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, "/tmp/acl.db", cfg.Database.Path)
}

func TestExpandEnvVars_Unset(t *testing.T) {
	assert.Equal(t, "a--b", expandEnvVars("a-${TEST_ACL_DEFINITELY_UNSET}-b"))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing database path",
			content: "auth:\n  jwt_secret: \"" + testSecret + "\"\n",
			wantErr: "database.path is required",
		},
		{
			name:    "missing secret",
			content: "database:\n  path: a.db\n",
			wantErr: "auth.jwt_secret is required",
		},
		{
			name:    "short secret",
			content: "database:\n  path: a.db\nauth:\n  jwt_secret: short\n",
			wantErr: "at least 32 bytes",
		},
		{
			name:    "bad duration",
			content: "database:\n  path: a.db\nauth:\n  jwt_secret: \"" + testSecret + "\"\n  token_ttl: soon\n",
			wantErr: "parsing token_ttl",
		},
		{
			name:    "bad driver",
			content: "database:\n  driver: postgres\n  path: a.db\nauth:\n  jwt_secret: \"" + testSecret + "\"\n",
			wantErr: "database.driver",
		},
		{
			name:    "tailscale without hostname",
			content: "tailscale:\n  enabled: true\ndatabase:\n  path: a.db\nauth:\n  jwt_secret: \"" + testSecret + "\"\n",
			wantErr: "tailscale.hostname is required",
		},
		{
			name:    "bad log level",
			content: "database:\n  path: a.db\nauth:\n  jwt_secret: \"" + testSecret + "\"\nlogging:\n  level: loud\n",
			wantErr: "logging.level",
		},
		{
			name:    "invalid yaml",
			content: "server: [unclosed",
			wantErr: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}

func TestLoad_TailscaleNeedsNoHTTPAddr(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
tailscale:
  enabled: true
  hostname: "coven-acl"
database:
  path: "acl.db"
auth:
  jwt_secret: "`+testSecret+`"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Server.HTTPAddr)
	assert.Equal(t, "coven-acl", cfg.Tailscale.Hostname)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("ACL_CONFIG", "/etc/acl.yaml")
	assert.Equal(t, "/etc/acl.yaml", DefaultPath())

	t.Setenv("ACL_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "coven-acl", "config.yaml"), DefaultPath())
}
