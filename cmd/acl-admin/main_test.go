// ABOUTME: Tests for acl-admin argument handling and command dispatch
// ABOUTME: Drives each subcommand through the commands table against a real gateway handler

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-acl/internal/client"
	"github.com/2389/coven-acl/internal/config"
	"github.com/2389/coven-acl/internal/gateway"
	"github.com/2389/coven-acl/internal/identity"
	"github.com/2389/coven-acl/internal/store"
)

const member = "0xd1f4c4afffbc6984214d37bef1e3153b911e5166"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: config.DefaultDriver, Path: ":memory:"},
		Auth: config.AuthConfig{
			JWTSecret:       "0123456789abcdef0123456789abcdef",
			TokenTTL:        time.Hour,
			SignatureMaxAge: time.Minute,
		},
		Token: config.TokenConfig{Name: "Coven Token", Symbol: "CVN"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gw, err := gateway.NewWithStore(t.Context(), cfg, store.NewMockStore(), logger)
	require.NoError(t, err)

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = gw.Shutdown(context.Background())
	})
	return srv
}

func run(t *testing.T, c *client.Client, name string, args ...string) error {
	t.Helper()
	cmd, ok := commands[name]
	require.True(t, ok, "unknown command %s", name)
	return cmd.run(t.Context(), c, args)
}

func TestCommandTable(t *testing.T) {
	names := make([]string, 0, len(commands))
	for name, cmd := range commands {
		names = append(names, name)
		assert.NotNil(t, cmd.run, name)
		assert.Contains(t, cmd.usage, name, "usage of %s should start with its name", name)
	}
	slices.Sort(names)

	ordered := slices.Clone(commandOrder)
	slices.Sort(ordered)
	assert.Equal(t, names, ordered, "every command is listed in help exactly once")
}

func TestCommandArgs(t *testing.T) {
	color.NoColor = true
	t.Setenv("ACL_KEY", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	// nothing listens here: every case must fail before a request is made
	c := client.New("http://127.0.0.1:1", client.WithToken("unused"))

	tests := []struct {
		name    string
		command string
		args    []string
		wantErr string
	}{
		{"login takes no args", "login", []string{"extra"}, "usage: acl-admin login"},
		{"login needs a key", "login", nil, "no key"},
		{"whoami takes no args", "whoami", []string{"x"}, "usage: acl-admin whoami"},
		{"deploy rejects unknown flags", "deploy", []string{"--bogus"}, "unknown flag: --bogus"},
		{"list takes no args", "list", []string{"x"}, "usage: acl-admin list"},
		{"status needs a deployment", "status", nil, "usage: acl-admin status"},
		{"status takes one deployment", "status", []string{"a", "b"}, "usage: acl-admin status"},
		{"set-admin needs an identity", "set-admin", []string{"d1"}, "usage: acl-admin set-admin"},
		{"set-admin checks the identity", "set-admin", []string{"d1", "alice"}, `"alice"`},
		{"authorize checks the identity", "authorize", []string{"d1", "nope"}, `"nope"`},
		{"deauthorize checks the identity", "deauthorize", []string{"d1", "0x12"}, `"0x12"`},
		{"check needs two args", "check", []string{"d1"}, "usage: acl-admin check"},
		{"events needs a deployment", "events", nil, "usage: acl-admin events"},
		{"audit checks the caller filter", "audit", []string{"d1", "--caller", "bad"}, `"bad"`},
		{"mint needs an amount", "mint", []string{"d1", member}, "usage: acl-admin mint"},
		{"mint checks the amount", "mint", []string{"d1", member, "ten"}, `amount "ten"`},
		{"transfer checks the amount", "transfer", []string{"d1", member, "1.5"}, `amount "1.5"`},
		{"balance without holder needs a key", "balance", []string{"d1"}, "no key"},
		{"balance takes at most two args", "balance", []string{"d1", member, "x"}, "usage: acl-admin balance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(t, c, tt.command, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCommandFlow(t *testing.T) {
	color.NoColor = true
	srv := newTestServer(t)

	key, err := identity.NewKey()
	require.NoError(t, err)
	t.Setenv("ACL_TOKEN", "")
	t.Setenv("ACL_KEY", key.Hex())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	c := client.New(srv.URL)
	require.NoError(t, run(t, c, "login"))
	assert.Equal(t, c.Token(), getToken(), "login saves the token for later runs")
	require.NoError(t, run(t, c, "whoami"))

	require.NoError(t, run(t, c, "deploy", "--name", "Gold", "--symbol", "GLD"))
	list, err := c.ListDeployments(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID
	assert.Equal(t, "GLD", list[0].TokenSymbol)
	subject := identity.MustParse(member)

	require.NoError(t, run(t, c, "authorize", id, member))
	require.NoError(t, run(t, c, "check", id, member))
	ok, err := c.IsAuthorized(t.Context(), id, subject)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, run(t, c, "mint", id, key.Identity().Hex(), "100"))
	require.NoError(t, run(t, c, "transfer", id, member, "40"))
	require.NoError(t, run(t, c, "balance", id))
	require.NoError(t, run(t, c, "balance", id, member))
	bal, err := c.Balance(t.Context(), id, subject)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), bal.Balance)

	require.NoError(t, run(t, c, "deauthorize", id, member))
	ok, err = c.IsAuthorized(t.Context(), id, subject)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, run(t, c, "list"))
	require.NoError(t, run(t, c, "status", id))
	require.NoError(t, run(t, c, "events", id))
	require.NoError(t, run(t, c, "audit", id, "--action", "mint", "--outcome", "accepted", "-n", "5"))

	require.NoError(t, run(t, c, "set-admin", id, member))
	admin, err := c.Admin(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, subject, admin)

	// the old admin has lost the role
	err = run(t, c, "authorize", id, key.Identity().Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authorize:")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
