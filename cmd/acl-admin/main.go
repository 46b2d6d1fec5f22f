// ABOUTME: Admin CLI for acl-gateway deployments, authorizations and tokens
// ABOUTME: Logs in with a secp256k1 key and keeps the issued bearer token in the user config dir

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/2389/coven-acl/internal/client"
	"github.com/2389/coven-acl/internal/identity"
)

const banner = `
            _                  _           _
  __ _  ___| |       __ _  __| |_ __ ___ (_)_ __
 / _' |/ __| |_____ / _' |/ _' | '_ ' _ \| | '_ \
| (_| | (__| |_____| (_| | (_| | | | | | | | | | |
 \__,_|\___|_|      \__,_|\__,_|_| |_| |_|_|_| |_|
`

const defaultGatewayURL = "http://127.0.0.1:8420"

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, c *client.Client, args []string) error
}

// commands is filled in init: its run functions look up their own usage here.
var commands map[string]command

func init() {
	commands = map[string]command{
		"login":       {"login [--key-file FILE]", "Sign in with your key and save the token", cmdLogin},
		"whoami":      {"whoami", "Show the identity of the saved token", cmdWhoami},
		"deploy":      {"deploy [--name N] [--symbol S]", "Create a deployment; you become admin", cmdDeploy},
		"list":        {"list", "List deployments", cmdList},
		"status":      {"status <deployment>", "Show a deployment's admin, supply and counts", cmdStatus},
		"set-admin":   {"set-admin <deployment> <0x..>", "Transfer the admin role", cmdSetAdmin},
		"authorize":   {"authorize <deployment> <0x..>", "Authorize an identity", cmdAuthorize},
		"deauthorize": {"deauthorize <deployment> <0x..>", "Revoke an identity's authorization", cmdDeauthorize},
		"check":       {"check <deployment> <0x..>", "Check whether an identity is authorized", cmdCheck},
		"events":      {"events <deployment> [--follow]", "Show event history, or follow live events", cmdEvents},
		"audit":       {"audit <deployment> [--caller 0x..] [--action A] [--outcome O] [--limit N]", "Show accepted and rejected calls", cmdAudit},
		"mint":        {"mint <deployment> <0x..> <amount>", "Mint tokens (admin or authorized)", cmdMint},
		"transfer":    {"transfer <deployment> <0x..> <amount>", "Transfer tokens from your balance", cmdTransfer},
		"balance":     {"balance <deployment> [0x..]", "Show a balance (default: yours)", cmdBalance},
	}
}

var commandOrder = []string{
	"login", "whoami", "deploy", "list", "status", "set-admin", "authorize",
	"deauthorize", "check", "events", "audit", "mint", "transfer", "balance",
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name, args := os.Args[1], os.Args[2:]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage()
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := client.New(getEnv("ACL_GATEWAY_URL", defaultGatewayURL), client.WithToken(getToken()))

	err := cmd.run(ctx, c, args)
	if errors.Is(err, pflag.ErrHelp) || errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		if errors.Is(err, client.ErrNoToken) {
			err = fmt.Errorf("%w (run acl-admin login or set ACL_TOKEN)", err)
		}
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: acl-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	for _, name := range commandOrder {
		cmd := commands[name]
		fmt.Printf("  %-40s %s\n", cmd.usage, cmd.help)
	}
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  ACL_GATEWAY_URL      Gateway base URL (default: " + defaultGatewayURL + ")")
	fmt.Println("  ACL_TOKEN            Bearer token (default: saved by login)")
	fmt.Println("  ACL_KEY              Private key hex used by login (or --key-file)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  acl-gateway keygen --out ~/.config/coven-acl/key")
	fmt.Println("  acl-admin login --key-file ~/.config/coven-acl/key")
	fmt.Println("  acl-admin deploy --name 'Coven Token' --symbol CVN")
	fmt.Println("  acl-admin authorize <deployment> 0xd1f4c4afffbc6984214d37bef1e3153b911e5166")
	fmt.Println()
}

// parseArgs parses flags and checks the positional argument count.
func parseArgs(fs *pflag.FlagSet, args []string, usage string, minArgs, maxArgs int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if len(rest) < minArgs || len(rest) > maxArgs {
		return nil, fmt.Errorf("usage: acl-admin %s", usage)
	}
	return rest, nil
}

func newFlagSet(name string) *pflag.FlagSet {
	return pflag.NewFlagSet("acl-admin "+name, pflag.ContinueOnError)
}

func parseIdentityArg(s string) (identity.Identity, error) {
	id, err := identity.Parse(s)
	if err != nil {
		return identity.Null, fmt.Errorf("%q: %w", s, err)
	}
	return id, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "coven-acl")
}

func tokenPath() string {
	return filepath.Join(configDir(), "token")
}

// getToken returns $ACL_TOKEN, or the token saved by login.
func getToken() string {
	if token := os.Getenv("ACL_TOKEN"); token != "" {
		return token
	}
	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveToken(token string) (string, error) {
	path := tokenPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return "", fmt.Errorf("writing token: %w", err)
	}
	return path, nil
}

// loadKey reads the login key from --key-file or $ACL_KEY.
func loadKey(keyFile string) (*identity.Key, error) {
	raw := os.Getenv("ACL_KEY")
	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		raw = string(data)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("no key: pass --key-file or set ACL_KEY (create one with acl-gateway keygen)")
	}
	return identity.KeyFromHex(raw)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
