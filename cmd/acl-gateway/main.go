// ABOUTME: Entry point for acl-gateway, the access-controlled token server
// ABOUTME: Dispatches serve, init, keygen, token and demo subcommands

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/2389/coven-acl/internal/config"
	"github.com/2389/coven-acl/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
            _                     _
  __ _  ___| |       __ _  __ _| |_ _____      ____ _ _   _
 / _' |/ __| |_____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| (_| | (__| |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 \__,_|\___|_|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                    |___/                             |___/
`

func printUsage() {
	fmt.Println("Usage: acl-gateway <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                      Start the gateway server")
	fmt.Println("  init                       Create a new config file interactively")
	fmt.Println("  keygen [--out FILE]        Generate a secp256k1 identity key")
	fmt.Println("  token --identity 0x..      Issue a bearer token offline")
	fmt.Println("  demo                       Run deploy, authorize, mint and transfer in memory")
	fmt.Println()
	fmt.Println("Every command accepts --config FILE (default: $ACL_CONFIG or ~/.config/coven-acl/config.yaml).")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, args)
	case "init":
		err = runInit(args)
	case "keygen":
		err = runKeygen(args)
	case "token":
		err = runToken(args)
	case "demo":
		err = runDemo(ctx, args)
	case "version", "--version":
		fmt.Println(version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set for a subcommand with the shared --config flag.
func newFlagSet(name string) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet("acl-gateway "+name, pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", config.DefaultPath(), "path to config file (.yaml or .toml)")
	return fs, configPath
}

func runServe(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("serve")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", *configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s (%s)\n", cfg.Database.Path, cfg.Database.Driver)
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	fmt.Println()

	logger.Info("starting acl-gateway",
		"config", *configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"tailscale", cfg.Tailscale.Enabled,
	)

	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}
