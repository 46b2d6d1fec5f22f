// ABOUTME: acl-gateway keygen and token subcommands
// ABOUTME: keygen creates a secp256k1 identity; token mints a bearer JWT with the configured secret

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-acl/internal/auth"
	"github.com/2389/coven-acl/internal/config"
	"github.com/2389/coven-acl/internal/identity"
)

func runKeygen(args []string) error {
	fs, _ := newFlagSet("keygen")
	out := fs.StringP("out", "o", "", "write the private key (hex) to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := identity.NewKey()
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  New Identity")
	cyan.Println("  ------------")
	fmt.Printf("  Identity:    %s\n", key.Identity())
	fmt.Printf("  Public key:  %s\n", key.PublicKeyHex())

	if *out == "" {
		color.Yellow("  Private key: %s\n", key.Hex())
		fmt.Println()
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(*out, []byte(key.Hex()+"\n"), 0600); err != nil {
		return fmt.Errorf("writing key: %w", err)
	}
	fmt.Printf("  Private key: %s\n", *out)
	fmt.Println()
	return nil
}

func runToken(args []string) error {
	fs, configPath := newFlagSet("token")
	subject := fs.String("identity", "", "identity (0x address) the token authenticates")
	ttl := fs.Duration("ttl", 0, "token lifetime (default: auth.token_ttl from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return fmt.Errorf("usage: acl-gateway token --identity 0x.. [--ttl 24h]")
	}

	caller, err := identity.Parse(*subject)
	if err != nil {
		return err
	}
	if caller.IsNull() {
		return fmt.Errorf("cannot issue a token for the null identity")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return err
	}
	tok, err := verifier.Generate(caller, lifetime)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Fprintf(os.Stderr, "token for %s, expires %s\n", caller, time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(tok)
	return nil
}
