// ABOUTME: acl-gateway init: interactively writes a config file with a fresh JWT secret
// ABOUTME: Emits TOML when the target path ends in .toml, YAML otherwise

package main

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/coven-acl/internal/config"
)

func runInit(args []string) error {
	fs, configPath := newFlagSet("init")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("acl-gateway configuration setup")
	fmt.Println("===============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", *configPath)
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	var cfg config.Config

	fmt.Println("\n--- Server Configuration ---")
	cfg.Tailscale.Enabled = yes(prompt(reader, "Listen on a Tailscale tailnet instead of TCP?", "no"))
	if cfg.Tailscale.Enabled {
		cfg.Tailscale.Hostname = prompt(reader, "Tailscale hostname", "acl-gateway")
		cfg.Tailscale.AuthKey = prompt(reader, "Tailscale auth key (leave empty to use $TS_AUTHKEY)", "")
		cfg.Tailscale.Ephemeral = yes(prompt(reader, "Ephemeral node?", "no"))
	} else {
		cfg.Server.HTTPAddr = prompt(reader, "HTTP address", config.DefaultHTTPAddr)
	}

	fmt.Println("\n--- Database Configuration ---")
	cfg.Database.Driver = prompt(reader, "SQLite driver (sqlite/sqlite3)", config.DefaultDriver)
	cfg.Database.Path = prompt(reader, "SQLite database path", filepath.Join(config.DefaultDataDir(), "acl.db"))

	fmt.Println("\n--- Auth Configuration ---")
	cfg.Auth.JWTSecret = secret
	cfg.Auth.TokenTTLRaw = prompt(reader, "Bearer token lifetime", config.DefaultTokenTTL.String())
	cfg.Auth.SignatureMaxAgeRaw = prompt(reader, "Max age of signed logins", config.DefaultSignatureMaxAge.String())

	fmt.Println("\n--- Token Defaults ---")
	cfg.Token.Name = prompt(reader, "Token name", config.DefaultTokenName)
	cfg.Token.Symbol = prompt(reader, "Token symbol", config.DefaultTokenSymbol)

	fmt.Println("\n--- Logging Configuration ---")
	cfg.Logging.Level = prompt(reader, "Log level (debug/info/warn/error)", "info")
	cfg.Logging.Format = prompt(reader, "Log format (text/json)", "text")

	data, err := encodeConfig(&cfg, outputFile)
	if err != nil {
		return err
	}
	// parse what we are about to write so a bad answer fails here, not at serve
	if _, err := config.Parse(data, isTOML(outputFile)); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// the file holds the JWT secret
	if err := os.WriteFile(outputFile, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  acl-gateway serve --config %s\n", outputFile)
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func encodeConfig(cfg *config.Config, path string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# acl-gateway configuration\n")
	buf.WriteString("# Generated by acl-gateway init\n\n")

	if isTOML(path) {
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("encoding config: %w", err)
		}
		return buf.Bytes(), nil
	}

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func yes(answer string) bool {
	a := strings.ToLower(answer)
	return a == "yes" || a == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// EOF: take the default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}
