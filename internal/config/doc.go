// Package config handles configuration loading for acl-gateway.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ACL_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven-acl/config.yaml
//  3. ~/.config/coven-acl/config.yaml
//
// Files ending in .toml are read as TOML; anything else as YAML. Both
// formats use the same keys.
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${ACL_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8420"
//
//	tailscale:
//	  enabled: false
//	  hostname: "coven-acl"
//	  auth_key: "${TS_AUTHKEY}"
//	  state_dir: ""
//	  ephemeral: false
//
//	database:
//	  driver: "sqlite"     # sqlite (pure Go) or sqlite3 (cgo)
//	  path: "~/.local/share/coven-acl/acl.db"
//
//	auth:
//	  jwt_secret: "${ACL_JWT_SECRET}"   # at least 32 bytes
//	  token_ttl: "24h"
//	  signature_max_age: "5m"
//
//	token:
//	  name: "Coven Token"
//	  symbol: "CVN"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
