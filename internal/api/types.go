// ABOUTME: JSON request and response shapes shared by the gateway and its client
// ABOUTME: Identities encode as EIP-55 strings; timestamps as RFC 3339

// Package api defines the wire types of the acl-gateway HTTP API.
package api

import (
	"time"

	"github.com/2389/coven-acl/internal/identity"
)

// Health is returned by GET /health.
type Health struct {
	Status      string `json:"status"`
	Deployments int    `json:"deployments"`
	Uptime      string `json:"uptime"`
}

// LoginResponse is returned by POST /api/auth/login.
type LoginResponse struct {
	Token     string            `json:"token"`
	Identity  identity.Identity `json:"identity"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// DeployRequest is the body of POST /api/deployments. Empty fields take the
// configured token defaults.
type DeployRequest struct {
	TokenName   string `json:"token_name,omitempty"`
	TokenSymbol string `json:"token_symbol,omitempty"`
}

// Deployment describes one hosted AccessControl instance.
type Deployment struct {
	ID          string            `json:"id"`
	Deployer    identity.Identity `json:"deployer"`
	TokenName   string            `json:"token_name"`
	TokenSymbol string            `json:"token_symbol"`
	CreatedAt   time.Time         `json:"created_at"`
}

// DeploymentStatus is a Deployment plus its live state.
type DeploymentStatus struct {
	Deployment
	Admin        identity.Identity `json:"admin"`
	TotalSupply  uint64            `json:"total_supply"`
	AccessEvents int               `json:"access_events"`
	TokenEvents  int               `json:"token_events"`
}

// AdminRequest is the body of PUT /api/deployments/{id}/admin.
type AdminRequest struct {
	Admin string `json:"admin"`
}

// AdminResponse is returned by GET /api/deployments/{id}/admin.
type AdminResponse struct {
	Admin identity.Identity `json:"admin"`
}

// AuthorizeRequest is the body of POST /api/deployments/{id}/authorizations.
type AuthorizeRequest struct {
	Identity string `json:"identity"`
}

// AuthorizationResponse reports whether an identity is authorized.
type AuthorizationResponse struct {
	Identity   identity.Identity `json:"identity"`
	Authorized bool              `json:"authorized"`
}

// Event is an AccessControl notification. Previous and Current are set for
// admin_changed; Subject and Status for authorization_changed.
type Event struct {
	Seq        uint64             `json:"seq"`
	Kind       string             `json:"kind"`
	Caller     identity.Identity  `json:"caller"`
	Previous   *identity.Identity `json:"previous,omitempty"`
	Current    *identity.Identity `json:"current,omitempty"`
	Subject    *identity.Identity `json:"subject,omitempty"`
	Status     *bool              `json:"status,omitempty"`
	RecordedAt time.Time          `json:"recorded_at,omitzero"`
}

// Transfer is a token mint or transfer. Mints have a null From.
type Transfer struct {
	Seq        uint64            `json:"seq"`
	Caller     identity.Identity `json:"caller"`
	From       identity.Identity `json:"from"`
	To         identity.Identity `json:"to"`
	Amount     uint64            `json:"amount"`
	Mint       bool              `json:"mint"`
	RecordedAt time.Time         `json:"recorded_at,omitzero"`
}

// EventsResponse is returned by GET /api/deployments/{id}/events.
type EventsResponse struct {
	Access []Event    `json:"access"`
	Token  []Transfer `json:"token"`
}

// TokenRequest is the body of the mint and transfer endpoints.
type TokenRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// BalanceResponse is returned by GET /api/deployments/{id}/token/balances/{identity}.
type BalanceResponse struct {
	Identity identity.Identity `json:"identity"`
	Balance  uint64            `json:"balance"`
	Symbol   string            `json:"symbol"`
}

// AuditEntry is one audited call.
type AuditEntry struct {
	ID        string            `json:"id"`
	Caller    identity.Identity `json:"caller"`
	Action    string            `json:"action"`
	Target    string            `json:"target,omitempty"`
	Outcome   string            `json:"outcome"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}
