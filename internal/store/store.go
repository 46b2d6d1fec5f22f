// ABOUTME: Store interface and record types for deployments, event logs and audit
// ABOUTME: Event logs are append-only; state is rebuilt from them at startup

package store

import (
	"context"
	"errors"
	"time"

	"github.com/2389/coven-acl/internal/accesscontrol"
	"github.com/2389/coven-acl/internal/identity"
	"github.com/2389/coven-acl/internal/token"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrSequenceConflict is returned when an appended event does not follow the
// last stored event for its deployment.
var ErrSequenceConflict = errors.New("event sequence conflict")

// Deployment is one AccessControl instance and the token bound to it.
type Deployment struct {
	ID          string
	Deployer    identity.Identity
	TokenName   string
	TokenSymbol string
	CreatedAt   time.Time
}

// AccessEventRecord is a stored AccessControl notification.
type AccessEventRecord struct {
	DeploymentID string
	Event        accesscontrol.Event
	RecordedAt   time.Time
}

// TokenEventRecord is a stored token transfer.
type TokenEventRecord struct {
	DeploymentID string
	Event        token.TransferEvent
	RecordedAt   time.Time
}

// Store defines persistence for deployments and their event logs
type Store interface {
	// Deployments. CreateDeployment stores the deployment together with its
	// bootstrap AdminChanged event.
	CreateDeployment(ctx context.Context, d *Deployment, genesis accesscontrol.Event) error
	GetDeployment(ctx context.Context, id string) (*Deployment, error)
	ListDeployments(ctx context.Context) ([]*Deployment, error)

	// Event logs, ordered by sequence
	AppendAccessEvents(ctx context.Context, deploymentID string, events []accesscontrol.Event, at time.Time) error
	ListAccessEvents(ctx context.Context, deploymentID string) ([]AccessEventRecord, error)
	AppendTokenEvents(ctx context.Context, deploymentID string, events []token.TransferEvent, at time.Time) error
	ListTokenEvents(ctx context.Context, deploymentID string) ([]TokenEventRecord, error)

	// Audit log
	AppendAudit(ctx context.Context, e *AuditEntry) error
	ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error)

	// Close releases any resources held by the store
	Close() error
}

// AccessEvents strips records down to their events, for replay.
func AccessEvents(records []AccessEventRecord) []accesscontrol.Event {
	out := make([]accesscontrol.Event, len(records))
	for i, r := range records {
		out[i] = r.Event
	}
	return out
}

// TokenEvents strips records down to their events, for replay.
func TokenEvents(records []TokenEventRecord) []token.TransferEvent {
	out := make([]token.TransferEvent, len(records))
	for i, r := range records {
		out[i] = r.Event
	}
	return out
}
