// ABOUTME: Read-side helpers over hosted deployments
// ABOUTME: Live state comes from memory; event history and audit come from the store

package ledger

import (
	"context"
	"fmt"

	"github.com/2389/coven-acl/internal/identity"
	"github.com/2389/coven-acl/internal/store"
)

// Status summarises one deployment.
type Status struct {
	Deployment   store.Deployment
	Admin        identity.Identity
	TotalSupply  uint64
	AccessEvents int
	TokenEvents  int
}

// read returns a deployment with its commit lock held for reading. The
// caller must RUnlock it.
func (l *Ledger) read(id string) (*deployment, error) {
	d, err := l.get(id)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	return d, nil
}

// Deployments returns every hosted deployment, oldest first.
func (l *Ledger) Deployments(ctx context.Context) ([]*store.Deployment, error) {
	return l.store.ListDeployments(ctx)
}

// Loaded reports how many deployments are hosted in memory.
func (l *Ledger) Loaded() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.deployments)
}

// Status returns a deployment's current summary.
func (l *Ledger) Status(id string) (Status, error) {
	d, err := l.read(id)
	if err != nil {
		return Status{}, err
	}
	defer d.mu.RUnlock()
	return Status{
		Deployment:   d.info,
		Admin:        d.access.Admin(),
		TotalSupply:  d.token.TotalSupply(),
		AccessEvents: len(d.access.Events()),
		TokenEvents:  len(d.token.Events()),
	}, nil
}

// Admin returns a deployment's current admin.
func (l *Ledger) Admin(id string) (identity.Identity, error) {
	d, err := l.read(id)
	if err != nil {
		return identity.Null, err
	}
	defer d.mu.RUnlock()
	return d.access.Admin(), nil
}

// IsAuthorized reports whether subject is authorized on a deployment.
func (l *Ledger) IsAuthorized(id string, subject identity.Identity) (bool, error) {
	d, err := l.read(id)
	if err != nil {
		return false, err
	}
	defer d.mu.RUnlock()
	return d.access.IsAuthorized(subject), nil
}

// BalanceOf returns holder's token balance on a deployment.
func (l *Ledger) BalanceOf(id string, holder identity.Identity) (uint64, error) {
	d, err := l.read(id)
	if err != nil {
		return 0, err
	}
	defer d.mu.RUnlock()
	return d.token.BalanceOf(holder), nil
}

// AccessEvents returns a deployment's stored access control log.
func (l *Ledger) AccessEvents(ctx context.Context, id string) ([]store.AccessEventRecord, error) {
	if _, err := l.get(id); err != nil {
		return nil, err
	}
	records, err := l.store.ListAccessEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing access events: %w", err)
	}
	return records, nil
}

// TokenEvents returns a deployment's stored token log.
func (l *Ledger) TokenEvents(ctx context.Context, id string) ([]store.TokenEventRecord, error) {
	if _, err := l.get(id); err != nil {
		return nil, err
	}
	records, err := l.store.ListTokenEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing token events: %w", err)
	}
	return records, nil
}

// Audit returns a deployment's audit trail, newest first.
func (l *Ledger) Audit(ctx context.Context, id string, f store.AuditFilter) ([]store.AuditEntry, error) {
	if _, err := l.get(id); err != nil {
		return nil, err
	}
	f.DeploymentID = &id
	return l.store.ListAudit(ctx, f)
}
