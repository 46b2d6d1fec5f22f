// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/2389/coven-acl/internal/accesscontrol"
	"github.com/2389/coven-acl/internal/token"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu           sync.RWMutex
	deployments  map[string]*Deployment         // keyed by deployment ID
	order        []string                       // deployment IDs in creation order
	accessEvents map[string][]AccessEventRecord // keyed by deployment ID
	tokenEvents  map[string][]TokenEventRecord  // keyed by deployment ID
	audit        []AuditEntry

	// FailAppends makes every event append fail, for exercising rollback paths.
	FailAppends error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		deployments:  make(map[string]*Deployment),
		accessEvents: make(map[string][]AccessEventRecord),
		tokenEvents:  make(map[string][]TokenEventRecord),
	}
}

// CreateDeployment stores a deployment with its bootstrap event.
func (m *MockStore) CreateDeployment(ctx context.Context, d *Deployment, genesis accesscontrol.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.deployments[d.ID]; ok {
		return fmt.Errorf("deployment %s already exists", d.ID)
	}
	if genesis.Seq != 1 {
		return fmt.Errorf("%w: access event %d, expected 1", ErrSequenceConflict, genesis.Seq)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	// Make a copy to avoid external modification
	stored := *d
	m.deployments[d.ID] = &stored
	m.order = append(m.order, d.ID)
	m.accessEvents[d.ID] = []AccessEventRecord{{DeploymentID: d.ID, Event: genesis, RecordedAt: d.CreatedAt}}
	return nil
}

// GetDeployment retrieves a deployment by ID.
func (m *MockStore) GetDeployment(ctx context.Context, id string) (*Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.deployments[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *d
	return &result, nil
}

// ListDeployments returns all deployments in creation order.
func (m *MockStore) ListDeployments(ctx context.Context) ([]*Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Deployment, 0, len(m.order))
	for _, id := range m.order {
		d := *m.deployments[id]
		result = append(result, &d)
	}
	return result, nil
}

// AppendAccessEvents appends events after checking sequence continuity.
func (m *MockStore) AppendAccessEvents(ctx context.Context, deploymentID string, events []accesscontrol.Event, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkAppend(deploymentID); err != nil {
		return err
	}

	log := m.accessEvents[deploymentID]
	want := uint64(len(log)) + 1
	for _, e := range events {
		if e.Seq != want {
			return fmt.Errorf("%w: access event %d, expected %d", ErrSequenceConflict, e.Seq, want)
		}
		want++
	}
	for _, e := range events {
		log = append(log, AccessEventRecord{DeploymentID: deploymentID, Event: e, RecordedAt: at})
	}
	m.accessEvents[deploymentID] = log
	return nil
}

// ListAccessEvents returns a copy of a deployment's access log.
func (m *MockStore) ListAccessEvents(ctx context.Context, deploymentID string) ([]AccessEventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]AccessEventRecord{}, m.accessEvents[deploymentID]...), nil
}

// AppendTokenEvents appends transfers after checking sequence continuity.
func (m *MockStore) AppendTokenEvents(ctx context.Context, deploymentID string, events []token.TransferEvent, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkAppend(deploymentID); err != nil {
		return err
	}

	log := m.tokenEvents[deploymentID]
	want := uint64(len(log)) + 1
	for _, e := range events {
		if e.Seq != want {
			return fmt.Errorf("%w: token event %d, expected %d", ErrSequenceConflict, e.Seq, want)
		}
		want++
	}
	for _, e := range events {
		log = append(log, TokenEventRecord{DeploymentID: deploymentID, Event: e, RecordedAt: at})
	}
	m.tokenEvents[deploymentID] = log
	return nil
}

// ListTokenEvents returns a copy of a deployment's token log.
func (m *MockStore) ListTokenEvents(ctx context.Context, deploymentID string) ([]TokenEventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]TokenEventRecord{}, m.tokenEvents[deploymentID]...), nil
}

func (m *MockStore) checkAppend(deploymentID string) error {
	if m.FailAppends != nil {
		return m.FailAppends
	}
	if _, ok := m.deployments[deploymentID]; !ok {
		return ErrNotFound
	}
	return nil
}

// AppendAudit records an audit entry.
func (m *MockStore) AppendAudit(ctx context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prepareAudit(e)
	m.audit = append(m.audit, *e)
	return nil
}

// ListAudit returns matching audit entries, newest first.
func (m *MockStore) ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := normalizeAuditLimit(f.Limit)
	result := []AuditEntry{}
	for i := len(m.audit) - 1; i >= 0 && len(result) < limit; i-- {
		e := m.audit[i]
		if f.DeploymentID != nil && e.DeploymentID != *f.DeploymentID {
			continue
		}
		if f.Caller != nil && e.Caller != *f.Caller {
			continue
		}
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		if f.Outcome != nil && e.Outcome != *f.Outcome {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

// Compile-time interface checks
var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
