// ABOUTME: Tests for audit log store operations
// ABOUTME: Covers Append and List with filtering for the audit_log table

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// auditStores runs a test against both Store implementations.
func auditStores(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": setupTestStore(t),
		"mock":   NewMockStore(),
	}
}

func TestAuditStore_Append(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	entry := &AuditEntry{
		DeploymentID: "dep-1",
		Caller:       owner,
		Action:       AuditAuthorize,
		Target:       alice.Hex(),
		Outcome:      OutcomeAccepted,
	}

	err := store.AppendAudit(ctx, entry)
	require.NoError(t, err)

	// Should have generated ID and timestamp
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestAuditStore_List_NoFilter(t *testing.T) {
	for name, store := range auditStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC()

			for i, action := range []AuditAction{AuditDeploy, AuditAuthorize, AuditMint} {
				err := store.AppendAudit(ctx, &AuditEntry{
					DeploymentID: "dep-1",
					Caller:       owner,
					Action:       action,
					Outcome:      OutcomeAccepted,
					Timestamp:    base.Add(time.Duration(i) * time.Second),
				})
				require.NoError(t, err)
			}

			entries, err := store.ListAudit(ctx, AuditFilter{})
			require.NoError(t, err)
			require.Len(t, entries, 3)

			// newest first
			assert.Equal(t, AuditMint, entries[0].Action)
			assert.Equal(t, AuditDeploy, entries[2].Action)
			assert.Equal(t, owner, entries[0].Caller)
		})
	}
}

func TestAuditStore_List_Filters(t *testing.T) {
	for name, store := range auditStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC()

			entries := []AuditEntry{
				{DeploymentID: "dep-1", Caller: owner, Action: AuditAuthorize, Target: alice.Hex(), Outcome: OutcomeAccepted},
				{DeploymentID: "dep-1", Caller: alice, Action: AuditAuthorize, Target: bob.Hex(), Outcome: OutcomeRejected, Error: "caller is not the admin"},
				{DeploymentID: "dep-2", Caller: alice, Action: AuditMint, Target: bob.Hex() + ":5", Outcome: OutcomeAccepted},
			}
			for i := range entries {
				entries[i].Timestamp = base.Add(time.Duration(i) * time.Second)
				require.NoError(t, store.AppendAudit(ctx, &entries[i]))
			}

			dep := "dep-1"
			got, err := store.ListAudit(ctx, AuditFilter{DeploymentID: &dep})
			require.NoError(t, err)
			assert.Len(t, got, 2)

			caller := alice
			got, err = store.ListAudit(ctx, AuditFilter{Caller: &caller})
			require.NoError(t, err)
			assert.Len(t, got, 2)

			rejected := OutcomeRejected
			got, err = store.ListAudit(ctx, AuditFilter{Outcome: &rejected})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "caller is not the admin", got[0].Error)
			assert.Equal(t, bob.Hex(), got[0].Target)

			mint := AuditMint
			got, err = store.ListAudit(ctx, AuditFilter{Action: &mint, DeploymentID: &dep})
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestAuditStore_List_Limit(t *testing.T) {
	for name, store := range auditStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				require.NoError(t, store.AppendAudit(ctx, &AuditEntry{
					DeploymentID: "dep-1",
					Caller:       owner,
					Action:       AuditTransfer,
					Outcome:      OutcomeAccepted,
				}))
			}

			got, err := store.ListAudit(ctx, AuditFilter{Limit: 2})
			require.NoError(t, err)
			assert.Len(t, got, 2)
		})
	}
}

func TestNormalizeAuditLimit(t *testing.T) {
	assert.Equal(t, 100, normalizeAuditLimit(0))
	assert.Equal(t, 100, normalizeAuditLimit(-3))
	assert.Equal(t, 7, normalizeAuditLimit(7))
	assert.Equal(t, 1000, normalizeAuditLimit(5000))
}
