// ABOUTME: Audit log entity and SQLite methods for tracking every call
// ABOUTME: Records accepted and rejected calls; rejected calls never reach the event logs

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-acl/internal/identity"
)

// AuditAction represents an auditable action.
type AuditAction string

const (
	AuditDeploy      AuditAction = "deploy"
	AuditSetAdmin    AuditAction = "set_admin"
	AuditAuthorize   AuditAction = "authorize"
	AuditDeauthorize AuditAction = "deauthorize"
	AuditMint        AuditAction = "mint"
	AuditTransfer    AuditAction = "transfer"
)

// ValidAuditActions lists all valid audit actions.
var ValidAuditActions = []AuditAction{
	AuditDeploy,
	AuditSetAdmin,
	AuditAuthorize,
	AuditDeauthorize,
	AuditMint,
	AuditTransfer,
}

// AuditOutcome says whether the audited call took effect.
type AuditOutcome string

const (
	OutcomeAccepted AuditOutcome = "accepted"
	OutcomeRejected AuditOutcome = "rejected"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string            // UUID v4
	DeploymentID string            // empty for failed deploys
	Caller       identity.Identity // who made the call
	Action       AuditAction       // what was attempted
	Target       string            // subject identity, or "to:amount" for token calls
	Outcome      AuditOutcome
	Error        string            // rejection reason
	Timestamp    time.Time
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	DeploymentID *string
	Caller       *identity.Identity
	Action       *AuditAction
	Outcome      *AuditOutcome
	Limit        int // default 100, max 1000
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// prepareAudit fills in ID and Timestamp when unset.
func prepareAudit(e *AuditEntry) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
}

// AppendAudit appends a new entry to the audit log.
func (s *SQLiteStore) AppendAudit(ctx context.Context, e *AuditEntry) error {
	prepareAudit(e)

	query := `
		INSERT INTO audit_log (audit_id, deployment_id, caller, action, target, outcome, error, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.DeploymentID,
		e.Caller.Hex(),
		string(e.Action),
		e.Target,
		string(e.Outcome),
		e.Error,
		formatTime(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"deployment", e.DeploymentID,
		"caller", e.Caller.Hex(),
		"action", e.Action,
		"outcome", e.Outcome,
	)
	return nil
}

const auditLogQuery = `
	SELECT audit_id, deployment_id, caller, action, target, outcome, error, ts
	FROM audit_log
	WHERE (? IS NULL OR deployment_id = ?)
	  AND (? IS NULL OR caller = ?)
	  AND (? IS NULL OR action = ?)
	  AND (? IS NULL OR outcome = ?)
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListAudit returns audit entries matching the filter, newest first.
func (s *SQLiteStore) ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	var caller, action, outcome *string
	if f.Caller != nil {
		c := f.Caller.Hex()
		caller = &c
	}
	if f.Action != nil {
		a := string(*f.Action)
		action = &a
	}
	if f.Outcome != nil {
		o := string(*f.Outcome)
		outcome = &o
	}

	rows, err := s.db.QueryContext(ctx, auditLogQuery,
		f.DeploymentID, f.DeploymentID,
		caller, caller,
		action, action,
		outcome, outcome,
		normalizeAuditLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var callerHex, actionStr, outcomeStr, tsStr string
		if err := rows.Scan(&e.ID, &e.DeploymentID, &callerHex, &actionStr, &e.Target, &outcomeStr, &e.Error, &tsStr); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if e.Caller, err = identity.Parse(callerHex); err != nil {
			return nil, fmt.Errorf("parsing audit caller: %w", err)
		}
		if e.Timestamp, err = parseTime(tsStr); err != nil {
			return nil, err
		}
		e.Action = AuditAction(actionStr)
		e.Outcome = AuditOutcome(outcomeStr)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}
