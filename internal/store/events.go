// ABOUTME: Deployment records and append-only event logs in SQLite
// ABOUTME: Appends check sequence continuity so two writers cannot interleave a log

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/2389/coven-acl/internal/accesscontrol"
	"github.com/2389/coven-acl/internal/identity"
	"github.com/2389/coven-acl/internal/token"
)

// CreateDeployment stores a deployment and its bootstrap event in one transaction.
func (s *SQLiteStore) CreateDeployment(ctx context.Context, d *Deployment, genesis accesscontrol.Event) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO deployments (deployment_id, deployer, token_name, token_symbol, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, d.ID, d.Deployer.Hex(), d.TokenName, d.TokenSymbol, formatTime(d.CreatedAt))
		if err != nil {
			return fmt.Errorf("inserting deployment: %w", err)
		}
		return appendAccessEvents(ctx, tx, d.ID, []accesscontrol.Event{genesis}, d.CreatedAt)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("created deployment", "id", d.ID, "deployer", d.Deployer.Hex())
	return nil
}

// GetDeployment retrieves a deployment by ID
func (s *SQLiteStore) GetDeployment(ctx context.Context, id string) (*Deployment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT deployment_id, deployer, token_name, token_symbol, created_at
		FROM deployments
		WHERE deployment_id = ?
	`, id)

	d, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDeployments returns all deployments, oldest first.
func (s *SQLiteStore) ListDeployments(ctx context.Context) ([]*Deployment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT deployment_id, deployer, token_name, token_symbol, created_at
		FROM deployments
		ORDER BY created_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying deployments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	deployments := []*Deployment{}
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deployments: %w", err)
	}
	return deployments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row rowScanner) (*Deployment, error) {
	var d Deployment
	var deployer, createdAt string
	if err := row.Scan(&d.ID, &deployer, &d.TokenName, &d.TokenSymbol, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning deployment: %w", err)
	}

	var err error
	if d.Deployer, err = identity.Parse(deployer); err != nil {
		return nil, fmt.Errorf("parsing deployer: %w", err)
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// nextSeq returns the sequence number the next appended event must carry.
func nextSeq(ctx context.Context, tx *sql.Tx, table, deploymentID string) (uint64, error) {
	var last sql.NullInt64
	query := "SELECT MAX(seq) FROM " + table + " WHERE deployment_id = ?"
	if err := tx.QueryRowContext(ctx, query, deploymentID).Scan(&last); err != nil {
		return 0, fmt.Errorf("reading last sequence: %w", err)
	}
	return uint64(last.Int64) + 1, nil
}

// AppendAccessEvents appends access control events to a deployment's log.
// The first event must directly follow the last stored one.
func (s *SQLiteStore) AppendAccessEvents(ctx context.Context, deploymentID string, events []accesscontrol.Event, at time.Time) error {
	if len(events) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireDeployment(ctx, tx, deploymentID); err != nil {
			return err
		}
		return appendAccessEvents(ctx, tx, deploymentID, events, at)
	})
}

func appendAccessEvents(ctx context.Context, tx *sql.Tx, deploymentID string, events []accesscontrol.Event, at time.Time) error {
	want, err := nextSeq(ctx, tx, "access_events", deploymentID)
	if err != nil {
		return err
	}

	for _, e := range events {
		if e.Seq != want {
			return fmt.Errorf("%w: access event %d, expected %d", ErrSequenceConflict, e.Seq, want)
		}

		var previous, current, subject sql.NullString
		var status sql.NullBool
		switch e.Kind {
		case accesscontrol.KindAdminChanged:
			previous = sql.NullString{String: e.Previous.Hex(), Valid: true}
			current = sql.NullString{String: e.Current.Hex(), Valid: true}
		case accesscontrol.KindAuthorizationChanged:
			subject = sql.NullString{String: e.Subject.Hex(), Valid: true}
			status = sql.NullBool{Bool: e.Status, Valid: true}
		default:
			return fmt.Errorf("unknown access event kind %q", e.Kind)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO access_events (deployment_id, seq, kind, caller, previous, current, subject, status, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, deploymentID, int64(e.Seq), string(e.Kind), e.Caller.Hex(), previous, current, subject, status, formatTime(at))
		if err != nil {
			return fmt.Errorf("inserting access event: %w", err)
		}
		want++
	}
	return nil
}

// ListAccessEvents returns a deployment's access control log in sequence order.
func (s *SQLiteStore) ListAccessEvents(ctx context.Context, deploymentID string) ([]AccessEventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, caller, previous, current, subject, status, recorded_at
		FROM access_events
		WHERE deployment_id = ?
		ORDER BY seq ASC
	`, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("querying access events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []AccessEventRecord{}
	for rows.Next() {
		var seq int64
		var kind, caller, recordedAt string
		var previous, current, subject sql.NullString
		var status sql.NullBool
		if err := rows.Scan(&seq, &kind, &caller, &previous, &current, &subject, &status, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning access event: %w", err)
		}

		r := AccessEventRecord{DeploymentID: deploymentID}
		r.Event.Seq = uint64(seq)
		r.Event.Kind = accesscontrol.EventKind(kind)
		if r.Event.Caller, err = identity.Parse(caller); err != nil {
			return nil, fmt.Errorf("parsing access event caller: %w", err)
		}
		for _, f := range []struct {
			src sql.NullString
			dst *identity.Identity
		}{
			{previous, &r.Event.Previous},
			{current, &r.Event.Current},
			{subject, &r.Event.Subject},
		} {
			if !f.src.Valid {
				continue
			}
			if *f.dst, err = identity.Parse(f.src.String); err != nil {
				return nil, fmt.Errorf("parsing access event identity: %w", err)
			}
		}
		r.Event.Status = status.Valid && status.Bool
		if r.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access events: %w", err)
	}
	return records, nil
}

// AppendTokenEvents appends transfers to a deployment's token log.
func (s *SQLiteStore) AppendTokenEvents(ctx context.Context, deploymentID string, events []token.TransferEvent, at time.Time) error {
	if len(events) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireDeployment(ctx, tx, deploymentID); err != nil {
			return err
		}
		want, err := nextSeq(ctx, tx, "token_events", deploymentID)
		if err != nil {
			return err
		}

		for _, e := range events {
			if e.Seq != want {
				return fmt.Errorf("%w: token event %d, expected %d", ErrSequenceConflict, e.Seq, want)
			}
			// amounts span the full uint64 range, which INTEGER cannot hold
			_, err := tx.ExecContext(ctx, `
				INSERT INTO token_events (deployment_id, seq, caller, from_id, to_id, amount, recorded_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, deploymentID, int64(e.Seq), e.Caller.Hex(), e.From.Hex(), e.To.Hex(),
				strconv.FormatUint(e.Amount, 10), formatTime(at))
			if err != nil {
				return fmt.Errorf("inserting token event: %w", err)
			}
			want++
		}
		return nil
	})
}

// ListTokenEvents returns a deployment's token log in sequence order.
func (s *SQLiteStore) ListTokenEvents(ctx context.Context, deploymentID string) ([]TokenEventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, caller, from_id, to_id, amount, recorded_at
		FROM token_events
		WHERE deployment_id = ?
		ORDER BY seq ASC
	`, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("querying token events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []TokenEventRecord{}
	for rows.Next() {
		var seq int64
		var caller, from, to, amount, recordedAt string
		if err := rows.Scan(&seq, &caller, &from, &to, &amount, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning token event: %w", err)
		}

		r := TokenEventRecord{DeploymentID: deploymentID}
		r.Event.Seq = uint64(seq)
		if r.Event.Caller, err = identity.Parse(caller); err != nil {
			return nil, fmt.Errorf("parsing token event caller: %w", err)
		}
		if r.Event.From, err = identity.Parse(from); err != nil {
			return nil, fmt.Errorf("parsing token event sender: %w", err)
		}
		if r.Event.To, err = identity.Parse(to); err != nil {
			return nil, fmt.Errorf("parsing token event recipient: %w", err)
		}
		if r.Event.Amount, err = strconv.ParseUint(amount, 10, 64); err != nil {
			return nil, fmt.Errorf("parsing token event amount: %w", err)
		}
		if r.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating token events: %w", err)
	}
	return records, nil
}

func requireDeployment(ctx context.Context, tx *sql.Tx, id string) error {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM deployments WHERE deployment_id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking deployment: %w", err)
	}
	return nil
}
