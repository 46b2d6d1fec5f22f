// ABOUTME: Hosts deployments and commits their calls through memory, store and watchers
// ABOUTME: Each call is all-or-nothing: a failed persist rolls the in-memory state back

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/2389/coven-acl/internal/accesscontrol"
	"github.com/2389/coven-acl/internal/identity"
	"github.com/2389/coven-acl/internal/notify"
	"github.com/2389/coven-acl/internal/store"
	"github.com/2389/coven-acl/internal/token"
)

// ErrInvalidToken is returned when a deployment is requested without a token name or symbol.
var ErrInvalidToken = errors.New("token name and symbol are required")

// deployment is one live AccessControl instance and the token gated by it.
type deployment struct {
	// mu is held for writing across op, persist and restore, so readers
	// never see a change the store has not accepted.
	mu     deadlock.RWMutex
	info   store.Deployment
	access *accesscontrol.AccessControl
	token  *token.Token
}

// Ledger owns every deployment hosted by the gateway.
type Ledger struct {
	store       store.Store
	broadcaster *notify.Broadcaster
	logger      *slog.Logger
	now         func() time.Time

	mu          deadlock.RWMutex
	deployments map[string]*deployment
}

// New creates an empty ledger. Call Load to restore persisted deployments.
// broadcaster may be nil when nobody watches.
func New(s store.Store, broadcaster *notify.Broadcaster, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:       s,
		broadcaster: broadcaster,
		logger:      logger.With("component", "ledger"),
		now:         func() time.Time { return time.Now().UTC() },
		deployments: make(map[string]*deployment),
	}
}

// Load rebuilds every stored deployment by replaying its event logs.
func (l *Ledger) Load(ctx context.Context) error {
	infos, err := l.store.ListDeployments(ctx)
	if err != nil {
		return fmt.Errorf("listing deployments: %w", err)
	}

	loaded := make(map[string]*deployment, len(infos))
	for _, info := range infos {
		d, err := l.replay(ctx, info)
		if err != nil {
			return fmt.Errorf("replaying deployment %s: %w", info.ID, err)
		}
		loaded[info.ID] = d
	}

	l.mu.Lock()
	l.deployments = loaded
	l.mu.Unlock()

	l.logger.Info("ledger loaded", "deployments", len(loaded))
	return nil
}

func (l *Ledger) replay(ctx context.Context, info *store.Deployment) (*deployment, error) {
	accessRecords, err := l.store.ListAccessEvents(ctx, info.ID)
	if err != nil {
		return nil, fmt.Errorf("listing access events: %w", err)
	}
	ac, err := accesscontrol.Replay(store.AccessEvents(accessRecords))
	if err != nil {
		return nil, err
	}
	if ac.Events()[0].Current != info.Deployer {
		return nil, fmt.Errorf("%w: bootstrap admin is not the deployer", accesscontrol.ErrCorruptLog)
	}

	tokenRecords, err := l.store.ListTokenEvents(ctx, info.ID)
	if err != nil {
		return nil, fmt.Errorf("listing token events: %w", err)
	}
	tok, err := token.Replay(info.TokenName, info.TokenSymbol, ac, store.TokenEvents(tokenRecords))
	if err != nil {
		return nil, err
	}

	l.logger.Debug("replayed deployment",
		"id", info.ID,
		"access_events", len(accessRecords),
		"token_events", len(tokenRecords))
	return &deployment{info: *info, access: ac, token: tok}, nil
}

// Deploy creates a new AccessControl instance whose admin is the deployer,
// plus a token bound to it.
func (l *Ledger) Deploy(ctx context.Context, deployer identity.Identity, tokenName, tokenSymbol string) (*store.Deployment, error) {
	entry := &store.AuditEntry{Caller: deployer, Action: store.AuditDeploy, Target: tokenSymbol}

	if tokenName == "" || tokenSymbol == "" {
		l.reject(ctx, entry, ErrInvalidToken)
		return nil, ErrInvalidToken
	}
	ac, err := accesscontrol.New(deployer)
	if err != nil {
		l.reject(ctx, entry, err)
		return nil, err
	}

	info := store.Deployment{
		ID:          uuid.New().String(),
		Deployer:    deployer,
		TokenName:   tokenName,
		TokenSymbol: tokenSymbol,
		CreatedAt:   l.now(),
	}
	genesis := ac.Events()[0]
	if err := l.store.CreateDeployment(ctx, &info, genesis); err != nil {
		err = fmt.Errorf("persisting deployment: %w", err)
		l.reject(ctx, entry, err)
		return nil, err
	}

	l.mu.Lock()
	l.deployments[info.ID] = &deployment{
		info:   info,
		access: ac,
		token:  token.New(tokenName, tokenSymbol, ac),
	}
	l.mu.Unlock()

	entry.DeploymentID = info.ID
	l.accept(ctx, entry)
	l.publishAccess(info.ID, info.CreatedAt, genesis)

	l.logger.Info("deployed",
		"id", info.ID,
		"deployer", deployer.Hex(),
		"token", tokenSymbol)

	result := info
	return &result, nil
}

// SetAdmin transfers the admin role of a deployment.
func (l *Ledger) SetAdmin(ctx context.Context, id string, caller, newAdmin identity.Identity) (accesscontrol.Event, error) {
	entry := &store.AuditEntry{DeploymentID: id, Caller: caller, Action: store.AuditSetAdmin, Target: newAdmin.Hex()}
	return l.commitAccess(ctx, entry, func(ac *accesscontrol.AccessControl) (accesscontrol.Event, error) {
		return ac.SetAdmin(caller, newAdmin)
	})
}

// Authorize marks subject as authorized on a deployment.
func (l *Ledger) Authorize(ctx context.Context, id string, caller, subject identity.Identity) (accesscontrol.Event, error) {
	entry := &store.AuditEntry{DeploymentID: id, Caller: caller, Action: store.AuditAuthorize, Target: subject.Hex()}
	return l.commitAccess(ctx, entry, func(ac *accesscontrol.AccessControl) (accesscontrol.Event, error) {
		return ac.Authorize(caller, subject)
	})
}

// Deauthorize clears subject's authorization on a deployment.
func (l *Ledger) Deauthorize(ctx context.Context, id string, caller, subject identity.Identity) (accesscontrol.Event, error) {
	entry := &store.AuditEntry{DeploymentID: id, Caller: caller, Action: store.AuditDeauthorize, Target: subject.Hex()}
	return l.commitAccess(ctx, entry, func(ac *accesscontrol.AccessControl) (accesscontrol.Event, error) {
		return ac.Deauthorize(caller, subject)
	})
}

// Mint creates amount new tokens for to. The caller must be admin or authorized.
func (l *Ledger) Mint(ctx context.Context, id string, caller, to identity.Identity, amount uint64) (token.TransferEvent, error) {
	entry := &store.AuditEntry{DeploymentID: id, Caller: caller, Action: store.AuditMint, Target: transferTarget(to, amount)}
	return l.commitToken(ctx, entry, func(t *token.Token) (token.TransferEvent, error) {
		return t.Mint(caller, to, amount)
	})
}

// Transfer moves amount of the caller's tokens to to.
func (l *Ledger) Transfer(ctx context.Context, id string, caller, to identity.Identity, amount uint64) (token.TransferEvent, error) {
	entry := &store.AuditEntry{DeploymentID: id, Caller: caller, Action: store.AuditTransfer, Target: transferTarget(to, amount)}
	return l.commitToken(ctx, entry, func(t *token.Token) (token.TransferEvent, error) {
		return t.Transfer(caller, to, amount)
	})
}

func transferTarget(to identity.Identity, amount uint64) string {
	return fmt.Sprintf("%s:%d", to.Hex(), amount)
}

// commitAccess runs op against a deployment's AccessControl and persists the
// resulting event. Nothing is published unless the store accepted the event.
func (l *Ledger) commitAccess(ctx context.Context, entry *store.AuditEntry, op func(*accesscontrol.AccessControl) (accesscontrol.Event, error)) (accesscontrol.Event, error) {
	d, err := l.get(entry.DeploymentID)
	if err != nil {
		return accesscontrol.Event{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.access.Snapshot()
	ev, err := op(d.access)
	if err != nil {
		l.reject(ctx, entry, err)
		return accesscontrol.Event{}, err
	}

	at := l.now()
	if err := l.store.AppendAccessEvents(ctx, d.info.ID, []accesscontrol.Event{ev}, at); err != nil {
		d.access.Restore(snap)
		err = fmt.Errorf("persisting access event: %w", err)
		l.logger.Error("commit rolled back", "deployment", d.info.ID, "event", ev.String(), "error", err)
		l.reject(ctx, entry, err)
		return accesscontrol.Event{}, err
	}

	l.accept(ctx, entry)
	l.publishAccess(d.info.ID, at, ev)
	return ev, nil
}

// commitToken is commitAccess for the token log.
func (l *Ledger) commitToken(ctx context.Context, entry *store.AuditEntry, op func(*token.Token) (token.TransferEvent, error)) (token.TransferEvent, error) {
	d, err := l.get(entry.DeploymentID)
	if err != nil {
		return token.TransferEvent{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.token.Snapshot()
	ev, err := op(d.token)
	if err != nil {
		l.reject(ctx, entry, err)
		return token.TransferEvent{}, err
	}

	at := l.now()
	if err := l.store.AppendTokenEvents(ctx, d.info.ID, []token.TransferEvent{ev}, at); err != nil {
		d.token.Restore(snap)
		err = fmt.Errorf("persisting token event: %w", err)
		l.logger.Error("commit rolled back", "deployment", d.info.ID, "seq", ev.Seq, "error", err)
		l.reject(ctx, entry, err)
		return token.TransferEvent{}, err
	}

	l.accept(ctx, entry)
	if l.broadcaster != nil {
		l.broadcaster.Publish(d.info.ID, notify.Notification{DeploymentID: d.info.ID, Transfer: &ev, At: at})
	}
	return ev, nil
}

func (l *Ledger) publishAccess(id string, at time.Time, ev accesscontrol.Event) {
	if l.broadcaster == nil {
		return
	}
	l.broadcaster.Publish(id, notify.Notification{DeploymentID: id, Access: &ev, At: at})
}

func (l *Ledger) get(id string) (*deployment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	d, ok := l.deployments[id]
	if !ok {
		return nil, fmt.Errorf("deployment %s: %w", id, store.ErrNotFound)
	}
	return d, nil
}

func (l *Ledger) accept(ctx context.Context, entry *store.AuditEntry) {
	entry.Outcome = store.OutcomeAccepted
	l.appendAudit(ctx, entry)
}

func (l *Ledger) reject(ctx context.Context, entry *store.AuditEntry, cause error) {
	entry.Outcome = store.OutcomeRejected
	entry.Error = cause.Error()
	l.appendAudit(ctx, entry)

	l.logger.Debug("call rejected",
		"deployment", entry.DeploymentID,
		"caller", entry.Caller.Hex(),
		"action", entry.Action,
		"error", cause)
}

// appendAudit never fails the call: by the time it runs the outcome is final.
func (l *Ledger) appendAudit(ctx context.Context, entry *store.AuditEntry) {
	entry.Timestamp = l.now()
	if err := l.store.AppendAudit(ctx, entry); err != nil {
		l.logger.Warn("failed to append audit entry",
			"deployment", entry.DeploymentID,
			"action", entry.Action,
			"error", err)
	}
}
