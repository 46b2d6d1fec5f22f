// ABOUTME: Tests for the ledger commit path
// ABOUTME: Covers deploy, guarded calls, rollback on store failure, audit and notifications

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-acl/internal/accesscontrol"
	"github.com/2389/coven-acl/internal/identity"
	"github.com/2389/coven-acl/internal/notify"
	"github.com/2389/coven-acl/internal/store"
	"github.com/2389/coven-acl/internal/token"
)

var (
	owner = identity.MustParse("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	alice = identity.MustParse("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	bob   = identity.MustParse("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
)

func newTestLedger(t *testing.T) (*Ledger, *store.MockStore, *notify.Broadcaster) {
	t.Helper()
	s := store.NewMockStore()
	b := notify.NewBroadcaster(nil)
	t.Cleanup(b.Close)
	return New(s, b, nil), s, b
}

func deploy(t *testing.T, l *Ledger) string {
	t.Helper()
	d, err := l.Deploy(context.Background(), owner, "Coven Token", "CVN")
	require.NoError(t, err)
	return d.ID
}

func TestDeploy(t *testing.T) {
	l, s, _ := newTestLedger(t)
	ctx := context.Background()

	d, err := l.Deploy(ctx, owner, "Coven Token", "CVN")
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, owner, d.Deployer)

	admin, err := l.Admin(d.ID)
	require.NoError(t, err)
	assert.Equal(t, owner, admin)

	records, err := s.ListAccessEvents(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, accesscontrol.Event{
		Seq: 1, Kind: accesscontrol.KindAdminChanged, Caller: owner, Previous: identity.Null, Current: owner,
	}, records[0].Event)
}

func TestDeploy_Rejected(t *testing.T) {
	l, s, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Deploy(ctx, identity.Null, "Coven Token", "CVN")
	assert.ErrorIs(t, err, accesscontrol.ErrInvalidAddress)

	_, err = l.Deploy(ctx, owner, "", "CVN")
	assert.ErrorIs(t, err, ErrInvalidToken)

	deployments, err := l.Deployments(ctx)
	require.NoError(t, err)
	assert.Empty(t, deployments)

	rejected := store.OutcomeRejected
	audit, err := s.ListAudit(ctx, store.AuditFilter{Outcome: &rejected})
	require.NoError(t, err)
	assert.Len(t, audit, 2)
}

func TestUnknownDeployment(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Authorize(ctx, "missing", owner, alice)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = l.Mint(ctx, "missing", owner, alice, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = l.Status("missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = l.AccessEvents(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGuardedCalls(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	id := deploy(t, l)

	_, err := l.Authorize(ctx, id, alice, bob)
	assert.ErrorIs(t, err, accesscontrol.ErrNotAdmin)

	ev, err := l.Authorize(ctx, id, owner, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ev.Seq)

	ok, err := l.IsAuthorized(id, alice)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = l.SetAdmin(ctx, id, owner, bob)
	require.NoError(t, err)

	_, err = l.Deauthorize(ctx, id, owner, alice)
	assert.ErrorIs(t, err, accesscontrol.ErrNotAdmin, "old admin lost the role")

	_, err = l.Deauthorize(ctx, id, bob, alice)
	require.NoError(t, err)

	st, err := l.Status(id)
	require.NoError(t, err)
	assert.Equal(t, bob, st.Admin)
	assert.Equal(t, 4, st.AccessEvents)
}

func TestTokenCalls(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	id := deploy(t, l)

	_, err := l.Mint(ctx, id, alice, alice, 10)
	assert.ErrorIs(t, err, accesscontrol.ErrNotAuthorized)

	_, err = l.Authorize(ctx, id, owner, alice)
	require.NoError(t, err)
	_, err = l.Mint(ctx, id, alice, alice, 100)
	require.NoError(t, err)

	ev, err := l.Transfer(ctx, id, alice, bob, 50)
	require.NoError(t, err)
	assert.Equal(t, token.TransferEvent{Seq: 2, Caller: alice, From: alice, To: bob, Amount: 50}, ev)

	_, err = l.Transfer(ctx, id, bob, alice, 51)
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)

	balance, err := l.BalanceOf(id, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), balance)

	st, err := l.Status(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), st.TotalSupply)
	assert.Equal(t, 2, st.TokenEvents)
}

func TestCommit_RollsBackOnStoreFailure(t *testing.T) {
	l, s, b := newTestLedger(t)
	ctx := context.Background()
	id := deploy(t, l)
	_, err := l.Mint(ctx, id, owner, alice, 10)
	require.NoError(t, err)

	ch, _ := b.Subscribe(t.Context(), id)
	s.FailAppends = errors.New("disk full")

	_, err = l.Authorize(ctx, id, owner, bob)
	assert.ErrorContains(t, err, "disk full")
	ok, err := l.IsAuthorized(id, bob)
	require.NoError(t, err)
	assert.False(t, ok, "authorization must be rolled back")

	_, err = l.SetAdmin(ctx, id, owner, alice)
	assert.Error(t, err)
	admin, _ := l.Admin(id)
	assert.Equal(t, owner, admin)

	_, err = l.Transfer(ctx, id, alice, bob, 4)
	assert.Error(t, err)
	balance, _ := l.BalanceOf(id, alice)
	assert.Equal(t, uint64(10), balance)

	st, err := l.Status(id)
	require.NoError(t, err)
	assert.Equal(t, 1, st.AccessEvents)
	assert.Equal(t, 1, st.TokenEvents)

	select {
	case n := <-ch:
		t.Fatalf("rolled back call was published: %s", n.Kind())
	case <-time.After(50 * time.Millisecond):
	}

	// once the store recovers, sequence numbers carry on without gaps
	s.FailAppends = nil
	ev, err := l.Authorize(ctx, id, owner, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ev.Seq)
}

func TestCommit_PublishesNotifications(t *testing.T) {
	l, _, b := newTestLedger(t)
	ctx := context.Background()
	id := deploy(t, l)

	ch, _ := b.Subscribe(t.Context(), id)

	_, err := l.Authorize(ctx, id, owner, alice)
	require.NoError(t, err)
	_, err = l.Mint(ctx, id, owner, alice, 7)
	require.NoError(t, err)
	_, err = l.Authorize(ctx, id, alice, bob) // rejected, not published
	require.Error(t, err)

	first := <-ch
	require.NotNil(t, first.Access)
	assert.Equal(t, alice, first.Access.Subject)
	assert.True(t, first.Access.Status)

	second := <-ch
	require.NotNil(t, second.Transfer)
	assert.Equal(t, uint64(7), second.Transfer.Amount)

	select {
	case n := <-ch:
		t.Fatalf("unexpected notification %s", n.Kind())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAudit(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	id := deploy(t, l)

	_, _ = l.Authorize(ctx, id, owner, alice)
	_, _ = l.Authorize(ctx, id, bob, bob)
	_, _ = l.Mint(ctx, id, alice, bob, 3)

	entries, err := l.Audit(ctx, id, store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// newest first
	assert.Equal(t, store.AuditMint, entries[0].Action)
	assert.Equal(t, bob.Hex()+":3", entries[0].Target)
	assert.Equal(t, store.OutcomeAccepted, entries[0].Outcome)

	assert.Equal(t, store.OutcomeRejected, entries[1].Outcome)
	assert.Equal(t, bob, entries[1].Caller)
	assert.Equal(t, accesscontrol.ErrNotAdmin.Error(), entries[1].Error)

	assert.Equal(t, store.AuditDeploy, entries[3].Action)
}

func TestDeployments_AreIndependent(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	one := deploy(t, l)
	two := deploy(t, l)

	_, err := l.Authorize(ctx, one, owner, alice)
	require.NoError(t, err)

	ok, err := l.IsAuthorized(two, alice)
	require.NoError(t, err)
	assert.False(t, ok)
}

// stallingStore fails event appends, running read on another goroutine while
// the commit is still in flight.
type stallingStore struct {
	*store.MockStore
	read func()
}

func (s *stallingStore) AppendAccessEvents(ctx context.Context, id string, events []accesscontrol.Event, at time.Time) error {
	s.stall()
	return errors.New("disk full")
}

func (s *stallingStore) AppendTokenEvents(ctx context.Context, id string, events []token.TransferEvent, at time.Time) error {
	s.stall()
	return errors.New("disk full")
}

// stall gives the reader a chance to run before the append returns. A reader
// blocked on the commit finishes only after the rollback.
func (s *stallingStore) stall() {
	done := make(chan struct{})
	go func() {
		s.read()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCommit_ReadersNeverSeeRolledBackState(t *testing.T) {
	mock := store.NewMockStore()
	s := &stallingStore{MockStore: mock}
	l := New(s, nil, nil)
	ctx := context.Background()

	d, err := l.Deploy(ctx, owner, "Coven Token", "CVN")
	require.NoError(t, err)
	id := d.ID

	type observed struct {
		authorized bool
		admin      identity.Identity
		balance    uint64
		supply     uint64
	}
	seen := make(chan observed, 4)
	s.read = func() {
		var o observed
		o.authorized, _ = l.IsAuthorized(id, bob)
		o.admin, _ = l.Admin(id)
		o.balance, _ = l.BalanceOf(id, alice)
		st, _ := l.Status(id)
		o.supply = st.TotalSupply
		seen <- o
	}

	_, err = l.Authorize(ctx, id, owner, bob)
	require.ErrorContains(t, err, "disk full")
	_, err = l.SetAdmin(ctx, id, owner, alice)
	require.ErrorContains(t, err, "disk full")
	_, err = l.Mint(ctx, id, owner, alice, 25)
	require.ErrorContains(t, err, "disk full")

	committed := observed{admin: owner}
	for range 3 {
		select {
		case o := <-seen:
			assert.Equal(t, committed, o, "reader saw a change the store rejected")
		case <-time.After(time.Second):
			t.Fatal("reader never finished")
		}
	}
}
