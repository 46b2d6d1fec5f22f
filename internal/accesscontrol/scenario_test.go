// ABOUTME: End-to-end scenarios for AccessControl over several calls
// ABOUTME: Transfer chains, authorization persistence and exact notification sequences

package accesscontrol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-acl/internal/identity"
)

// assertSingleAdmin checks that exactly one of the known identities is admin
// and that the admin is never Null.
func assertSingleAdmin(t *testing.T, a *AccessControl, known ...identity.Identity) {
	t.Helper()

	require.False(t, a.Admin().IsNull())
	var admins int
	for _, id := range known {
		if a.IsAdmin(id) {
			admins++
		}
	}
	assert.Equal(t, 1, admins)
	assert.False(t, a.IsAdmin(identity.Null))
}

func TestScenario_Bootstrap(t *testing.T) {
	a, err := New(owner)
	require.NoError(t, err)

	assert.Equal(t, owner, a.Admin())
	assert.Equal(t, []Event{{Seq: 1, Kind: KindAdminChanged, Caller: owner, Previous: identity.Null, Current: owner}}, a.Events())
	assertSingleAdmin(t, a, owner, alice, bob, carol)
}

func TestScenario_TransferChain(t *testing.T) {
	a := newTestAccess(t)

	_, err := a.SetAdmin(owner, alice)
	require.NoError(t, err)
	_, err = a.SetAdmin(alice, bob)
	require.NoError(t, err)
	_, err = a.SetAdmin(bob, carol)
	require.NoError(t, err)

	assertSingleAdmin(t, a, owner, alice, bob, carol)
	assert.Equal(t, carol, a.Admin())

	for _, former := range []identity.Identity{owner, alice, bob} {
		_, err := a.SetAdmin(former, former)
		assert.ErrorIs(t, err, ErrNotAdmin)
		_, err = a.Authorize(former, former)
		assert.ErrorIs(t, err, ErrNotAdmin)
		_, err = a.Deauthorize(former, carol)
		assert.ErrorIs(t, err, ErrNotAdmin)
	}

	_, err = a.Authorize(carol, alice)
	require.NoError(t, err)
	_, err = a.Deauthorize(carol, alice)
	require.NoError(t, err)
	_, err = a.SetAdmin(carol, owner)
	require.NoError(t, err)

	assertSingleAdmin(t, a, owner, alice, bob, carol)
	assert.Equal(t, owner, a.Admin())

	var transfers [][2]identity.Identity
	for _, e := range a.Events() {
		if e.Kind == KindAdminChanged {
			transfers = append(transfers, [2]identity.Identity{e.Previous, e.Current})
		}
	}
	assert.Equal(t, [][2]identity.Identity{
		{identity.Null, owner},
		{owner, alice},
		{alice, bob},
		{bob, carol},
		{carol, owner},
	}, transfers)
}

func TestScenario_AuthorizationSurvivesAdminChange(t *testing.T) {
	a := newTestAccess(t)

	_, err := a.Authorize(owner, alice)
	require.NoError(t, err)
	_, err = a.SetAdmin(owner, bob)
	require.NoError(t, err)

	assert.True(t, a.IsAuthorized(alice), "authorization is not scoped to the admin that granted it")

	// the new admin can revoke a grant made by the previous admin
	_, err = a.Deauthorize(bob, alice)
	require.NoError(t, err)
	assert.False(t, a.IsAuthorized(alice))
}

func TestScenario_FormerAdminKeepsAuthorization(t *testing.T) {
	a := newTestAccess(t)

	_, err := a.Authorize(owner, owner)
	require.NoError(t, err)
	_, err = a.SetAdmin(owner, alice)
	require.NoError(t, err)

	assert.True(t, a.IsAuthorized(owner))
	assert.False(t, a.IsAdmin(owner))
	assert.NoError(t, RequireAuthorized(a, owner))
	assert.ErrorIs(t, RequireAdmin(a, owner), ErrNotAdmin)
}

func TestScenario_AuthorizeDeauthorizeReauthorize(t *testing.T) {
	a := newTestAccess(t)

	_, err := a.Authorize(owner, alice)
	require.NoError(t, err)
	assert.True(t, a.IsAuthorized(alice))

	_, err = a.Deauthorize(owner, alice)
	require.NoError(t, err)
	assert.False(t, a.IsAuthorized(alice))

	_, err = a.Authorize(owner, alice)
	require.NoError(t, err)
	assert.True(t, a.IsAuthorized(alice))

	events := a.Events()
	require.Len(t, events, 4)
	assert.Equal(t, []Event{
		{Seq: 2, Kind: KindAuthorizationChanged, Caller: owner, Subject: alice, Status: true},
		{Seq: 3, Kind: KindAuthorizationChanged, Caller: owner, Subject: alice, Status: false},
		{Seq: 4, Kind: KindAuthorizationChanged, Caller: owner, Subject: alice, Status: true},
	}, events[1:])
}
