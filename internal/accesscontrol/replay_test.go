// ABOUTME: Tests for snapshot/restore and replaying stored notification logs
// ABOUTME: Replay must reproduce state and reject logs no admin could have produced

package accesscontrol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-acl/internal/identity"
)

func TestSnapshotRestore(t *testing.T) {
	a := newTestAccess(t)
	_, err := a.Authorize(owner, alice)
	require.NoError(t, err)

	snap := a.Snapshot()

	_, err = a.SetAdmin(owner, bob)
	require.NoError(t, err)
	_, err = a.Deauthorize(bob, alice)
	require.NoError(t, err)
	_, err = a.Authorize(bob, carol)
	require.NoError(t, err)

	a.Restore(snap)

	assert.Equal(t, owner, a.Admin())
	assert.True(t, a.IsAuthorized(alice))
	assert.False(t, a.IsAuthorized(carol))
	assert.Len(t, a.Events(), 2)

	// sequence numbering continues from the restored log
	ev, err := a.Authorize(owner, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), ev.Seq)
}

func TestSnapshot_IsolatedFromLaterWrites(t *testing.T) {
	a := newTestAccess(t)
	snap := a.Snapshot()

	_, err := a.Authorize(owner, alice)
	require.NoError(t, err)

	a.Restore(snap)
	assert.False(t, a.IsAuthorized(alice))
}

func TestReplay_ReproducesState(t *testing.T) {
	a := newTestAccess(t)
	_, _ = a.Authorize(owner, alice)
	_, _ = a.Authorize(owner, bob)
	_, _ = a.SetAdmin(owner, carol)
	_, _ = a.Deauthorize(carol, bob)
	_, _ = a.Authorize(carol, bob)
	_, _ = a.Deauthorize(carol, bob)

	rebuilt, err := Replay(a.Events())
	require.NoError(t, err)

	assert.Equal(t, a.Admin(), rebuilt.Admin())
	assert.Equal(t, a.Events(), rebuilt.Events())
	for _, id := range []identity.Identity{owner, alice, bob, carol} {
		assert.Equal(t, a.IsAuthorized(id), rebuilt.IsAuthorized(id), id.String())
	}
}

func TestReplay_RejectsCorruptLogs(t *testing.T) {
	a := newTestAccess(t)
	_, _ = a.Authorize(owner, alice)
	_, _ = a.SetAdmin(owner, bob)
	good := a.Events()

	tests := []struct {
		name   string
		mutate func([]Event) []Event
	}{
		{"empty", func([]Event) []Event { return nil }},
		{"no bootstrap", func(e []Event) []Event { return e[1:] }},
		{"bootstrap with previous admin", func(e []Event) []Event {
			e[0].Previous = alice
			return e
		}},
		{"bootstrap caller mismatch", func(e []Event) []Event {
			e[0].Caller = alice
			return e
		}},
		{"call by non-admin", func(e []Event) []Event {
			e[1].Caller = alice
			return e
		}},
		{"sequence gap", func(e []Event) []Event {
			e[2].Seq = 7
			return e
		}},
		{"transfer to null", func(e []Event) []Event {
			e[2].Current = identity.Null
			return e
		}},
		{"wrong previous admin", func(e []Event) []Event {
			e[2].Previous = carol
			return e
		}},
		{"unknown kind", func(e []Event) []Event {
			e[1].Kind = "mystery"
			return e
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := make([]Event, len(good))
			copy(events, good)

			_, err := Replay(tt.mutate(events))
			assert.ErrorIs(t, err, ErrCorruptLog)
		})
	}
}
