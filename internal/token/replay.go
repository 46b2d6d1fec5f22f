package token

import (
	"errors"
	"fmt"

	"github.com/2389/coven-acl/internal/accesscontrol"
	"github.com/2389/coven-acl/internal/identity"
)

// ErrCorruptLog is returned by Replay for transfer logs that do not balance.
var ErrCorruptLog = errors.New("corrupt transfer log")

// Snapshot is a point-in-time copy of a Token's balances.
type Snapshot struct {
	balances map[identity.Identity]uint64
	supply   uint64
	logLen   int
}

// Snapshot captures balances so a failed commit can be rolled back.
func (t *Token) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	balances := make(map[identity.Identity]uint64, len(t.balances))
	for id, v := range t.balances {
		balances[id] = v
	}
	return Snapshot{balances: balances, supply: t.supply, logLen: len(t.events)}
}

// Restore rolls balances back to s.
func (t *Token) Restore(s Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.balances = make(map[identity.Identity]uint64, len(s.balances))
	for id, v := range s.balances {
		t.balances[id] = v
	}
	t.supply = s.supply
	if s.logLen < len(t.events) {
		t.events = t.events[:s.logLen]
	}
}

// Replay rebuilds a Token from its transfer log. Mint permission was checked
// against the authority as it stood when each mint was committed, so replay
// re-checks only the arithmetic.
func Replay(name, symbol string, authority accesscontrol.Authority, events []TransferEvent) (*Token, error) {
	t := New(name, symbol, authority)

	for i, e := range events {
		if e.Seq != uint64(i)+1 {
			return nil, fmt.Errorf("%w: event %d out of sequence", ErrCorruptLog, e.Seq)
		}
		if e.To.IsNull() {
			return nil, fmt.Errorf("%w: event %d: transfer to null", ErrCorruptLog, e.Seq)
		}

		if e.IsMint() {
			if err := t.checkMint(e.Amount); err != nil {
				return nil, fmt.Errorf("%w: event %d: %v", ErrCorruptLog, e.Seq, err)
			}
			t.supply += e.Amount
			t.balances[e.To] += e.Amount
		} else {
			if e.Amount == 0 || t.balances[e.From] < e.Amount {
				return nil, fmt.Errorf("%w: event %d: %v", ErrCorruptLog, e.Seq, ErrInsufficientBalance)
			}
			t.move(e.From, e.To, e.Amount)
		}
		t.events = append(t.events, e)
	}
	return t, nil
}
