// ABOUTME: Balance ledger gated by an AccessControl authority handle
// ABOUTME: Mint requires admin or authorized caller; transfers are ordinary balance moves

package token

import (
	"errors"
	"sync"

	"github.com/2389/coven-acl/internal/accesscontrol"
	"github.com/2389/coven-acl/internal/identity"
)

var (
	// ErrInsufficientBalance is returned when a transfer exceeds the sender's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidAmount is returned for zero amounts and for mints that would
	// overflow the supply.
	ErrInvalidAmount = errors.New("invalid amount")
)

// TransferEvent records a balance movement. Mints have From == identity.Null.
type TransferEvent struct {
	Seq    uint64
	Caller identity.Identity
	From   identity.Identity
	To     identity.Identity
	Amount uint64
}

// IsMint reports whether the event created new supply.
func (e TransferEvent) IsMint() bool {
	return e.From.IsNull()
}

// Token is a fungible balance ledger. It never reads or writes access
// control state; it only asks its authority whether a caller may mint.
type Token struct {
	mu        sync.RWMutex
	name      string
	symbol    string
	authority accesscontrol.Authority
	balances  map[identity.Identity]uint64
	supply    uint64
	events    []TransferEvent
}

// New creates an empty token gated by authority.
func New(name, symbol string, authority accesscontrol.Authority) *Token {
	return &Token{
		name:      name,
		symbol:    symbol,
		authority: authority,
		balances:  make(map[identity.Identity]uint64),
	}
}

// Name returns the token name.
func (t *Token) Name() string { return t.name }

// Symbol returns the token ticker symbol.
func (t *Token) Symbol() string { return t.symbol }

// Mint creates amount new units for to. The caller must pass
// accesscontrol.RequireAuthorized.
func (t *Token) Mint(caller, to identity.Identity, amount uint64) (TransferEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := accesscontrol.RequireAuthorized(t.authority, caller); err != nil {
		return TransferEvent{}, err
	}
	if to.IsNull() {
		return TransferEvent{}, accesscontrol.ErrInvalidAddress
	}
	if err := t.checkMint(amount); err != nil {
		return TransferEvent{}, err
	}

	t.supply += amount
	t.balances[to] += amount
	return t.emit(TransferEvent{Caller: caller, From: identity.Null, To: to, Amount: amount}), nil
}

// Transfer moves amount from caller to to.
func (t *Token) Transfer(caller, to identity.Identity, amount uint64) (TransferEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if to.IsNull() {
		return TransferEvent{}, accesscontrol.ErrInvalidAddress
	}
	if amount == 0 {
		return TransferEvent{}, ErrInvalidAmount
	}
	if t.balances[caller] < amount {
		return TransferEvent{}, ErrInsufficientBalance
	}

	t.move(caller, to, amount)
	return t.emit(TransferEvent{Caller: caller, From: caller, To: to, Amount: amount}), nil
}

// BalanceOf returns the balance held by id.
func (t *Token) BalanceOf(id identity.Identity) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[id]
}

// TotalSupply returns the sum of all balances.
func (t *Token) TotalSupply() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply
}

// Events returns a copy of the transfer log.
func (t *Token) Events() []TransferEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TransferEvent, len(t.events))
	copy(out, t.events)
	return out
}

func (t *Token) checkMint(amount uint64) error {
	if amount == 0 || t.supply+amount < t.supply {
		return ErrInvalidAmount
	}
	return nil
}

func (t *Token) move(from, to identity.Identity, amount uint64) {
	t.balances[from] -= amount
	if t.balances[from] == 0 {
		delete(t.balances, from)
	}
	t.balances[to] += amount
}

func (t *Token) emit(e TransferEvent) TransferEvent {
	e.Seq = uint64(len(t.events)) + 1
	t.events = append(t.events, e)
	return e
}
