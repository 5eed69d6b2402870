package memledger

import (
	"fmt"
	"math/big"

	"migrator/native/migration"
)

// ReceiveHook observes an inbound token delivery to a registered address. The
// engine tests use it to model ledgers whose transfer callbacks attempt to
// re-enter the engine.
type ReceiveHook func(from, to [20]byte, id *big.Int)

// NonFungibleToken is a unique-id ledger with per-token and operator
// approvals.
type NonFungibleToken struct {
	address   [20]byte
	owners    map[string][20]byte
	approvals map[string][20]byte
	operators map[[20]byte]map[[20]byte]bool
	hooks     map[[20]byte]ReceiveHook
}

type nonFungibleState struct {
	owners    map[string][20]byte
	approvals map[string][20]byte
	operators map[[20]byte]map[[20]byte]bool
}

// NewNonFungibleToken returns an empty non-fungible ledger with the given
// identity.
func NewNonFungibleToken(address [20]byte) *NonFungibleToken {
	return &NonFungibleToken{
		address:   address,
		owners:    make(map[string][20]byte),
		approvals: make(map[string][20]byte),
		operators: make(map[[20]byte]map[[20]byte]bool),
		hooks:     make(map[[20]byte]ReceiveHook),
	}
}

// Address returns the ledger's external identity.
func (t *NonFungibleToken) Address() [20]byte { return t.address }

// Mint assigns a fresh token id to owner.
func (t *NonFungibleToken) Mint(owner [20]byte, id *big.Int) error {
	key := id.String()
	if _, ok := t.owners[key]; ok {
		return fmt.Errorf("memledger: token %s already minted", key)
	}
	t.owners[key] = owner
	return nil
}

// Approve grants a single-token approval.
func (t *NonFungibleToken) Approve(id *big.Int, approved [20]byte) {
	t.approvals[id.String()] = approved
}

// SetApprovalForAll grants or revokes a blanket operator approval.
func (t *NonFungibleToken) SetApprovalForAll(owner, operator [20]byte, approved bool) {
	inner, ok := t.operators[owner]
	if !ok {
		inner = make(map[[20]byte]bool)
		t.operators[owner] = inner
	}
	inner[operator] = approved
}

// SetReceiveHook registers a callback fired after any delivery to addr.
func (t *NonFungibleToken) SetReceiveHook(addr [20]byte, hook ReceiveHook) {
	t.hooks[addr] = hook
}

// Owner reads ownership directly, outside any handle.
func (t *NonFungibleToken) Owner(id *big.Int) ([20]byte, bool) {
	owner, ok := t.owners[id.String()]
	return owner, ok
}

// Handle returns a ledger capability acting on behalf of operator.
func (t *NonFungibleToken) Handle(operator [20]byte) migration.NonFungibleLedger {
	return &nonFungibleHandle{token: t, operator: operator}
}

// Ref binds a handle for operator together with the ledger identity.
func (t *NonFungibleToken) Ref(operator [20]byte) migration.NonFungibleToken {
	return migration.NonFungibleToken{Address: t.address, Ledger: t.Handle(operator)}
}

func (t *NonFungibleToken) snapshot() nonFungibleState {
	state := nonFungibleState{
		owners:    make(map[string][20]byte, len(t.owners)),
		approvals: make(map[string][20]byte, len(t.approvals)),
		operators: copyOperators(t.operators),
	}
	for id, owner := range t.owners {
		state.owners[id] = owner
	}
	for id, approved := range t.approvals {
		state.approvals[id] = approved
	}
	return state
}

func (t *NonFungibleToken) restore(state nonFungibleState) {
	t.owners = make(map[string][20]byte, len(state.owners))
	for id, owner := range state.owners {
		t.owners[id] = owner
	}
	t.approvals = make(map[string][20]byte, len(state.approvals))
	for id, approved := range state.approvals {
		t.approvals[id] = approved
	}
	t.operators = copyOperators(state.operators)
}

type nonFungibleHandle struct {
	token    *NonFungibleToken
	operator [20]byte
}

func (h *nonFungibleHandle) OwnerOf(id *big.Int) ([20]byte, error) {
	owner, ok := h.token.owners[id.String()]
	if !ok {
		return [20]byte{}, fmt.Errorf("memledger: token %s not minted", id)
	}
	return owner, nil
}

func (h *nonFungibleHandle) GetApproved(id *big.Int) ([20]byte, error) {
	return h.token.approvals[id.String()], nil
}

func (h *nonFungibleHandle) IsApprovedForAll(owner, operator [20]byte) (bool, error) {
	return h.token.operators[owner][operator], nil
}

func (h *nonFungibleHandle) SafeTransferFrom(from, to [20]byte, id *big.Int) error {
	key := id.String()
	owner, ok := h.token.owners[key]
	if !ok {
		return fmt.Errorf("memledger: token %s not minted", key)
	}
	if owner != from {
		return fmt.Errorf("memledger: %s does not own token %s", encodeAddr(from), key)
	}
	if h.operator != from && h.token.approvals[key] != h.operator && !h.token.operators[from][h.operator] {
		return fmt.Errorf("memledger: operator not approved for token %s", key)
	}
	h.token.owners[key] = to
	delete(h.token.approvals, key)
	if hook, ok := h.token.hooks[to]; ok && hook != nil {
		hook(from, to, id)
	}
	return nil
}
