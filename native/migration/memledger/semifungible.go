package memledger

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"migrator/native/migration"
)

// SemiFungibleToken is an id+amount ledger with blanket operator approvals.
type SemiFungibleToken struct {
	address   [20]byte
	balances  map[string]map[[20]byte]*big.Int
	operators map[[20]byte]map[[20]byte]bool
}

type semiFungibleState struct {
	balances  map[string]map[[20]byte]*big.Int
	operators map[[20]byte]map[[20]byte]bool
}

// NewSemiFungibleToken returns an empty semi-fungible ledger with the given
// identity.
func NewSemiFungibleToken(address [20]byte) *SemiFungibleToken {
	return &SemiFungibleToken{
		address:   address,
		balances:  make(map[string]map[[20]byte]*big.Int),
		operators: make(map[[20]byte]map[[20]byte]bool),
	}
}

// Address returns the ledger's external identity.
func (t *SemiFungibleToken) Address() [20]byte { return t.address }

// Mint credits amount of id to owner.
func (t *SemiFungibleToken) Mint(owner [20]byte, id, amount *big.Int) {
	key := id.String()
	inner, ok := t.balances[key]
	if !ok {
		inner = make(map[[20]byte]*big.Int)
		t.balances[key] = inner
	}
	inner[owner] = new(big.Int).Add(t.balanceOf(owner, id), amount)
}

// SetApprovalForAll grants or revokes a blanket operator approval.
func (t *SemiFungibleToken) SetApprovalForAll(owner, operator [20]byte, approved bool) {
	inner, ok := t.operators[owner]
	if !ok {
		inner = make(map[[20]byte]bool)
		t.operators[owner] = inner
	}
	inner[operator] = approved
}

// BalanceOf reads a position directly, outside any handle.
func (t *SemiFungibleToken) BalanceOf(owner [20]byte, id *big.Int) *big.Int {
	return new(big.Int).Set(t.balanceOf(owner, id))
}

// Handle returns a ledger capability acting on behalf of operator.
func (t *SemiFungibleToken) Handle(operator [20]byte) migration.SemiFungibleLedger {
	return &semiFungibleHandle{token: t, operator: operator}
}

// Ref binds a handle for operator together with the ledger identity.
func (t *SemiFungibleToken) Ref(operator [20]byte) migration.SemiFungibleToken {
	return migration.SemiFungibleToken{Address: t.address, Ledger: t.Handle(operator)}
}

func (t *SemiFungibleToken) balanceOf(owner [20]byte, id *big.Int) *big.Int {
	if inner, ok := t.balances[id.String()]; ok {
		if balance, ok := inner[owner]; ok {
			return balance
		}
	}
	return big.NewInt(0)
}

func (t *SemiFungibleToken) move(from, to [20]byte, id, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("memledger: invalid amount")
	}
	balance := t.balanceOf(from, id)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("memledger: insufficient balance of id %s", id)
	}
	key := id.String()
	inner, ok := t.balances[key]
	if !ok {
		inner = make(map[[20]byte]*big.Int)
		t.balances[key] = inner
	}
	inner[from] = new(big.Int).Sub(balance, amount)
	inner[to] = new(big.Int).Add(t.balanceOf(to, id), amount)
	return nil
}

func (t *SemiFungibleToken) snapshot() semiFungibleState {
	state := semiFungibleState{
		balances:  make(map[string]map[[20]byte]*big.Int, len(t.balances)),
		operators: copyOperators(t.operators),
	}
	for id, inner := range t.balances {
		state.balances[id] = copyBalances(inner)
	}
	return state
}

func (t *SemiFungibleToken) restore(state semiFungibleState) {
	t.balances = make(map[string]map[[20]byte]*big.Int, len(state.balances))
	for id, inner := range state.balances {
		t.balances[id] = copyBalances(inner)
	}
	t.operators = copyOperators(state.operators)
}

type semiFungibleHandle struct {
	token    *SemiFungibleToken
	operator [20]byte
}

func (h *semiFungibleHandle) BalanceOf(owner [20]byte, id *big.Int) (*big.Int, error) {
	return h.token.BalanceOf(owner, id), nil
}

func (h *semiFungibleHandle) IsApprovedForAll(owner, operator [20]byte) (bool, error) {
	return h.token.operators[owner][operator], nil
}

func (h *semiFungibleHandle) SafeTransferFrom(from, to [20]byte, id, amount *big.Int) error {
	if err := h.authorize(from); err != nil {
		return err
	}
	return h.token.move(from, to, id, amount)
}

func (h *semiFungibleHandle) SafeBatchTransferFrom(from, to [20]byte, ids, amounts []*big.Int) error {
	if len(ids) != len(amounts) {
		return fmt.Errorf("memledger: ids and amounts length mismatch")
	}
	if err := h.authorize(from); err != nil {
		return err
	}
	for i, id := range ids {
		if err := h.token.move(from, to, id, amounts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (h *semiFungibleHandle) authorize(from [20]byte) error {
	if h.operator == from || h.token.operators[from][h.operator] {
		return nil
	}
	return fmt.Errorf("memledger: operator %s not approved", encodeAddr(h.operator))
}

func encodeAddr(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}
