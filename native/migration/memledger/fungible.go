package memledger

import (
	"fmt"
	"math/big"

	"migrator/native/migration"
)

// FungibleToken is an amount-based ledger with per-spender allowances.
type FungibleToken struct {
	address    [20]byte
	balances   map[[20]byte]*big.Int
	allowances map[[20]byte]map[[20]byte]*big.Int

	// Optional misbehaviour: skim feeBps of every transfer from the
	// recipient to the collector, modelling fee-on-transfer ledgers.
	feeBps       uint32
	feeCollector [20]byte

	// Optional misbehaviour: burn an extra burnBps of every transfer from
	// the sender, modelling deflationary ledgers.
	burnBps uint32
}

type fungibleState struct {
	balances   map[[20]byte]*big.Int
	allowances map[[20]byte]map[[20]byte]*big.Int
}

// NewFungibleToken returns an empty fungible ledger with the given identity.
func NewFungibleToken(address [20]byte) *FungibleToken {
	return &FungibleToken{
		address:    address,
		balances:   make(map[[20]byte]*big.Int),
		allowances: make(map[[20]byte]map[[20]byte]*big.Int),
	}
}

// Address returns the ledger's external identity.
func (t *FungibleToken) Address() [20]byte { return t.address }

// Mint credits amount to owner.
func (t *FungibleToken) Mint(owner [20]byte, amount *big.Int) {
	t.balances[owner] = new(big.Int).Add(t.balanceOf(owner), amount)
}

// Approve grants spender an allowance over owner's balance.
func (t *FungibleToken) Approve(owner, spender [20]byte, amount *big.Int) {
	inner, ok := t.allowances[owner]
	if !ok {
		inner = make(map[[20]byte]*big.Int)
		t.allowances[owner] = inner
	}
	inner[spender] = new(big.Int).Set(amount)
}

// SetTransferFee makes the ledger skim feeBps of every transfer from the
// recipient, exercising the engines' transfer-invariant checks.
func (t *FungibleToken) SetTransferFee(feeBps uint32, collector [20]byte) {
	t.feeBps = feeBps
	t.feeCollector = collector
}

// SetSenderBurn makes the ledger burn an extra burnBps of every transfer
// from the sender, exercising the engines' transfer-invariant checks.
func (t *FungibleToken) SetSenderBurn(burnBps uint32) {
	t.burnBps = burnBps
}

// BalanceOf reads a balance directly, outside any handle.
func (t *FungibleToken) BalanceOf(owner [20]byte) *big.Int {
	return new(big.Int).Set(t.balanceOf(owner))
}

// Handle returns a ledger capability acting on behalf of operator: Transfer
// sends from the operator's balance and TransferFrom spends the operator's
// allowance.
func (t *FungibleToken) Handle(operator [20]byte) migration.FungibleLedger {
	return &fungibleHandle{token: t, operator: operator}
}

// Ref binds a handle for operator together with the ledger identity.
func (t *FungibleToken) Ref(operator [20]byte) migration.FungibleToken {
	return migration.FungibleToken{Address: t.address, Ledger: t.Handle(operator)}
}

func (t *FungibleToken) balanceOf(owner [20]byte) *big.Int {
	if balance, ok := t.balances[owner]; ok {
		return balance
	}
	return big.NewInt(0)
}

func (t *FungibleToken) allowance(owner, spender [20]byte) *big.Int {
	if inner, ok := t.allowances[owner]; ok {
		if allowance, ok := inner[spender]; ok {
			return allowance
		}
	}
	return big.NewInt(0)
}

func (t *FungibleToken) move(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("memledger: invalid amount")
	}
	balance := t.balanceOf(from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("memledger: insufficient balance")
	}
	t.balances[from] = new(big.Int).Sub(balance, amount)
	t.balances[to] = new(big.Int).Add(t.balanceOf(to), amount)
	if t.feeBps > 0 {
		fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(t.feeBps)))
		fee.Div(fee, big.NewInt(10_000))
		if fee.Sign() > 0 {
			t.balances[to] = new(big.Int).Sub(t.balanceOf(to), fee)
			t.balances[t.feeCollector] = new(big.Int).Add(t.balanceOf(t.feeCollector), fee)
		}
	}
	if t.burnBps > 0 {
		burn := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(t.burnBps)))
		burn.Div(burn, big.NewInt(10_000))
		if burn.Sign() > 0 && t.balanceOf(from).Cmp(burn) >= 0 {
			t.balances[from] = new(big.Int).Sub(t.balanceOf(from), burn)
		}
	}
	return nil
}

func (t *FungibleToken) snapshot() fungibleState {
	state := fungibleState{
		balances:   copyBalances(t.balances),
		allowances: make(map[[20]byte]map[[20]byte]*big.Int, len(t.allowances)),
	}
	for owner, inner := range t.allowances {
		state.allowances[owner] = copyBalances(inner)
	}
	return state
}

func (t *FungibleToken) restore(state fungibleState) {
	t.balances = copyBalances(state.balances)
	t.allowances = make(map[[20]byte]map[[20]byte]*big.Int, len(state.allowances))
	for owner, inner := range state.allowances {
		t.allowances[owner] = copyBalances(inner)
	}
}

type fungibleHandle struct {
	token    *FungibleToken
	operator [20]byte
}

func (h *fungibleHandle) BalanceOf(owner [20]byte) (*big.Int, error) {
	return h.token.BalanceOf(owner), nil
}

func (h *fungibleHandle) Allowance(owner, spender [20]byte) (*big.Int, error) {
	return new(big.Int).Set(h.token.allowance(owner, spender)), nil
}

func (h *fungibleHandle) TransferFrom(from, to [20]byte, amount *big.Int) error {
	if h.operator != from {
		allowance := h.token.allowance(from, h.operator)
		if allowance.Cmp(amount) < 0 {
			return fmt.Errorf("memledger: allowance exceeded")
		}
		h.token.allowances[from][h.operator] = new(big.Int).Sub(allowance, amount)
	}
	return h.token.move(from, to, amount)
}

func (h *fungibleHandle) Transfer(to [20]byte, amount *big.Int) error {
	return h.token.move(h.operator, to, amount)
}
