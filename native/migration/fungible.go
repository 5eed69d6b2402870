package migration

import (
	"fmt"
	"math/big"
)

// FungibleConfig fixes the identities of an amount-based migration campaign.
type FungibleConfig struct {
	Old           FungibleToken
	New           FungibleToken
	Sink          BurnSink
	Administrator [20]byte
	Custodian     [20]byte
}

// FungibleEngine swaps an amount of the old fungible asset for the same
// amount of the new one, routing the old amount into the sink.
type FungibleEngine struct {
	baseEngine
	oldLedger FungibleLedger
	newLedger FungibleLedger
}

// NewFungibleEngine validates the configuration, performs the sink handshake
// and returns a ready engine. Attach an emitter with SetEmitter and call
// EmitDeployed to publish the deployment event.
func NewFungibleEngine(cfg FungibleConfig) (*FungibleEngine, error) {
	if cfg.Old.Ledger == nil || cfg.New.Ledger == nil {
		return nil, ErrNilLedger
	}
	base, err := newBaseEngine(ClassFungible, cfg.Administrator, cfg.Custodian, cfg.Old.Address, cfg.New.Address, cfg.Sink)
	if err != nil {
		return nil, err
	}
	return &FungibleEngine{baseEngine: base, oldLedger: cfg.Old.Ledger, newLedger: cfg.New.Ledger}, nil
}

// EmitDeployed publishes the deployment event echoing the fixed identities.
func (e *FungibleEngine) EmitDeployed() {
	e.emit(NewDeployedEvent(e.class, e.oldAddress, e.newAddress, e.sinkAddress))
}

// Deposit pulls a pre-approved amount of the new asset from the administrator
// into engine custody. Works while paused.
func (e *FungibleEngine) Deposit(caller [20]byte, amount *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if err := e.newLedger.TransferFrom(e.administrator, e.custodian, amount); err != nil {
		return fmt.Errorf("migration: escrow deposit: %w", err)
	}
	e.emit(NewEscrowDepositedEvent(e.class, caller, 0, amount))
	return nil
}

// Withdraw moves an amount of the new asset from engine custody back to the
// administrator. Works while paused.
func (e *FungibleEngine) Withdraw(caller [20]byte, amount *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if err := e.newLedger.Transfer(e.administrator, amount); err != nil {
		return fmt.Errorf("migration: escrow withdraw: %w", err)
	}
	e.emit(NewEscrowWithdrawnEvent(e.class, caller, 0, amount))
	return nil
}

// Recover sweeps an unrelated fungible balance back to the administrator.
func (e *FungibleEngine) Recover(caller [20]byte, token FungibleToken, amount *big.Int) error {
	return e.recoverToken(caller, token, amount)
}

// Migrate atomically swaps amount of the old asset for the same amount of the
// new asset. The old amount lands in the sink, the new amount in the caller.
func (e *FungibleEngine) Migrate(caller [20]byte, amount *big.Int) error {
	if err := e.gate(); err != nil {
		return err
	}
	defer e.guard.Exit()

	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}

	oldBalance, err := e.oldLedger.BalanceOf(caller)
	if err != nil {
		return fmt.Errorf("migration: old balance query: %w", err)
	}
	if oldBalance.Cmp(amount) < 0 {
		return ErrInsufficientOldBalance
	}

	// The allowance check runs before the escrow check: it is the cheaper
	// and likelier failure. Ordering carries no correctness weight.
	allowance, err := e.oldLedger.Allowance(caller, e.custodian)
	if err != nil {
		return fmt.Errorf("migration: allowance query: %w", err)
	}
	if allowance.Cmp(amount) < 0 {
		return ErrMissingApproval
	}

	escrow, err := e.newLedger.BalanceOf(e.custodian)
	if err != nil {
		return fmt.Errorf("migration: escrow query: %w", err)
	}
	if escrow.Cmp(amount) < 0 {
		return ErrNewNotPreloaded
	}

	// Old leg: caller -> sink, then assert the sink gained exactly amount.
	sinkBefore, err := e.oldLedger.BalanceOf(e.sinkAddress)
	if err != nil {
		return fmt.Errorf("migration: sink balance query: %w", err)
	}
	if err := e.oldLedger.TransferFrom(caller, e.sinkAddress, amount); err != nil {
		return fmt.Errorf("migration: old-asset transfer: %w", err)
	}
	sinkAfter, err := e.oldLedger.BalanceOf(e.sinkAddress)
	if err != nil {
		return fmt.Errorf("migration: sink balance re-query: %w", err)
	}
	if new(big.Int).Sub(sinkAfter, sinkBefore).Cmp(amount) != 0 {
		return ErrOldTransferInvariant
	}

	// New leg: custody -> caller, then assert custody shrank by exactly amount.
	custodyBefore, err := e.newLedger.BalanceOf(e.custodian)
	if err != nil {
		return fmt.Errorf("migration: custody balance query: %w", err)
	}
	if err := e.newLedger.Transfer(caller, amount); err != nil {
		return fmt.Errorf("migration: new-asset transfer: %w", err)
	}
	custodyAfter, err := e.newLedger.BalanceOf(e.custodian)
	if err != nil {
		return fmt.Errorf("migration: custody balance re-query: %w", err)
	}
	if new(big.Int).Sub(custodyBefore, custodyAfter).Cmp(amount) != 0 {
		return ErrNewTransferInvariant
	}

	e.emit(NewCompletedEvent(e.class, caller, nil, amount))
	e.recordReceipt(caller, nil, amount)
	e.logInfo("migration completed", "amount", amount.String())
	return nil
}
