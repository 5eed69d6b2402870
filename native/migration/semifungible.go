package migration

import (
	"fmt"
	"math/big"
)

// SemiFungibleConfig fixes the identities of an id+amount migration campaign.
type SemiFungibleConfig struct {
	Old           SemiFungibleToken
	New           SemiFungibleToken
	Sink          BurnSink
	Administrator [20]byte
	Custodian     [20]byte
}

// SemiFungibleEngine swaps an (id, amount) position on the old ledger for the
// same position on the new ledger, routing the old position into the sink.
type SemiFungibleEngine struct {
	baseEngine
	oldLedger SemiFungibleLedger
	newLedger SemiFungibleLedger
}

// NewSemiFungibleEngine validates the configuration, performs the sink
// handshake and returns a ready engine.
func NewSemiFungibleEngine(cfg SemiFungibleConfig) (*SemiFungibleEngine, error) {
	if cfg.Old.Ledger == nil || cfg.New.Ledger == nil {
		return nil, ErrNilLedger
	}
	base, err := newBaseEngine(ClassSemiFungible, cfg.Administrator, cfg.Custodian, cfg.Old.Address, cfg.New.Address, cfg.Sink)
	if err != nil {
		return nil, err
	}
	return &SemiFungibleEngine{baseEngine: base, oldLedger: cfg.Old.Ledger, newLedger: cfg.New.Ledger}, nil
}

// EmitDeployed publishes the deployment event echoing the fixed identities.
func (e *SemiFungibleEngine) EmitDeployed() {
	e.emit(NewDeployedEvent(e.class, e.oldAddress, e.newAddress, e.sinkAddress))
}

// DepositBatch pulls (id, amount) positions of the new asset from the
// administrator into engine custody in one batch transfer. Works while paused.
func (e *SemiFungibleEngine) DepositBatch(caller [20]byte, ids, amounts []*big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := checkPairBatch(ids, amounts); err != nil {
		return err
	}
	if err := e.newLedger.SafeBatchTransferFrom(e.administrator, e.custodian, ids, amounts); err != nil {
		return fmt.Errorf("migration: escrow deposit: %w", err)
	}
	e.emit(NewEscrowDepositedEvent(e.class, caller, len(ids), nil))
	return nil
}

// WithdrawBatch moves (id, amount) positions of the new asset from engine
// custody back to the administrator. Works while paused.
func (e *SemiFungibleEngine) WithdrawBatch(caller [20]byte, ids, amounts []*big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := checkPairBatch(ids, amounts); err != nil {
		return err
	}
	if err := e.newLedger.SafeBatchTransferFrom(e.custodian, e.administrator, ids, amounts); err != nil {
		return fmt.Errorf("migration: escrow withdraw: %w", err)
	}
	e.emit(NewEscrowWithdrawnEvent(e.class, caller, len(ids), nil))
	return nil
}

// Recover sweeps an unrelated fungible balance back to the administrator.
func (e *SemiFungibleEngine) Recover(caller [20]byte, token FungibleToken, amount *big.Int) error {
	return e.recoverToken(caller, token, amount)
}

// Migrate atomically swaps amount units of old id for the same amount of the
// matching new id.
func (e *SemiFungibleEngine) Migrate(caller [20]byte, id, amount *big.Int) error {
	if err := e.gate(); err != nil {
		return err
	}
	defer e.guard.Exit()

	if id == nil {
		return ErrNilTokenID
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}

	oldBalance, err := e.oldLedger.BalanceOf(caller, id)
	if err != nil {
		return fmt.Errorf("migration: old balance query: %w", err)
	}
	if oldBalance.Cmp(amount) < 0 {
		return ErrInsufficientOldBalance
	}

	escrow, err := e.newLedger.BalanceOf(e.custodian, id)
	if err != nil {
		return fmt.Errorf("migration: escrow query: %w", err)
	}
	if escrow.Cmp(amount) < 0 {
		return ErrNewNotPreloaded
	}

	operator, err := e.oldLedger.IsApprovedForAll(caller, e.custodian)
	if err != nil {
		return fmt.Errorf("migration: operator approval query: %w", err)
	}
	if !operator {
		return ErrMissingApproval
	}

	// Old leg: caller -> sink, then assert the sink gained exactly amount.
	sinkBefore, err := e.oldLedger.BalanceOf(e.sinkAddress, id)
	if err != nil {
		return fmt.Errorf("migration: sink balance query: %w", err)
	}
	if err := e.oldLedger.SafeTransferFrom(caller, e.sinkAddress, id, amount); err != nil {
		return fmt.Errorf("migration: old-asset transfer: %w", err)
	}
	sinkAfter, err := e.oldLedger.BalanceOf(e.sinkAddress, id)
	if err != nil {
		return fmt.Errorf("migration: sink balance re-query: %w", err)
	}
	if new(big.Int).Sub(sinkAfter, sinkBefore).Cmp(amount) != 0 {
		return ErrOldTransferInvariant
	}

	// New leg: custody -> caller, then assert custody shrank by exactly amount.
	custodyBefore, err := e.newLedger.BalanceOf(e.custodian, id)
	if err != nil {
		return fmt.Errorf("migration: custody balance query: %w", err)
	}
	if err := e.newLedger.SafeTransferFrom(e.custodian, caller, id, amount); err != nil {
		return fmt.Errorf("migration: new-asset transfer: %w", err)
	}
	custodyAfter, err := e.newLedger.BalanceOf(e.custodian, id)
	if err != nil {
		return fmt.Errorf("migration: custody balance re-query: %w", err)
	}
	if new(big.Int).Sub(custodyBefore, custodyAfter).Cmp(amount) != 0 {
		return ErrNewTransferInvariant
	}

	e.emit(NewCompletedEvent(e.class, caller, id, amount))
	e.recordReceipt(caller, id, amount)
	e.logInfo("migration completed", "tokenId", id.String(), "amount", amount.String())
	return nil
}

func checkPairBatch(ids, amounts []*big.Int) error {
	if len(ids) == 0 {
		return ErrEmptyBatch
	}
	if len(ids) > MaxBatchSize {
		return ErrBatchSizeExceeded
	}
	if len(ids) != len(amounts) {
		return ErrBatchLengthMismatch
	}
	for i, id := range ids {
		if id == nil {
			return ErrNilTokenID
		}
		if amounts[i] == nil || amounts[i].Sign() <= 0 {
			return ErrZeroAmount
		}
	}
	return nil
}
