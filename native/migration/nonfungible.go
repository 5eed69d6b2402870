package migration

import (
	"fmt"
	"math/big"
)

// NonFungibleConfig fixes the identities of a unique-id migration campaign.
type NonFungibleConfig struct {
	Old           NonFungibleToken
	New           NonFungibleToken
	Sink          BurnSink
	Administrator [20]byte
	Custodian     [20]byte
}

// NonFungibleEngine swaps an old token id for the matching new token id,
// routing the old token into the sink.
type NonFungibleEngine struct {
	baseEngine
	oldLedger NonFungibleLedger
	newLedger NonFungibleLedger
}

// NewNonFungibleEngine validates the configuration, performs the sink
// handshake and returns a ready engine.
func NewNonFungibleEngine(cfg NonFungibleConfig) (*NonFungibleEngine, error) {
	if cfg.Old.Ledger == nil || cfg.New.Ledger == nil {
		return nil, ErrNilLedger
	}
	base, err := newBaseEngine(ClassNonFungible, cfg.Administrator, cfg.Custodian, cfg.Old.Address, cfg.New.Address, cfg.Sink)
	if err != nil {
		return nil, err
	}
	return &NonFungibleEngine{baseEngine: base, oldLedger: cfg.Old.Ledger, newLedger: cfg.New.Ledger}, nil
}

// EmitDeployed publishes the deployment event echoing the fixed identities.
func (e *NonFungibleEngine) EmitDeployed() {
	e.emit(NewDeployedEvent(e.class, e.oldAddress, e.newAddress, e.sinkAddress))
}

// DepositBatch pulls the listed new token ids from the administrator into
// engine custody. Works while paused.
func (e *NonFungibleEngine) DepositBatch(caller [20]byte, ids []*big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := checkIDBatch(ids); err != nil {
		return err
	}
	for _, id := range ids {
		if err := e.newLedger.SafeTransferFrom(e.administrator, e.custodian, id); err != nil {
			return fmt.Errorf("migration: escrow deposit id %s: %w", id, err)
		}
	}
	e.emit(NewEscrowDepositedEvent(e.class, caller, len(ids), nil))
	return nil
}

// WithdrawBatch moves the listed new token ids from engine custody back to
// the administrator. Works while paused.
func (e *NonFungibleEngine) WithdrawBatch(caller [20]byte, ids []*big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := checkIDBatch(ids); err != nil {
		return err
	}
	for _, id := range ids {
		if err := e.newLedger.SafeTransferFrom(e.custodian, e.administrator, id); err != nil {
			return fmt.Errorf("migration: escrow withdraw id %s: %w", id, err)
		}
	}
	e.emit(NewEscrowWithdrawnEvent(e.class, caller, len(ids), nil))
	return nil
}

// Recover sweeps an unrelated fungible balance back to the administrator.
func (e *NonFungibleEngine) Recover(caller [20]byte, token FungibleToken, amount *big.Int) error {
	return e.recoverToken(caller, token, amount)
}

// Migrate atomically swaps old token id for the matching new token id.
func (e *NonFungibleEngine) Migrate(caller [20]byte, id *big.Int) error {
	if err := e.gate(); err != nil {
		return err
	}
	defer e.guard.Exit()
	return e.migrateOne(caller, id)
}

// MigrateBatch migrates up to MaxBatchSize ids in request order. Any single
// element's failure aborts the whole batch; the host's unit of work discards
// the partial effects.
func (e *NonFungibleEngine) MigrateBatch(caller [20]byte, ids []*big.Int) error {
	if err := e.gate(); err != nil {
		return err
	}
	defer e.guard.Exit()

	if err := checkIDBatch(ids); err != nil {
		return err
	}
	for _, id := range ids {
		if err := e.migrateOne(caller, id); err != nil {
			return err
		}
	}
	return nil
}

func (e *NonFungibleEngine) migrateOne(caller [20]byte, id *big.Int) error {
	if id == nil {
		return ErrNilTokenID
	}

	owner, err := e.oldLedger.OwnerOf(id)
	if err != nil {
		return fmt.Errorf("migration: old owner query: %w", err)
	}
	if owner != caller {
		return ErrNotOwner
	}

	custodied, err := e.newLedger.OwnerOf(id)
	if err != nil {
		return fmt.Errorf("migration: escrow owner query: %w", err)
	}
	if custodied != e.custodian {
		return ErrNewNotPreloaded
	}

	approved, err := e.oldLedger.GetApproved(id)
	if err != nil {
		return fmt.Errorf("migration: approval query: %w", err)
	}
	if approved != e.custodian {
		operator, err := e.oldLedger.IsApprovedForAll(caller, e.custodian)
		if err != nil {
			return fmt.Errorf("migration: operator approval query: %w", err)
		}
		if !operator {
			return ErrMissingApproval
		}
	}

	// Old leg: caller -> sink, then assert the sink owns the id.
	if err := e.oldLedger.SafeTransferFrom(caller, e.sinkAddress, id); err != nil {
		return fmt.Errorf("migration: old-asset transfer: %w", err)
	}
	owner, err = e.oldLedger.OwnerOf(id)
	if err != nil {
		return fmt.Errorf("migration: old owner re-query: %w", err)
	}
	if owner != e.sinkAddress {
		return ErrOldTransferInvariant
	}

	// New leg: custody -> caller, then assert the caller owns the id.
	if err := e.newLedger.SafeTransferFrom(e.custodian, caller, id); err != nil {
		return fmt.Errorf("migration: new-asset transfer: %w", err)
	}
	owner, err = e.newLedger.OwnerOf(id)
	if err != nil {
		return fmt.Errorf("migration: new owner re-query: %w", err)
	}
	if owner != caller {
		return ErrNewTransferInvariant
	}

	e.emit(NewCompletedEvent(e.class, caller, id, nil))
	e.recordReceipt(caller, id, nil)
	e.logInfo("migration completed", "tokenId", id.String())
	return nil
}

func checkIDBatch(ids []*big.Int) error {
	if len(ids) == 0 {
		return ErrEmptyBatch
	}
	if len(ids) > MaxBatchSize {
		return ErrBatchSizeExceeded
	}
	for _, id := range ids {
		if id == nil {
			return ErrNilTokenID
		}
	}
	return nil
}
