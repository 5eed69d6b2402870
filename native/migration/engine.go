package migration

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"migrator/core/events"
	"migrator/native/common"
)

// baseEngine carries the state and safety controls shared by the three asset
// class engines: the immutable identities fixed at construction, the single
// administrator, the pause flag and the reentrancy slot.
type baseEngine struct {
	class         string
	administrator [20]byte
	custodian     [20]byte
	oldAddress    [20]byte
	newAddress    [20]byte
	sinkAddress   [20]byte

	paused bool
	guard  common.CallGuard

	emitter  events.Emitter
	logger   *slog.Logger
	receipts *ReceiptLedger
	nowFn    func() int64
}

func newBaseEngine(class string, administrator, custodian, oldAddress, newAddress [20]byte, sink BurnSink) (baseEngine, error) {
	if isZeroAddress(administrator) || isZeroAddress(custodian) {
		return baseEngine{}, ErrZeroAddress
	}
	if isZeroAddress(oldAddress) || isZeroAddress(newAddress) {
		return baseEngine{}, ErrZeroAddress
	}
	if oldAddress == newAddress {
		return baseEngine{}, ErrSameLedger
	}
	sinkAddress, err := verifySink(sink)
	if err != nil {
		return baseEngine{}, err
	}
	return baseEngine{
		class:         class,
		administrator: administrator,
		custodian:     custodian,
		oldAddress:    oldAddress,
		newAddress:    newAddress,
		sinkAddress:   sinkAddress,
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
	}, nil
}

// verifySink performs the one-time trust bootstrap: the configured sink must
// answer the handshake with the reserved magic value. Any call failure or
// mismatch is fatal to construction; the handshake is never repeated at call
// time.
func verifySink(sink BurnSink) ([20]byte, error) {
	if sink == nil {
		return [20]byte{}, ErrNilSink
	}
	addr := sink.Address()
	if isZeroAddress(addr) {
		return [20]byte{}, ErrZeroAddress
	}
	magic, err := sink.IsBurnSink()
	if err != nil {
		return [20]byte{}, fmt.Errorf("%w: %v", ErrSinkHandshake, err)
	}
	if magic != BurnSinkMagic {
		return [20]byte{}, ErrSinkHandshake
	}
	return addr, nil
}

// Class reports the asset class this engine serves.
func (e *baseEngine) Class() string { return e.class }

// Administrator returns the current administrator identity.
func (e *baseEngine) Administrator() [20]byte { return e.administrator }

// Custodian returns the engine's custody account on both ledgers.
func (e *baseEngine) Custodian() [20]byte { return e.custodian }

// SinkAddress returns the verified sink identity.
func (e *baseEngine) SinkAddress() [20]byte { return e.sinkAddress }

// IsPaused reports whether the migration surface is halted. Satisfies
// common.PauseView.
func (e *baseEngine) IsPaused() bool { return e.paused }

// SetEmitter configures the event sink. Passing nil resets to a no-op.
func (e *baseEngine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger attaches a structured logger to the engine. Nil disables logging.
func (e *baseEngine) SetLogger(logger *slog.Logger) { e.logger = logger }

// SetReceipts attaches the persistent receipt ledger. Nil disables receipts.
func (e *baseEngine) SetReceipts(ledger *ReceiptLedger) { e.receipts = ledger }

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *baseEngine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *baseEngine) emit(evt events.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *baseEngine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *baseEngine) requireAdmin(caller [20]byte) error {
	if caller != e.administrator {
		return ErrNotAdministrator
	}
	return nil
}

// gate applies the shared safety controls for a migration entry point: the
// pause flag first, then the reentrancy slot. Callers must release the guard
// on every exit path.
func (e *baseEngine) gate() error {
	if err := common.Guard(e); err != nil {
		return err
	}
	return e.guard.Enter()
}

// Pause halts the migration surface. Administrative escrow operations and
// recovery remain available while paused. Idempotent.
func (e *baseEngine) Pause(caller [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if e.paused {
		return nil
	}
	e.paused = true
	e.emit(NewPausedEvent(e.class, caller))
	e.logInfo("engine paused", slog.String("caller", hex.EncodeToString(caller[:])))
	return nil
}

// Unpause resumes the migration surface. Idempotent.
func (e *baseEngine) Unpause(caller [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if !e.paused {
		return nil
	}
	e.paused = false
	e.emit(NewUnpausedEvent(e.class, caller))
	e.logInfo("engine unpaused", slog.String("caller", hex.EncodeToString(caller[:])))
	return nil
}

// TransferAdministration hands the administrator role to a new identity.
func (e *baseEngine) TransferAdministration(caller, next [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if isZeroAddress(next) {
		return ErrZeroAddress
	}
	e.administrator = next
	e.logInfo("administration transferred", slog.String("administrator", hex.EncodeToString(next[:])))
	return nil
}

// recoverToken sweeps an unrelated fungible balance accidentally sent to the
// engine's custody account back to the administrator. The two managed assets
// are never recoverable through this path.
func (e *baseEngine) recoverToken(caller [20]byte, token FungibleToken, amount *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if token.Ledger == nil {
		return ErrNilLedger
	}
	if token.Address == e.oldAddress || token.Address == e.newAddress {
		return ErrCannotRecoverProtectedAsset
	}
	if err := token.Ledger.Transfer(e.administrator, amount); err != nil {
		return fmt.Errorf("migration: recover transfer: %w", err)
	}
	e.emit(NewRecoveredEvent(e.class, caller, token.Address, amount))
	return nil
}

func (e *baseEngine) recordReceipt(caller [20]byte, id, amount *big.Int) {
	if e.receipts == nil {
		return
	}
	receipt := &Receipt{
		Class:     e.class,
		Caller:    caller,
		TokenID:   cloneBigInt(id),
		Amount:    cloneBigInt(amount),
		CreatedAt: e.now(),
	}
	if _, err := e.receipts.Append(receipt); err != nil {
		// The receipt ledger is an audit log, not the migration source of
		// truth. A persistence failure must not unwind a completed swap.
		e.logWarn("receipt append failed", slog.String("error", err.Error()))
	}
}

func (e *baseEngine) logInfo(msg string, attrs ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Info(msg, append([]any{slog.String("class", e.class)}, attrs...)...)
}

func (e *baseEngine) logWarn(msg string, attrs ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Warn(msg, append([]any{slog.String("class", e.class)}, attrs...)...)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
