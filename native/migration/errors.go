package migration

import (
	"errors"

	"migrator/native/common"
)

// MaxBatchSize bounds every batch operation accepted by the engines.
const MaxBatchSize = 200

// Gate errors surface from the shared safety controls.
var (
	ErrPaused    = common.ErrPaused
	ErrReentrant = common.ErrReentrant
)

// Construction errors. An engine that fails any of these checks is never
// instantiated.
var (
	ErrZeroAddress   = errors.New("migration: zero address")
	ErrNilLedger     = errors.New("migration: ledger not configured")
	ErrSameLedger    = errors.New("migration: old and new ledgers must differ")
	ErrNilSink       = errors.New("migration: sink not configured")
	ErrSinkHandshake = errors.New("migration: sink failed burn-sink handshake")
)

// Authorization and precondition errors.
var (
	ErrNotAdministrator       = errors.New("migration: caller is not the administrator")
	ErrZeroAmount             = errors.New("migration: zero amount")
	ErrNilTokenID             = errors.New("migration: nil token id")
	ErrEmptyBatch             = errors.New("migration: empty batch")
	ErrBatchSizeExceeded      = errors.New("migration: batch size exceeded")
	ErrBatchLengthMismatch    = errors.New("migration: batch length mismatch")
	ErrNotOwner               = errors.New("migration: caller does not own token")
	ErrInsufficientOldBalance = errors.New("migration: insufficient old-asset balance")
	ErrMissingApproval        = errors.New("migration: engine lacks transfer approval")
	ErrNewNotPreloaded        = errors.New("migration: new asset not preloaded in escrow")
)

// Invariant violations indicate a misbehaving or malicious ledger. They abort
// the entire call; no compensation is attempted.
var (
	ErrOldTransferInvariant = errors.New("migration: old-asset leg moved unexpected quantity")
	ErrNewTransferInvariant = errors.New("migration: new-asset leg moved unexpected quantity")
)

// Recovery errors.
var (
	ErrCannotRecoverProtectedAsset = errors.New("migration: cannot recover managed asset")
)
