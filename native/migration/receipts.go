package migration

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"migrator/storage"
)

var (
	receiptKeyPrefix = []byte("migration/receipt/")
	receiptHeadKey   = []byte("migration/receipt/head")
)

// Receipt is the persisted audit record of one completed migration. Ledger
// state remains the migration source of truth; receipts only serve audit and
// listing queries.
type Receipt struct {
	Sequence  uint64
	Class     string
	Caller    [20]byte
	TokenID   *big.Int
	Amount    *big.Int
	CreatedAt int64
}

// Copy returns a deep copy so callers cannot mutate stored pointers.
func (r *Receipt) Copy() *Receipt {
	if r == nil {
		return nil
	}
	clone := *r
	clone.TokenID = cloneBigInt(r.TokenID)
	clone.Amount = cloneBigInt(r.Amount)
	return &clone
}

// storedReceipt is the RLP wire form. Big integers travel as decimal strings
// so absent values stay distinguishable from zero.
type storedReceipt struct {
	Class     string
	Caller    [20]byte
	TokenID   string
	Amount    string
	CreatedAt uint64
}

// ReceiptLedger appends migration receipts to the key-value store under a
// monotonically increasing sequence.
type ReceiptLedger struct {
	mu    sync.Mutex
	store storage.Database
}

// NewReceiptLedger constructs a ledger bound to the provided storage backend.
func NewReceiptLedger(store storage.Database) *ReceiptLedger {
	return &ReceiptLedger{store: store}
}

// Append persists the receipt and returns its assigned sequence number.
func (l *ReceiptLedger) Append(receipt *Receipt) (uint64, error) {
	if l == nil || l.store == nil {
		return 0, fmt.Errorf("migration: receipt store not configured")
	}
	if receipt == nil {
		return 0, fmt.Errorf("migration: nil receipt")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	head, err := l.head()
	if err != nil {
		return 0, err
	}
	seq := head + 1
	stored := storedReceipt{
		Class:     receipt.Class,
		Caller:    receipt.Caller,
		CreatedAt: uint64(receipt.CreatedAt),
	}
	if receipt.TokenID != nil {
		stored.TokenID = receipt.TokenID.String()
	}
	if receipt.Amount != nil {
		stored.Amount = receipt.Amount.String()
	}
	encoded, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return 0, fmt.Errorf("migration: encode receipt: %w", err)
	}
	if err := l.store.Put(receiptKey(seq), encoded); err != nil {
		return 0, fmt.Errorf("migration: persist receipt: %w", err)
	}
	var headBuf [8]byte
	binary.BigEndian.PutUint64(headBuf[:], seq)
	if err := l.store.Put(receiptHeadKey, headBuf[:]); err != nil {
		return 0, fmt.Errorf("migration: persist receipt head: %w", err)
	}
	return seq, nil
}

// Head returns the sequence number of the most recent receipt, zero when none
// have been written.
func (l *ReceiptLedger) Head() (uint64, error) {
	if l == nil || l.store == nil {
		return 0, fmt.Errorf("migration: receipt store not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head()
}

// List returns up to limit receipts starting at sequence from (inclusive) in
// ascending order. A from of zero starts at the first receipt.
func (l *ReceiptLedger) List(from uint64, limit int) ([]*Receipt, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("migration: receipt store not configured")
	}
	if limit <= 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	head, err := l.head()
	if err != nil {
		return nil, err
	}
	if from == 0 {
		from = 1
	}
	out := make([]*Receipt, 0, limit)
	for seq := from; seq <= head && len(out) < limit; seq++ {
		raw, err := l.store.Get(receiptKey(seq))
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("migration: load receipt %d: %w", seq, err)
		}
		receipt, err := decodeReceipt(seq, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, receipt)
	}
	return out, nil
}

func (l *ReceiptLedger) head() (uint64, error) {
	raw, err := l.store.Get(receiptHeadKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("migration: load receipt head: %w", err)
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("migration: corrupt receipt head")
	}
	return binary.BigEndian.Uint64(raw), nil
}

func decodeReceipt(seq uint64, raw []byte) (*Receipt, error) {
	var stored storedReceipt
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("migration: decode receipt %d: %w", seq, err)
	}
	receipt := &Receipt{
		Sequence:  seq,
		Class:     stored.Class,
		Caller:    stored.Caller,
		CreatedAt: int64(stored.CreatedAt),
	}
	if stored.TokenID != "" {
		id, ok := new(big.Int).SetString(stored.TokenID, 10)
		if !ok {
			return nil, fmt.Errorf("migration: corrupt token id in receipt %d", seq)
		}
		receipt.TokenID = id
	}
	if stored.Amount != "" {
		amount, ok := new(big.Int).SetString(stored.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("migration: corrupt amount in receipt %d", seq)
		}
		receipt.Amount = amount
	}
	return receipt, nil
}

func receiptKey(seq uint64) []byte {
	buf := make([]byte, len(receiptKeyPrefix)+8)
	copy(buf, receiptKeyPrefix)
	binary.BigEndian.PutUint64(buf[len(receiptKeyPrefix):], seq)
	return buf
}
