package migration_test

import (
	"math/big"
	"testing"

	"migrator/native/migration"
	"migrator/storage"
)

func TestReceiptLedgerAppendAndList(t *testing.T) {
	ledger := migration.NewReceiptLedger(storage.NewMemDB())

	head, err := ledger.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head != 0 {
		t.Fatalf("fresh ledger head = %d, want 0", head)
	}

	seq, err := ledger.Append(&migration.Receipt{
		Class:     migration.ClassFungible,
		Caller:    caller,
		Amount:    big.NewInt(40),
		CreatedAt: 1_700_000_000,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if seq != 1 {
		t.Fatalf("first sequence = %d, want 1", seq)
	}

	seq, err = ledger.Append(&migration.Receipt{
		Class:     migration.ClassNonFungible,
		Caller:    caller,
		TokenID:   big.NewInt(2),
		CreatedAt: 1_700_000_100,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if seq != 2 {
		t.Fatalf("second sequence = %d, want 2", seq)
	}

	receipts, err := ledger.List(0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(receipts) != 2 {
		t.Fatalf("listed %d receipts, want 2", len(receipts))
	}

	first := receipts[0]
	if first.Class != migration.ClassFungible || first.TokenID != nil || first.Amount.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("unexpected first receipt: %+v", first)
	}
	second := receipts[1]
	if second.Class != migration.ClassNonFungible || second.Amount != nil || second.TokenID.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("unexpected second receipt: %+v", second)
	}
	if second.Caller != caller {
		t.Fatalf("caller did not survive the round trip")
	}
	if second.CreatedAt != 1_700_000_100 {
		t.Fatalf("createdAt = %d, want 1700000100", second.CreatedAt)
	}
}

func TestReceiptLedgerListWindow(t *testing.T) {
	ledger := migration.NewReceiptLedger(storage.NewMemDB())
	for i := int64(1); i <= 5; i++ {
		if _, err := ledger.Append(&migration.Receipt{Class: migration.ClassFungible, Caller: caller, Amount: big.NewInt(i)}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	receipts, err := ledger.List(3, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(receipts) != 2 {
		t.Fatalf("listed %d receipts, want 2", len(receipts))
	}
	if receipts[0].Sequence != 3 || receipts[1].Sequence != 4 {
		t.Fatalf("unexpected window: %d, %d", receipts[0].Sequence, receipts[1].Sequence)
	}
}

func TestEngineWritesReceipts(t *testing.T) {
	f := newFungibleFixture(t)
	ledger := migration.NewReceiptLedger(storage.NewMemDB())
	f.engine.SetReceipts(ledger)
	f.engine.SetNowFunc(func() int64 { return 42 })
	f.preload(t, 100)

	if err := f.engine.Migrate(caller, big.NewInt(7)); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	receipts, err := ledger.List(0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(receipts) != 1 {
		t.Fatalf("listed %d receipts, want 1", len(receipts))
	}
	got := receipts[0]
	if got.Class != migration.ClassFungible || got.Amount.Cmp(big.NewInt(7)) != 0 || got.CreatedAt != 42 {
		t.Fatalf("unexpected receipt: %+v", got)
	}
}
