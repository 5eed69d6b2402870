package migration_test

import (
	"errors"
	"math/big"
	"testing"

	"migrator/core/events"
	"migrator/native/migration"
	"migrator/native/migration/memledger"
)

type semiFungibleFixture struct {
	world    *memledger.World
	oldToken *memledger.SemiFungibleToken
	newToken *memledger.SemiFungibleToken
	engine   *migration.SemiFungibleEngine
	recorder *events.Recorder
}

func newSemiFungibleFixture(t *testing.T) *semiFungibleFixture {
	t.Helper()
	world := memledger.NewWorld()
	oldToken := world.NewSemiFungible(testAddress(0x05))
	newToken := world.NewSemiFungible(testAddress(0x06))

	engine, err := migration.NewSemiFungibleEngine(migration.SemiFungibleConfig{
		Old:           oldToken.Ref(custodian),
		New:           newToken.Ref(custodian),
		Sink:          memledger.NewSink(sinkAddr),
		Administrator: admin,
		Custodian:     custodian,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	recorder := &events.Recorder{}
	engine.SetEmitter(recorder)

	oldToken.Mint(caller, big.NewInt(1), big.NewInt(100))
	oldToken.SetApprovalForAll(caller, custodian, true)
	newToken.Mint(admin, big.NewInt(1), big.NewInt(100))
	newToken.SetApprovalForAll(admin, custodian, true)
	return &semiFungibleFixture{world: world, oldToken: oldToken, newToken: newToken, engine: engine, recorder: recorder}
}

func (f *semiFungibleFixture) preload(t *testing.T, id, amount int64) {
	t.Helper()
	if err := f.engine.DepositBatch(admin, []*big.Int{big.NewInt(id)}, []*big.Int{big.NewInt(amount)}); err != nil {
		t.Fatalf("deposit batch: %v", err)
	}
}

func TestSemiFungibleMigrateConservation(t *testing.T) {
	f := newSemiFungibleFixture(t)
	f.preload(t, 1, 60)

	if err := f.engine.Migrate(caller, big.NewInt(1), big.NewInt(25)); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	id := big.NewInt(1)
	if got := f.oldToken.BalanceOf(sinkAddr, id); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("sink old balance = %s, want 25", got)
	}
	if got := f.oldToken.BalanceOf(caller, id); got.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("caller old balance = %s, want 75", got)
	}
	if got := f.newToken.BalanceOf(caller, id); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("caller new balance = %s, want 25", got)
	}
	if got := f.newToken.BalanceOf(custodian, id); got.Cmp(big.NewInt(35)) != 0 {
		t.Fatalf("custody new balance = %s, want 35", got)
	}
	if got := countEvents(f.recorder, migration.EventTypeCompleted); got != 1 {
		t.Fatalf("completed events = %d, want 1", got)
	}
}

func TestSemiFungibleMigrateRejectsBadRequests(t *testing.T) {
	f := newSemiFungibleFixture(t)
	f.preload(t, 1, 50)

	if err := f.engine.Migrate(caller, nil, big.NewInt(5)); !errors.Is(err, migration.ErrNilTokenID) {
		t.Fatalf("expected ErrNilTokenID, got %v", err)
	}
	if err := f.engine.Migrate(caller, big.NewInt(1), big.NewInt(0)); !errors.Is(err, migration.ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	if err := f.engine.Migrate(caller, big.NewInt(1), big.NewInt(500)); !errors.Is(err, migration.ErrInsufficientOldBalance) {
		t.Fatalf("expected ErrInsufficientOldBalance, got %v", err)
	}
	if err := f.engine.Migrate(caller, big.NewInt(1), big.NewInt(80)); !errors.Is(err, migration.ErrNewNotPreloaded) {
		t.Fatalf("expected ErrNewNotPreloaded, got %v", err)
	}

	f.oldToken.SetApprovalForAll(caller, custodian, false)
	if err := f.engine.Migrate(caller, big.NewInt(1), big.NewInt(10)); !errors.Is(err, migration.ErrMissingApproval) {
		t.Fatalf("expected ErrMissingApproval, got %v", err)
	}
}

func TestSemiFungibleBatchAdminOps(t *testing.T) {
	f := newSemiFungibleFixture(t)

	ids := []*big.Int{big.NewInt(1)}
	amounts := []*big.Int{big.NewInt(40)}
	if err := f.engine.DepositBatch(stranger, ids, amounts); !errors.Is(err, migration.ErrNotAdministrator) {
		t.Fatalf("expected ErrNotAdministrator, got %v", err)
	}
	if err := f.engine.DepositBatch(admin, nil, nil); !errors.Is(err, migration.ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
	if err := f.engine.DepositBatch(admin, ids, nil); !errors.Is(err, migration.ErrBatchLengthMismatch) {
		t.Fatalf("expected ErrBatchLengthMismatch, got %v", err)
	}
	if err := f.engine.DepositBatch(admin, ids, []*big.Int{big.NewInt(0)}); !errors.Is(err, migration.ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}

	oversizedIDs := make([]*big.Int, migration.MaxBatchSize+1)
	oversizedAmounts := make([]*big.Int, migration.MaxBatchSize+1)
	for i := range oversizedIDs {
		oversizedIDs[i] = big.NewInt(int64(i + 1))
		oversizedAmounts[i] = big.NewInt(1)
	}
	if err := f.engine.DepositBatch(admin, oversizedIDs, oversizedAmounts); !errors.Is(err, migration.ErrBatchSizeExceeded) {
		t.Fatalf("expected ErrBatchSizeExceeded, got %v", err)
	}

	if err := f.engine.DepositBatch(admin, ids, amounts); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := f.newToken.BalanceOf(custodian, big.NewInt(1)); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("custody = %s, want 40", got)
	}

	if err := f.engine.WithdrawBatch(admin, ids, []*big.Int{big.NewInt(15)}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.newToken.BalanceOf(custodian, big.NewInt(1)); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("custody after withdraw = %s, want 25", got)
	}
	if got := f.newToken.BalanceOf(admin, big.NewInt(1)); got.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("administrator balance = %s, want 75", got)
	}
}

func TestSemiFungiblePauseGating(t *testing.T) {
	f := newSemiFungibleFixture(t)
	f.preload(t, 1, 50)

	if err := f.engine.Pause(admin); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := f.engine.Migrate(caller, big.NewInt(1), big.NewInt(5)); !errors.Is(err, migration.ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if err := f.engine.DepositBatch(admin, []*big.Int{big.NewInt(1)}, []*big.Int{big.NewInt(5)}); err != nil {
		t.Fatalf("deposit while paused: %v", err)
	}
}
