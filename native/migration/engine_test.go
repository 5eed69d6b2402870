package migration_test

import (
	"errors"
	"fmt"
	"testing"

	"migrator/native/migration"
	"migrator/native/migration/memledger"
)

// wrongMagicSink answers the handshake with a value that is not the reserved
// constant.
type wrongMagicSink struct{ addr [20]byte }

func (s wrongMagicSink) Address() [20]byte { return s.addr }

func (s wrongMagicSink) IsBurnSink() ([4]byte, error) {
	return [4]byte{0xDE, 0xAD, 0xBE, 0xEF}, nil
}

// failingSink models an address that cannot answer the handshake at all.
type failingSink struct{ addr [20]byte }

func (s failingSink) Address() [20]byte { return s.addr }

func (s failingSink) IsBurnSink() ([4]byte, error) {
	return [4]byte{}, fmt.Errorf("no such method")
}

func fungibleConfig(sink migration.BurnSink) migration.FungibleConfig {
	world := memledger.NewWorld()
	return migration.FungibleConfig{
		Old:           world.NewFungible(testAddress(0x01)).Ref(custodian),
		New:           world.NewFungible(testAddress(0x02)).Ref(custodian),
		Sink:          sink,
		Administrator: admin,
		Custodian:     custodian,
	}
}

func TestConstructionSinkHandshake(t *testing.T) {
	if _, err := migration.NewFungibleEngine(fungibleConfig(memledger.NewSink(sinkAddr))); err != nil {
		t.Fatalf("valid sink rejected: %v", err)
	}
	if _, err := migration.NewFungibleEngine(fungibleConfig(wrongMagicSink{addr: sinkAddr})); !errors.Is(err, migration.ErrSinkHandshake) {
		t.Fatalf("expected ErrSinkHandshake for wrong magic, got %v", err)
	}
	if _, err := migration.NewFungibleEngine(fungibleConfig(failingSink{addr: sinkAddr})); !errors.Is(err, migration.ErrSinkHandshake) {
		t.Fatalf("expected ErrSinkHandshake for failing call, got %v", err)
	}
	if _, err := migration.NewFungibleEngine(fungibleConfig(nil)); !errors.Is(err, migration.ErrNilSink) {
		t.Fatalf("expected ErrNilSink, got %v", err)
	}
	if _, err := migration.NewFungibleEngine(fungibleConfig(memledger.NewSink([20]byte{}))); !errors.Is(err, migration.ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress for zero sink, got %v", err)
	}
}

func TestConstructionIdentityChecks(t *testing.T) {
	world := memledger.NewWorld()
	token := world.NewFungible(testAddress(0x01))
	other := world.NewFungible(testAddress(0x02))
	sink := memledger.NewSink(sinkAddr)

	cfg := migration.FungibleConfig{
		Old:           token.Ref(custodian),
		New:           token.Ref(custodian),
		Sink:          sink,
		Administrator: admin,
		Custodian:     custodian,
	}
	if _, err := migration.NewFungibleEngine(cfg); !errors.Is(err, migration.ErrSameLedger) {
		t.Fatalf("expected ErrSameLedger, got %v", err)
	}

	cfg.New = other.Ref(custodian)
	cfg.Administrator = [20]byte{}
	if _, err := migration.NewFungibleEngine(cfg); !errors.Is(err, migration.ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress for zero administrator, got %v", err)
	}

	cfg.Administrator = admin
	cfg.Old.Ledger = nil
	if _, err := migration.NewFungibleEngine(cfg); !errors.Is(err, migration.ErrNilLedger) {
		t.Fatalf("expected ErrNilLedger, got %v", err)
	}
}

func TestBurnSinkMagicIsNotZero(t *testing.T) {
	if migration.BurnSinkMagic == ([4]byte{}) {
		t.Fatal("magic value must not be zero")
	}
}
