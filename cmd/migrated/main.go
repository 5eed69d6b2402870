package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"migrator/config"
	"migrator/core/events"
	"migrator/native/migration"
	"migrator/native/migration/memledger"
	"migrator/observability/logging"
	"migrator/rpc"
	"migrator/storage"
)

// Fixed identities of the local reference deployment. A production campaign
// would point the engines at real external ledgers instead.
var (
	custodianAddr = localAddress(0xC0)
	sinkAddr      = localAddress(0x51)
	demoCaller    = localAddress(0xCA)

	oldFunAddr = localAddress(0x01)
	newFunAddr = localAddress(0x02)
	oldNFTAddr = localAddress(0x03)
	newNFTAddr = localAddress(0x04)
	oldSFTAddr = localAddress(0x05)
	newSFTAddr = localAddress(0x06)
)

func localAddress(tag byte) [20]byte {
	var addr [20]byte
	addr[0] = 0x10
	addr[19] = tag
	return addr
}

func main() {
	configPath := flag.String("config", "migrated.toml", "path to the daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup("migrated", cfg.Env)

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "receipts"))
	if err != nil {
		logger.Error("open receipt store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	receipts := migration.NewReceiptLedger(db)

	admin := cfg.AdministratorAddress()
	world, engines, err := buildLocalDeployment(admin, logger, receipts)
	if err != nil {
		logger.Error("build engines", slog.String("error", err.Error()))
		os.Exit(1)
	}

	server := rpc.NewServer(engines, receipts, worldUnit{world}, worldResolver{world}, cfg.AdminToken, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("rpc listening", slog.String("address", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.String("error", err.Error()))
	}
}

// buildLocalDeployment wires the three engines over in-memory reference
// ledgers, pre-funding the administrator and a demo caller so every RPC can
// be exercised immediately.
func buildLocalDeployment(admin [20]byte, logger *slog.Logger, receipts *migration.ReceiptLedger) (*memledger.World, rpc.Engines, error) {
	world := memledger.NewWorld()
	sink := memledger.NewSink(sinkAddr)
	recorder := &events.Recorder{}

	oldFun := world.NewFungible(oldFunAddr)
	newFun := world.NewFungible(newFunAddr)
	oldNFT := world.NewNonFungible(oldNFTAddr)
	newNFT := world.NewNonFungible(newNFTAddr)
	oldSFT := world.NewSemiFungible(oldSFTAddr)
	newSFT := world.NewSemiFungible(newSFTAddr)

	supply := new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)
	oldFun.Mint(demoCaller, supply)
	oldFun.Approve(demoCaller, custodianAddr, supply)
	newFun.Mint(admin, supply)
	newFun.Approve(admin, custodianAddr, supply)
	for id := int64(1); id <= 10; id++ {
		if err := oldNFT.Mint(demoCaller, big.NewInt(id)); err != nil {
			return nil, rpc.Engines{}, err
		}
		if err := newNFT.Mint(admin, big.NewInt(id)); err != nil {
			return nil, rpc.Engines{}, err
		}
		oldSFT.Mint(demoCaller, big.NewInt(id), big.NewInt(1_000))
		newSFT.Mint(admin, big.NewInt(id), big.NewInt(1_000))
	}
	oldNFT.SetApprovalForAll(demoCaller, custodianAddr, true)
	newNFT.SetApprovalForAll(admin, custodianAddr, true)
	oldSFT.SetApprovalForAll(demoCaller, custodianAddr, true)
	newSFT.SetApprovalForAll(admin, custodianAddr, true)

	fungible, err := migration.NewFungibleEngine(migration.FungibleConfig{
		Old:           oldFun.Ref(custodianAddr),
		New:           newFun.Ref(custodianAddr),
		Sink:          sink,
		Administrator: admin,
		Custodian:     custodianAddr,
	})
	if err != nil {
		return nil, rpc.Engines{}, err
	}
	nonFungible, err := migration.NewNonFungibleEngine(migration.NonFungibleConfig{
		Old:           oldNFT.Ref(custodianAddr),
		New:           newNFT.Ref(custodianAddr),
		Sink:          sink,
		Administrator: admin,
		Custodian:     custodianAddr,
	})
	if err != nil {
		return nil, rpc.Engines{}, err
	}
	semiFungible, err := migration.NewSemiFungibleEngine(migration.SemiFungibleConfig{
		Old:           oldSFT.Ref(custodianAddr),
		New:           newSFT.Ref(custodianAddr),
		Sink:          sink,
		Administrator: admin,
		Custodian:     custodianAddr,
	})
	if err != nil {
		return nil, rpc.Engines{}, err
	}

	for _, e := range []interface {
		SetEmitter(events.Emitter)
		SetLogger(*slog.Logger)
		SetReceipts(*migration.ReceiptLedger)
		EmitDeployed()
	}{fungible, nonFungible, semiFungible} {
		e.SetEmitter(recorder)
		e.SetLogger(logger)
		e.SetReceipts(receipts)
		e.EmitDeployed()
	}

	logger.Info("local deployment ready",
		slog.String("administrator", migration.FormatAddress(admin)),
		slog.String("demoCaller", migration.FormatAddress(demoCaller)),
		slog.String("custodian", migration.FormatAddress(custodianAddr)),
		slog.String("sink", migration.FormatAddress(sinkAddr)),
	)
	return world, rpc.Engines{Fungible: fungible, NonFungible: nonFungible, SemiFungible: semiFungible}, nil
}

// worldUnit adapts the in-memory world to the RPC server's unit of work.
type worldUnit struct {
	world *memledger.World
}

func (u worldUnit) Begin() rpc.Rollback {
	snap := u.world.Snapshot()
	return func() { u.world.Revert(snap) }
}

// worldResolver looks up fungible ledgers for the recovery sweep.
type worldResolver struct {
	world *memledger.World
}

func (r worldResolver) FungibleTokenAt(address, operator [20]byte) (migration.FungibleToken, error) {
	token, ok := r.world.FungibleAt(address)
	if !ok {
		return migration.FungibleToken{}, fmt.Errorf("no fungible ledger at %s", migration.FormatAddress(address))
	}
	return token.Ref(operator), nil
}
