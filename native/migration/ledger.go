package migration

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// The ledger contracts below are capability handles bound to the engine: a
// Transfer acts with the engine's custody account as sender, and a
// TransferFrom acts with the engine as the approved spender/operator. The
// engine never signs or impersonates anyone else.

// FungibleLedger is the amount-based ledger contract.
type FungibleLedger interface {
	BalanceOf(owner [20]byte) (*big.Int, error)
	Allowance(owner, spender [20]byte) (*big.Int, error)
	TransferFrom(from, to [20]byte, amount *big.Int) error
	Transfer(to [20]byte, amount *big.Int) error
}

// NonFungibleLedger is the unique-id ledger contract.
type NonFungibleLedger interface {
	OwnerOf(id *big.Int) ([20]byte, error)
	GetApproved(id *big.Int) ([20]byte, error)
	IsApprovedForAll(owner, operator [20]byte) (bool, error)
	SafeTransferFrom(from, to [20]byte, id *big.Int) error
}

// SemiFungibleLedger is the id+amount ledger contract.
type SemiFungibleLedger interface {
	BalanceOf(owner [20]byte, id *big.Int) (*big.Int, error)
	IsApprovedForAll(owner, operator [20]byte) (bool, error)
	SafeTransferFrom(from, to [20]byte, id, amount *big.Int) error
	SafeBatchTransferFrom(from, to [20]byte, ids, amounts []*big.Int) error
}

// BurnSink is the irreversible custody destination for old assets. It must
// answer the handshake with BurnSinkMagic and expose no path to move received
// assets back out.
type BurnSink interface {
	Address() [20]byte
	IsBurnSink() ([4]byte, error)
}

// FungibleToken binds a fungible ledger handle to its external identity.
type FungibleToken struct {
	Address [20]byte
	Ledger  FungibleLedger
}

// NonFungibleToken binds a non-fungible ledger handle to its external identity.
type NonFungibleToken struct {
	Address [20]byte
	Ledger  NonFungibleLedger
}

// SemiFungibleToken binds a semi-fungible ledger handle to its external identity.
type SemiFungibleToken struct {
	Address [20]byte
	Ledger  SemiFungibleLedger
}

// BurnSinkMagic is the reserved constant a genuine sink returns from the
// handshake. It is the first four bytes of the keccak256 digest of the
// handshake selector, so an arbitrary address cannot answer it by accident.
var BurnSinkMagic = computeBurnSinkMagic()

func computeBurnSinkMagic() [4]byte {
	digest := ethcrypto.Keccak256([]byte("isBurnSink()"))
	var magic [4]byte
	copy(magic[:], digest[:4])
	return magic
}

func isZeroAddress(addr [20]byte) bool {
	return addr == [20]byte{}
}
