// Package memledger provides in-memory reference implementations of the
// external ledger and sink contracts. The daemon's local mode, the examples
// and the engine tests run against it. The host environment serialises calls
// (see the engine's concurrency contract), so the tokens carry no locks of
// their own.
package memledger

import "math/big"

// World aggregates the tokens of one deployment and models the host's
// all-or-nothing unit of work: take a Snapshot before a mutating call and
// Revert to it when the call fails, leaving no partial state observable.
type World struct {
	fungibles     []*FungibleToken
	nonFungibles  []*NonFungibleToken
	semiFungibles []*SemiFungibleToken
}

// NewWorld returns an empty world.
func NewWorld() *World {
	return &World{}
}

// NewFungible creates and registers a fungible token ledger.
func (w *World) NewFungible(address [20]byte) *FungibleToken {
	t := NewFungibleToken(address)
	w.fungibles = append(w.fungibles, t)
	return t
}

// NewNonFungible creates and registers a non-fungible token ledger.
func (w *World) NewNonFungible(address [20]byte) *NonFungibleToken {
	t := NewNonFungibleToken(address)
	w.nonFungibles = append(w.nonFungibles, t)
	return t
}

// NewSemiFungible creates and registers a semi-fungible token ledger.
func (w *World) NewSemiFungible(address [20]byte) *SemiFungibleToken {
	t := NewSemiFungibleToken(address)
	w.semiFungibles = append(w.semiFungibles, t)
	return t
}

// FungibleAt returns the registered fungible token with the given identity.
func (w *World) FungibleAt(address [20]byte) (*FungibleToken, bool) {
	for _, t := range w.fungibles {
		if t.address == address {
			return t, true
		}
	}
	return nil, false
}

// Snapshot captures the full state of every registered token.
type Snapshot struct {
	fungibles     []fungibleState
	nonFungibles  []nonFungibleState
	semiFungibles []semiFungibleState
}

// Snapshot returns a deep copy of the world's current state.
func (w *World) Snapshot() *Snapshot {
	snap := &Snapshot{}
	for _, t := range w.fungibles {
		snap.fungibles = append(snap.fungibles, t.snapshot())
	}
	for _, t := range w.nonFungibles {
		snap.nonFungibles = append(snap.nonFungibles, t.snapshot())
	}
	for _, t := range w.semiFungibles {
		snap.semiFungibles = append(snap.semiFungibles, t.snapshot())
	}
	return snap
}

// Revert restores every registered token to the given snapshot. Tokens
// registered after the snapshot was taken are left untouched.
func (w *World) Revert(snap *Snapshot) {
	if snap == nil {
		return
	}
	for i, state := range snap.fungibles {
		if i < len(w.fungibles) {
			w.fungibles[i].restore(state)
		}
	}
	for i, state := range snap.nonFungibles {
		if i < len(w.nonFungibles) {
			w.nonFungibles[i].restore(state)
		}
	}
	for i, state := range snap.semiFungibles {
		if i < len(w.semiFungibles) {
			w.semiFungibles[i].restore(state)
		}
	}
}

func copyBalances(src map[[20]byte]*big.Int) map[[20]byte]*big.Int {
	dst := make(map[[20]byte]*big.Int, len(src))
	for addr, amount := range src {
		dst[addr] = new(big.Int).Set(amount)
	}
	return dst
}

func copyOperators(src map[[20]byte]map[[20]byte]bool) map[[20]byte]map[[20]byte]bool {
	dst := make(map[[20]byte]map[[20]byte]bool, len(src))
	for owner, ops := range src {
		inner := make(map[[20]byte]bool, len(ops))
		for op, ok := range ops {
			inner[op] = ok
		}
		dst[owner] = inner
	}
	return dst
}
