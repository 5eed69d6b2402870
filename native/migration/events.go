package migration

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"migrator/core/events"
)

// Asset classes served by the engines.
const (
	ClassFungible     = "fungible"
	ClassNonFungible  = "nonfungible"
	ClassSemiFungible = "semifungible"
)

const (
	EventTypeDeployed        = "migration.deployed"
	EventTypeCompleted       = "migration.completed"
	EventTypeEscrowDeposited = "migration.escrow_deposited"
	EventTypeEscrowWithdrawn = "migration.escrow_withdrawn"
	EventTypeRecovered       = "migration.recovered"
	EventTypePaused          = "migration.paused"
	EventTypeUnpaused        = "migration.unpaused"
)

// NewDeployedEvent echoes the identities an engine was constructed with.
func NewDeployedEvent(class string, oldLedger, newLedger, sink [20]byte) events.Event {
	attrs := map[string]string{
		"class":     class,
		"oldLedger": hex.EncodeToString(oldLedger[:]),
		"newLedger": hex.EncodeToString(newLedger[:]),
		"sink":      hex.EncodeToString(sink[:]),
	}
	return events.Event{Type: EventTypeDeployed, Attributes: attrs}
}

// NewCompletedEvent is emitted once per successfully migrated element.
func NewCompletedEvent(class string, caller [20]byte, id, amount *big.Int) events.Event {
	return quantityEvent(EventTypeCompleted, class, caller, id, amount)
}

// NewEscrowDepositedEvent records an administrator deposit into engine custody.
func NewEscrowDepositedEvent(class string, caller [20]byte, count int, amount *big.Int) events.Event {
	return escrowEvent(EventTypeEscrowDeposited, class, caller, count, amount)
}

// NewEscrowWithdrawnEvent records an administrator withdrawal from engine custody.
func NewEscrowWithdrawnEvent(class string, caller [20]byte, count int, amount *big.Int) events.Event {
	return escrowEvent(EventTypeEscrowWithdrawn, class, caller, count, amount)
}

// NewRecoveredEvent records an administrator sweep of an unrelated asset.
func NewRecoveredEvent(class string, caller, token [20]byte, amount *big.Int) events.Event {
	attrs := map[string]string{
		"class":  class,
		"caller": hex.EncodeToString(caller[:]),
		"token":  hex.EncodeToString(token[:]),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return events.Event{Type: EventTypeRecovered, Attributes: attrs}
}

// NewPausedEvent marks the migration surface as halted.
func NewPausedEvent(class string, caller [20]byte) events.Event {
	return adminEvent(EventTypePaused, class, caller)
}

// NewUnpausedEvent marks the migration surface as resumed.
func NewUnpausedEvent(class string, caller [20]byte) events.Event {
	return adminEvent(EventTypeUnpaused, class, caller)
}

func quantityEvent(eventType, class string, caller [20]byte, id, amount *big.Int) events.Event {
	attrs := map[string]string{
		"class":  class,
		"caller": hex.EncodeToString(caller[:]),
	}
	if id != nil {
		attrs["tokenId"] = id.String()
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return events.Event{Type: eventType, Attributes: attrs}
}

func escrowEvent(eventType, class string, caller [20]byte, count int, amount *big.Int) events.Event {
	attrs := map[string]string{
		"class":  class,
		"caller": hex.EncodeToString(caller[:]),
	}
	if count > 0 {
		attrs["count"] = strconv.Itoa(count)
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return events.Event{Type: eventType, Attributes: attrs}
}

func adminEvent(eventType, class string, caller [20]byte) events.Event {
	return events.Event{Type: eventType, Attributes: map[string]string{
		"class":  class,
		"caller": hex.EncodeToString(caller[:]),
	}}
}
