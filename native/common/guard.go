package common

import "errors"

var (
	// ErrPaused is returned when a gated operation is attempted while the
	// owning engine is paused.
	ErrPaused = errors.New("engine paused")
	// ErrReentrant is returned when a guarded operation re-enters an engine
	// whose call slot is already held.
	ErrReentrant = errors.New("reentrant call")
)

// PauseView reports whether an engine's migration surface is paused.
type PauseView interface {
	IsPaused() bool
}

// Guard rejects the call when the supplied view reports a paused engine. A nil
// view never blocks.
func Guard(p PauseView) error {
	if p == nil {
		return nil
	}
	if p.IsPaused() {
		return ErrPaused
	}
	return nil
}

// CallGuard is a single-slot reentrancy lock shared by every guarded entry
// point of one engine instance. The host serialises calls, so the slot only
// trips when a ledger callback re-enters the engine within the same call
// stack.
type CallGuard struct {
	held bool
}

// Enter acquires the slot, failing with ErrReentrant when it is already held.
func (g *CallGuard) Enter() error {
	if g.held {
		return ErrReentrant
	}
	g.held = true
	return nil
}

// Exit releases the slot. Safe to call on every exit path, including failure.
func (g *CallGuard) Exit() {
	g.held = false
}
