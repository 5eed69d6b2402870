package memledger

import "migrator/native/migration"

// Sink is a genuine burn sink: it answers the handshake with the reserved
// magic value and exposes no operation to move received assets back out.
type Sink struct {
	address [20]byte
}

// NewSink returns a burn sink with the given identity.
func NewSink(address [20]byte) *Sink {
	return &Sink{address: address}
}

// Address implements migration.BurnSink.
func (s *Sink) Address() [20]byte { return s.address }

// IsBurnSink implements migration.BurnSink.
func (s *Sink) IsBurnSink() ([4]byte, error) {
	return migration.BurnSinkMagic, nil
}
