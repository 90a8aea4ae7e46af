package core

// Frame is a raw encoded payload for a host connection.
type Frame []byte

// SignalConnection abstracts a host messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
