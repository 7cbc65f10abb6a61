// Package core holds the transport-facing contracts shared by the
// coordinator and the adapters: frames, connections, event envelopes, error kinds.
package core

//go:generate go run go.uber.org/mock/mockgen -source=signal_iface.go -destination=../mocks/mock_signal.go -package=mocks

// Frame is an encoded event ready for the wire.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend must not block. A full buffer is reported as an error.
	TrySend(f Frame) error
	Close()
}
